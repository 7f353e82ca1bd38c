package calls_test

import (
	"context"
	"errors"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
	"github.com/CATDOGME/domain-admin/internal/apierror"
	"github.com/CATDOGME/domain-admin/internal/calls"
	"github.com/CATDOGME/domain-admin/internal/calls/callstest"
	"github.com/CATDOGME/domain-admin/internal/tuning"
)

var domainsGR = schema.GroupResource{Group: weblogicv1alpha1.GroupVersion.Group, Resource: weblogicv1alpha1.ResourceDomains}

func newDomain(namespace, name string) *weblogicv1alpha1.Domain {
	return &weblogicv1alpha1.Domain{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec:       weblogicv1alpha1.DomainSpec{DomainUID: name, Replicas: ptr.To[int32](2)},
	}
}

var fastBackoff = wait.Backoff{Duration: time.Millisecond, Factor: 1}

var _ = Describe("DomainCallBuilder", func() {
	var (
		ctx      context.Context
		c        client.Client
		recorder *callstest.Recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		c = fake.NewClientBuilder().WithScheme(scheme).WithObjects(
			newDomain("ns1", "domain1"),
			newDomain("ns1", "domain2"),
			newDomain("ns2", "domain3"),
		).Build()
		recorder = callstest.NewRecorder()
	})

	build := func(opts ...calls.Option) *calls.DomainCallBuilder {
		opts = append([]calls.Option{calls.WithDispatcher(recorder), calls.WithBackoff(fastBackoff)}, opts...)
		return calls.NewDomainCallBuilder(c, opts...)
	}

	Describe("ListDomains", func() {
		It("lists one namespace with the default tuning", func() {
			dl, err := build(calls.WithTuning(tuning.Defaults())).ListDomains(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dl.Items).To(HaveLen(2))

			recorded := recorder.Calls(calls.OperationListDomain)
			Expect(recorded).To(HaveLen(1))
			Expect(recorded[0].Namespace).To(Equal("ns1"))
			Expect(recorded[0].Call.Limit).To(BeEquivalentTo(50))
			Expect(recorded[0].Call.TimeoutSeconds).To(BeEquivalentTo(5))
			Expect(recorded[0].Idempotent).To(BeTrue())
		})

		It("captures the tuning snapshot at build time", func() {
			prev := tuning.Set(tuning.CallTuning{RequestLimit: 7, TimeoutSeconds: 3, MaxRetryCount: 1})
			DeferCleanup(func() { tuning.Set(prev) })

			b := build()
			tuning.Set(tuning.CallTuning{RequestLimit: 99, TimeoutSeconds: 99, MaxRetryCount: 99})

			_, err := b.ListDomains(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.Calls()[0].Call.Limit).To(BeEquivalentTo(7))
			Expect(recorder.Calls()[0].Call.TimeoutSeconds).To(BeEquivalentTo(3))
		})

		It("passes selectors through", func() {
			b := build().WithLabelSelectors("a=b", "c!=d").WithFieldSelector("metadata.name=domain1")
			recorder.OnOperation(calls.OperationListDomain, func(_ context.Context, p *calls.RequestParams) (bool, error) {
				return true, nil
			})

			_, err := b.ListDomains(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.Calls()[0].Call.LabelSelector).To(Equal("a=b,c!=d"))
			Expect(recorder.Calls()[0].Call.FieldSelector).To(Equal("metadata.name=domain1"))
		})

		It("filters by label against the client", func() {
			labelled := newDomain("ns3", "labelled")
			labelled.Labels = map[string]string{weblogicv1alpha1.LabelManaged: "true"}
			Expect(c.Create(ctx, labelled)).To(Succeed())
			Expect(c.Create(ctx, newDomain("ns3", "plain"))).To(Succeed())

			dl, err := build().WithLabelSelectors(weblogicv1alpha1.LabelManaged + "=true").ListDomains(ctx, "ns3")
			Expect(err).NotTo(HaveOccurred())
			Expect(dl.Items).To(HaveLen(1))
			Expect(dl.Items[0].Name).To(Equal("labelled"))
		})

		It("rejects a malformed label selector without retrying", func() {
			_, err := build().WithLabelSelectors("a in (").ListDomains(ctx, "ns1")
			Expect(apierror.IsInvalidRequest(err)).To(BeTrue())
			Expect(recorder.Calls()).To(HaveLen(1))
		})

		It("follows continue tokens", func() {
			recorder.OnOperation(calls.OperationListDomain,
				func(_ context.Context, p *calls.RequestParams) (bool, error) {
					dl := p.List.(*weblogicv1alpha1.DomainList)
					dl.Items = []weblogicv1alpha1.Domain{*newDomain("ns1", "a")}
					dl.Continue = "page2"
					return true, nil
				},
				func(_ context.Context, p *calls.RequestParams) (bool, error) {
					Expect(p.Call.Continue).To(Equal("page2"))
					dl := p.List.(*weblogicv1alpha1.DomainList)
					dl.Items = []weblogicv1alpha1.Domain{*newDomain("ns1", "b")}
					return true, nil
				},
			)

			dl, err := build().ListDomains(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dl.Items).To(HaveLen(2))
			Expect(recorder.Calls()).To(HaveLen(2))
		})

		It("retries transport failures within the budget", func() {
			before := testutil.ToFloat64(calls.CallRetries.WithLabelValues(calls.OperationListDomain))
			recorder.OnOperation(calls.OperationListDomain,
				callstest.FailWith(io.ErrUnexpectedEOF),
				callstest.FailWith(context.DeadlineExceeded),
				callstest.PassThrough(),
			)

			dl, err := build(calls.WithTuning(tuning.CallTuning{RequestLimit: 50, TimeoutSeconds: 5, MaxRetryCount: 2})).ListDomains(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(dl.Items).To(HaveLen(2))
			Expect(recorder.Calls()).To(HaveLen(3))
			Expect(testutil.ToFloat64(calls.CallRetries.WithLabelValues(calls.OperationListDomain)) - before).To(BeEquivalentTo(2))
		})

		It("surfaces a transport error once the budget is exhausted", func() {
			recorder.OnOperation(calls.OperationListDomain, callstest.FailWith(apierrors.NewServiceUnavailable("down")))

			_, err := build(calls.WithTuning(tuning.CallTuning{RequestLimit: 50, TimeoutSeconds: 5, MaxRetryCount: 1})).ListDomains(ctx, "ns1")
			Expect(apierror.IsTransport(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("retries exhausted after 2 attempts"))
			Expect(recorder.Calls()).To(HaveLen(2))
		})

		It("spends the whole default budget when the backoff is capped", func() {
			recorder.OnOperation(calls.OperationListDomain, callstest.FailWith(io.ErrUnexpectedEOF))
			capped := calls.DefaultBackoff
			capped.Duration = time.Millisecond
			capped.Cap = 2 * time.Millisecond

			_, err := build(calls.WithBackoff(capped), calls.WithTuning(tuning.Defaults())).ListDomains(ctx, "ns1")
			Expect(apierror.IsTransport(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("retries exhausted after 11 attempts"))
			Expect(recorder.Calls()).To(HaveLen(tuning.DefaultMaxRetryCount + 1))
		})

		It("stops retrying once the context is done", func() {
			recorder.OnOperation(calls.OperationListDomain, callstest.FailWith(io.ErrUnexpectedEOF))
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := build(calls.WithBackoff(wait.Backoff{Duration: time.Hour, Factor: 1}), calls.WithTuning(tuning.Defaults())).ListDomains(cctx, "ns1")
			Expect(apierror.IsTransport(err)).To(BeTrue())
			Expect(recorder.Calls()).To(HaveLen(1))
		})

		It("does not retry conflicts", func() {
			recorder.OnOperation(calls.OperationListDomain, callstest.FailWith(apierrors.NewConflict(domainsGR, "x", errors.New("stale"))))

			_, err := build().ListDomains(ctx, "ns1")
			Expect(apierror.IsConflict(err)).To(BeTrue())
			Expect(recorder.Calls()).To(HaveLen(1))
		})
	})

	Describe("ListDomainsInNamespaces", func() {
		It("flattens the per-namespace results", func() {
			domains, err := build().ListDomainsInNamespaces(ctx, []string{"ns1", "ns2", "empty"})
			Expect(err).NotTo(HaveOccurred())
			Expect(domains).To(HaveLen(3))

			names := []string{}
			for _, d := range domains {
				names = append(names, d.Namespace+"/"+d.Name)
			}
			Expect(names).To(ConsistOf("ns1/domain1", "ns1/domain2", "ns2/domain3"))
			Expect(recorder.Calls(calls.OperationListDomain)).To(HaveLen(3))
		})

		It("stops at the first failing namespace", func() {
			recorder.OnOperation(calls.OperationListDomain,
				callstest.PassThrough(),
				callstest.FailWith(apierrors.NewForbidden(domainsGR, "", errors.New("no"))),
			)
			_, err := build().ListDomainsInNamespaces(ctx, []string{"ns1", "ns2", "ns3"})
			Expect(apierror.CanonicalCode(err)).To(Equal(apierror.APIError))
			Expect(recorder.Calls()).To(HaveLen(2))
		})
	})

	Describe("PatchDomain", func() {
		It("applies a JSON patch and returns the updated domain", func() {
			before := testutil.ToFloat64(calls.CallsTotal.WithLabelValues(calls.OperationPatchDomain, "success"))
			patch := []byte(`[{"op":"add","path":"/spec/restartVersion","value":"1"}]`)

			d, err := build().PatchDomain(ctx, "domain1", "ns1", patch)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Spec.RestartVersion).To(Equal("1"))

			stored := &weblogicv1alpha1.Domain{}
			Expect(c.Get(ctx, client.ObjectKey{Namespace: "ns1", Name: "domain1"}, stored)).To(Succeed())
			Expect(stored.Spec.RestartVersion).To(Equal("1"))

			recorded := recorder.Calls(calls.OperationPatchDomain)
			Expect(recorded).To(HaveLen(1))
			Expect(recorded[0].Name).To(Equal("domain1"))
			Expect(recorded[0].Body).To(MatchJSON(patch))
			Expect(recorded[0].Idempotent).To(BeFalse())
			Expect(testutil.ToFloat64(calls.CallsTotal.WithLabelValues(calls.OperationPatchDomain, "success")) - before).To(BeEquivalentTo(1))
		})

		It("surfaces a conflict without retrying", func() {
			recorder.OnOperation(calls.OperationPatchDomain, callstest.FailWith(apierrors.NewConflict(domainsGR, "domain1", errors.New("modified"))))

			_, err := build().PatchDomain(ctx, "domain1", "ns1", []byte(`[]`))
			Expect(apierror.IsConflict(err)).To(BeTrue())
			Expect(recorder.Calls()).To(HaveLen(1))
		})

		It("does not retry transport failures", func() {
			recorder.OnOperation(calls.OperationPatchDomain, callstest.FailWith(io.ErrUnexpectedEOF))

			_, err := build().PatchDomain(ctx, "domain1", "ns1", []byte(`[]`))
			Expect(apierror.IsTransport(err)).To(BeTrue())
			Expect(recorder.Calls()).To(HaveLen(1))
		})

		It("carries status and body of other API failures", func() {
			recorder.OnOperation(calls.OperationPatchDomain, callstest.FailWith(apierrors.NewBadRequest("bad patch")))

			_, err := build().PatchDomain(ctx, "domain1", "ns1", []byte(`[]`))
			var e *apierror.Error
			Expect(errors.As(err, &e)).To(BeTrue())
			Expect(e.Code).To(Equal(apierror.APIError))
			Expect(e.Status).To(BeEquivalentTo(400))
			Expect(e.Body).To(Equal("bad patch"))
		})
	})
})

var _ = Describe("InstallDispatcher", func() {
	It("is used by builders without an explicit dispatcher and reverts", func() {
		c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(newDomain("ns1", "domain1")).Build()
		recorder := callstest.NewRecorder()

		override := calls.InstallDispatcher(recorder)
		DeferCleanup(override.Revert)
		Expect(calls.CurrentDispatcher()).To(BeIdenticalTo(recorder))

		_, err := calls.NewDomainCallBuilder(c).ListDomains(context.Background(), "ns1")
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.Calls()).To(HaveLen(1))

		override.Revert()
		Expect(calls.CurrentDispatcher()).To(Equal(calls.DirectDispatcher{}))

		_, err = calls.NewDomainCallBuilder(c).ListDomains(context.Background(), "ns1")
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.Calls()).To(HaveLen(1))
	})

	It("restores nested installs in order", func() {
		outer := callstest.NewRecorder()
		inner := callstest.NewRecorder()

		o1 := calls.InstallDispatcher(outer)
		o2 := calls.InstallDispatcher(inner)
		Expect(calls.CurrentDispatcher()).To(BeIdenticalTo(inner))
		o2.Revert()
		o2.Revert()
		Expect(calls.CurrentDispatcher()).To(BeIdenticalTo(outer))
		o1.Revert()
		Expect(calls.CurrentDispatcher()).To(Equal(calls.DirectDispatcher{}))
	})
})
