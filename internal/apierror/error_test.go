package apierror

import (
	"context"
	"errors"
	"fmt"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var domainsGR = schema.GroupResource{Group: "weblogic.guardian.io", Resource: "domains"}

var _ = Describe("Error", func() {
	It("keeps its code through wrapping", func() {
		err := fmt.Errorf("scale: %w", NewInvalidRequest("replicas must not be negative, got %d", -1))
		Expect(CanonicalCode(err)).To(Equal(InvalidRequest))
		Expect(IsInvalidRequest(err)).To(BeTrue())
		Expect(errors.Is(err, &Error{Code: InvalidRequest})).To(BeTrue())
		Expect(errors.Is(err, &Error{Code: NotFound})).To(BeFalse())
	})

	It("reports Unknown for foreign errors", func() {
		Expect(CanonicalCode(errors.New("boom"))).To(Equal(Unknown))
		Expect(CanonicalCode(nil)).To(Equal(Unknown))
	})

	It("renders status when present", func() {
		e := &Error{Code: APIError, Msg: "Forbidden", Status: 403}
		Expect(e.Error()).To(ContainSubstring("(403)"))
	})
})

var _ = Describe("FromKubernetes", func() {
	It("maps a 409 to Conflict and keeps the body", func() {
		err := FromKubernetes("patchDomain", apierrors.NewConflict(domainsGR, "domain1", errors.New("object was modified")))
		Expect(err.Code).To(Equal(Conflict))
		Expect(err.Status).To(BeEquivalentTo(409))
		Expect(err.Body).To(ContainSubstring("object was modified"))
	})

	It("maps other API statuses to APIError", func() {
		err := FromKubernetes("patchDomain", apierrors.NewForbidden(domainsGR, "domain1", errors.New("nope")))
		Expect(err.Code).To(Equal(APIError))
		Expect(err.Status).To(BeEquivalentTo(403))
		Expect(err.Body).NotTo(BeEmpty())
	})

	It("maps a missing resource to NotFound", func() {
		err := FromKubernetes("patchDomain", apierrors.NewNotFound(domainsGR, "domain1"))
		Expect(err.Code).To(Equal(NotFound))
	})

	DescribeTable("maps transport failures to Transport",
		func(in error) {
			Expect(IsTransportFailure(in)).To(BeTrue())
			Expect(FromKubernetes("listDomain", in).Code).To(Equal(Transport))
		},
		Entry("deadline", context.DeadlineExceeded),
		Entry("server timeout", apierrors.NewServerTimeout(domainsGR, "list", 1)),
		Entry("too many requests", apierrors.NewTooManyRequests("slow down", 1)),
		Entry("unavailable", apierrors.NewServiceUnavailable("down")),
		Entry("eof", io.ErrUnexpectedEOF),
	)

	It("does not treat conflicts as transport failures", func() {
		Expect(IsTransportFailure(apierrors.NewConflict(domainsGR, "d", errors.New("x")))).To(BeFalse())
	})

	It("passes classified errors through", func() {
		in := NewUnauthorized("denied")
		Expect(FromKubernetes("x", in)).To(BeIdenticalTo(in))
	})
})
