// Package calls executes the synchronous API server calls of the domain admin core.
package calls

import (
	"context"
	"fmt"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
	"github.com/CATDOGME/domain-admin/internal/apierror"
	"github.com/CATDOGME/domain-admin/internal/tuning"
)

// DefaultBackoff spaces out list retries. Cap bounds a single sleep; the number
// of attempts always comes from the tuning.
var DefaultBackoff = wait.Backoff{
	Duration: 200 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
	Cap:      5 * time.Second,
}

// DomainCallBuilder lists and patches Domains with the tuning captured when it
// was built. It is cheap to create and meant to live for a single request.
type DomainCallBuilder struct {
	client     client.Client
	dispatcher Dispatcher
	tuning     tuning.CallTuning
	backoff    wait.Backoff

	fieldSelector string
	labelSelector string
}

type Option func(*DomainCallBuilder)

// WithDispatcher pins the dispatcher instead of using CurrentDispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(b *DomainCallBuilder) { b.dispatcher = d }
}

// WithTuning replaces the snapshot taken from tuning.Current.
func WithTuning(t tuning.CallTuning) Option {
	return func(b *DomainCallBuilder) { b.tuning = t }
}

func WithBackoff(backoff wait.Backoff) Option {
	return func(b *DomainCallBuilder) { b.backoff = backoff }
}

func NewDomainCallBuilder(c client.Client, opts ...Option) *DomainCallBuilder {
	b := &DomainCallBuilder{
		client:  c,
		tuning:  tuning.Current(),
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tuning returns the snapshot this builder runs with.
func (b *DomainCallBuilder) Tuning() tuning.CallTuning {
	return b.tuning
}

// WithLabelSelectors restricts listing to objects matching all selectors.
func (b *DomainCallBuilder) WithLabelSelectors(selectors ...string) *DomainCallBuilder {
	b.labelSelector = strings.Join(selectors, ",")
	return b
}

func (b *DomainCallBuilder) WithFieldSelector(fieldSelector string) *DomainCallBuilder {
	b.fieldSelector = fieldSelector
	return b
}

// ListDomains returns every Domain in the namespace, following continue tokens.
func (b *DomainCallBuilder) ListDomains(ctx context.Context, namespace string) (*weblogicv1alpha1.DomainList, error) {
	out := &weblogicv1alpha1.DomainList{}
	cont := ""
	for {
		page := &weblogicv1alpha1.DomainList{}
		params := &RequestParams{
			Operation: OperationListDomain,
			Namespace: namespace,
			Call: CallParams{
				Limit:          b.tuning.RequestLimit,
				TimeoutSeconds: b.tuning.TimeoutSeconds,
				FieldSelector:  b.fieldSelector,
				LabelSelector:  b.labelSelector,
				Continue:       cont,
			},
			Idempotent: true,
			List:       page,
		}
		if err := b.executeSynchronousCall(ctx, params, listDomainCall); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, page.Items...)
		out.ResourceVersion = page.ResourceVersion
		cont = page.Continue
		if cont == "" {
			return out, nil
		}
	}
}

// ListDomainsInNamespaces flattens ListDomains over namespaces, in order.
func (b *DomainCallBuilder) ListDomainsInNamespaces(ctx context.Context, namespaces []string) ([]weblogicv1alpha1.Domain, error) {
	var out []weblogicv1alpha1.Domain
	for _, ns := range namespaces {
		dl, err := b.ListDomains(ctx, ns)
		if err != nil {
			return nil, err
		}
		if dl != nil {
			out = append(out, dl.Items...)
		}
	}
	return out, nil
}

// PatchDomain submits a JSON patch for the named Domain and returns the result.
// It is attempted once: a Conflict means the caller's view is stale.
func (b *DomainCallBuilder) PatchDomain(ctx context.Context, name, namespace string, patch []byte) (*weblogicv1alpha1.Domain, error) {
	result := &weblogicv1alpha1.Domain{}
	result.Name = name
	result.Namespace = namespace
	params := &RequestParams{
		Operation: OperationPatchDomain,
		Namespace: namespace,
		Name:      name,
		Body:      patch,
		Call:      CallParams{TimeoutSeconds: b.tuning.TimeoutSeconds},
		Result:    result,
	}
	if err := b.executeSynchronousCall(ctx, params, patchDomainCall); err != nil {
		return nil, err
	}
	return result, nil
}

func listDomainCall(ctx context.Context, c client.Client, p *RequestParams) error {
	raw := &metav1.ListOptions{ResourceVersion: "", Watch: false}
	if p.Call.TimeoutSeconds > 0 {
		t := p.Call.TimeoutSeconds
		raw.TimeoutSeconds = &t
	}
	opts := &client.ListOptions{
		Namespace: p.Namespace,
		Limit:     p.Call.Limit,
		Continue:  p.Call.Continue,
		Raw:       raw,
	}
	if p.Call.LabelSelector != "" {
		sel, err := labels.Parse(p.Call.LabelSelector)
		if err != nil {
			return apierror.Wrap(apierror.InvalidRequest, err, "invalid label selector %q", p.Call.LabelSelector)
		}
		opts.LabelSelector = sel
	}
	if p.Call.FieldSelector != "" {
		sel, err := fields.ParseSelector(p.Call.FieldSelector)
		if err != nil {
			return apierror.Wrap(apierror.InvalidRequest, err, "invalid field selector %q", p.Call.FieldSelector)
		}
		opts.FieldSelector = sel
	}
	return c.List(ctx, p.List, opts)
}

func patchDomainCall(ctx context.Context, c client.Client, p *RequestParams) error {
	return c.Patch(ctx, p.Result, client.RawPatch(types.JSONPatchType, p.Body))
}

func (b *DomainCallBuilder) dispatcherFor() Dispatcher {
	if b.dispatcher != nil {
		return b.dispatcher
	}
	return CurrentDispatcher()
}

func (b *DomainCallBuilder) executeSynchronousCall(ctx context.Context, params *RequestParams, call Call) error {
	logger := log.FromContext(ctx).WithName("calls").WithValues(
		"operation", params.Operation, "namespace", params.Namespace, "name", params.Name)
	d := b.dispatcherFor()

	maxAttempts := 1
	if params.Idempotent {
		maxAttempts = b.tuning.MaxRetryCount + 1
	}

	start := time.Now()
	attempts, err := b.retry(ctx, maxAttempts, func() error {
		return b.attempt(ctx, d, call, params)
	})
	callDuration.WithLabelValues(params.Operation).Observe(time.Since(start).Seconds())
	if attempts > 1 {
		callRetries.WithLabelValues(params.Operation).Add(float64(attempts - 1))
	}

	if err == nil {
		callsTotal.WithLabelValues(params.Operation, outcomeSuccess).Inc()
		logger.V(1).Info("call succeeded", "attempts", attempts)
		return nil
	}

	classified := apierror.FromKubernetes(params.Operation, err)
	if classified.Code == apierror.Transport && params.Idempotent && attempts > 1 {
		classified = apierror.Wrap(apierror.Transport, err, "%s: retries exhausted after %d attempts", params.Operation, attempts)
	}
	callsTotal.WithLabelValues(params.Operation, string(classified.Code)).Inc()
	logger.V(1).Info("call failed", "attempts", attempts, "code", classified.Code, "error", err.Error())
	return classified
}

// retry runs fn until it succeeds, fails with something other than a
// transport failure, or maxAttempts is used up. b.backoff.Cap bounds each
// sleep and never the number of attempts.
func (b *DomainCallBuilder) retry(ctx context.Context, maxAttempts int, fn func() error) (int, error) {
	backoff := b.backoff
	maxDelay := backoff.Cap
	backoff.Cap = 0
	backoff.Steps = maxAttempts

	attempts := 0
	for {
		attempts++
		err := fn()
		if err == nil || attempts >= maxAttempts || !apierror.IsTransportFailure(err) {
			return attempts, err
		}
		delay := backoff.Step()
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
		if maxDelay > 0 && backoff.Duration > maxDelay {
			backoff.Duration = maxDelay
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, err
		case <-timer.C:
		}
	}
}

func (b *DomainCallBuilder) attempt(ctx context.Context, d Dispatcher, call Call, params *RequestParams) error {
	if b.tuning.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(b.tuning.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	if err := d.Execute(ctx, call, params, b.client); err != nil {
		return fmt.Errorf("%s %s/%s: %w", params.Operation, params.Namespace, params.Name, err)
	}
	return nil
}
