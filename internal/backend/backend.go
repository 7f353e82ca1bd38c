// Package backend performs the domain admin operations: it authorizes a
// request, computes the smallest patch that carries it out, and submits it.
package backend

import (
	"context"
	"math"

	"sigs.k8s.io/controller-runtime/pkg/log"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
	"github.com/CATDOGME/domain-admin/internal/apierror"
	"github.com/CATDOGME/domain-admin/internal/authz"
)

// DomainCaller is the part of the call layer a Backend needs.
type DomainCaller interface {
	DomainLister
	PatchDomain(ctx context.Context, name, namespace string, patch []byte) (*weblogicv1alpha1.Domain, error)
}

// Backend serves admin requests for a set of namespaces. It keeps no domain
// state between calls: every operation looks the domain up again.
type Backend struct {
	domains    DomainCaller
	authorizer authz.Authorizer
	namespaces []string
	index      Index
}

type Option func(*Backend)

// WithIndex resolves domain UIDs from x instead of listing the namespaces.
func WithIndex(x Index) Option {
	return func(b *Backend) { b.index = x }
}

func New(domains DomainCaller, authorizer authz.Authorizer, namespaces []string, opts ...Option) *Backend {
	if authorizer == nil {
		authorizer = authz.NoOp{}
	}
	b := &Backend{
		domains:    domains,
		authorizer: authorizer,
		namespaces: append([]string(nil), namespaces...),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.index == nil {
		b.index = newListingIndex(domains, b.namespaces)
	}
	return b
}

// ListDomains returns the domains of every managed namespace.
func (b *Backend) ListDomains(ctx context.Context) ([]weblogicv1alpha1.Domain, error) {
	if err := b.authorizeCluster(ctx, authz.OperationList); err != nil {
		return nil, err
	}
	return b.index.List(ctx)
}

// GetDomainUIDs returns the UIDs of every managed domain.
func (b *Backend) GetDomainUIDs(ctx context.Context) ([]string, error) {
	domains, err := b.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(domains))
	for i := range domains {
		uids = append(uids, domains[i].GetDomainUID())
	}
	return uids, nil
}

func (b *Backend) IsDomainUID(ctx context.Context, domainUID string) (bool, error) {
	if err := b.authorizeCluster(ctx, authz.OperationList); err != nil {
		return false, err
	}
	d, err := b.index.Lookup(ctx, domainUID)
	if err != nil {
		return false, err
	}
	return d != nil, nil
}

// GetClusters returns the configured and observed cluster names of a domain.
func (b *Backend) GetClusters(ctx context.Context, domainUID string) ([]string, error) {
	d, err := b.getDomain(ctx, domainUID)
	if err != nil {
		return nil, err
	}
	if err := b.authorizeDomain(ctx, authz.OperationGet, d); err != nil {
		return nil, err
	}
	return d.ClusterNames(), nil
}

func (b *Backend) IsCluster(ctx context.Context, domainUID, clusterName string) (bool, error) {
	d, err := b.getDomain(ctx, domainUID)
	if err != nil {
		return false, err
	}
	if err := b.authorizeDomain(ctx, authz.OperationGet, d); err != nil {
		return false, err
	}
	return d.HasCluster(clusterName), nil
}

// PerformDomainAction bumps the introspect or restart version of a domain.
func (b *Backend) PerformDomainAction(ctx context.Context, domainUID string, action *DomainAction) (*weblogicv1alpha1.Domain, error) {
	d, err := b.getDomain(ctx, domainUID)
	if err != nil {
		return nil, err
	}
	if action == nil || action.Type == "" {
		return nil, apierror.NewInvalidRequest("no action specified for domain %q", domainUID)
	}

	var pb *patchBuilder
	switch action.Type {
	case ActionIntrospect:
		pb = introspectVersionPatch(d)
	case ActionRestart:
		pb = restartVersionPatch(d)
	default:
		return nil, apierror.NewInvalidRequest("unknown action %q for domain %q", action.Type, domainUID)
	}

	if err := b.authorizeDomain(ctx, authz.OperationPatch, d); err != nil {
		return nil, err
	}

	log.FromContext(ctx).Info("performing domain action", "domainUID", domainUID, "namespace", d.Namespace, "action", action.Type)
	return b.patch(ctx, d, pb)
}

// ScaleCluster sets the replica count of one cluster of a domain. When the
// count already in effect equals replicas nothing is submitted and the
// domain is returned as observed.
func (b *Backend) ScaleCluster(ctx context.Context, domainUID, clusterName string, replicas int) (*weblogicv1alpha1.Domain, error) {
	if replicas < 0 {
		return nil, apierror.NewInvalidRequest("replicas must not be negative, got %d", replicas)
	}
	if replicas > math.MaxInt32 {
		return nil, apierror.NewInvalidRequest("replicas %d out of range", replicas)
	}
	d, err := b.getDomain(ctx, domainUID)
	if err != nil {
		return nil, err
	}
	if d.HasObservedTopology() && !d.HasCluster(clusterName) {
		return nil, apierror.NewNotFound("cluster %q not found in domain %q", clusterName, domainUID)
	}

	if err := b.authorizeDomain(ctx, authz.OperationPatch, d); err != nil {
		return nil, err
	}

	logger := log.FromContext(ctx).WithValues("domainUID", domainUID, "namespace", d.Namespace, "cluster", clusterName)
	current := d.GetReplicaCount(clusterName)
	if current == replicas {
		logger.V(1).Info("cluster already at requested replicas", "replicas", replicas)
		return d, nil
	}

	logger.Info("scaling cluster", "from", current, "to", replicas)
	return b.patch(ctx, d, replicasPatch(d, clusterName, int32(replicas)))
}

func (b *Backend) getDomain(ctx context.Context, domainUID string) (*weblogicv1alpha1.Domain, error) {
	d, err := b.index.Lookup(ctx, domainUID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apierror.NewNotFound("domain %q not found", domainUID)
	}
	return d, nil
}

func (b *Backend) patch(ctx context.Context, d *weblogicv1alpha1.Domain, pb *patchBuilder) (*weblogicv1alpha1.Domain, error) {
	body, err := pb.Build()
	if err != nil {
		return nil, err
	}
	return b.domains.PatchDomain(ctx, d.Name, d.Namespace, body)
}

func (b *Backend) authorizeCluster(ctx context.Context, op authz.Operation) error {
	return b.authorizer.Authorize(ctx, authz.Request{
		Operation: op,
		Resource:  authz.ResourceDomains,
		Scope:     authz.ScopeCluster,
	})
}

func (b *Backend) authorizeDomain(ctx context.Context, op authz.Operation, d *weblogicv1alpha1.Domain) error {
	return b.authorizer.Authorize(ctx, authz.Request{
		Operation:    op,
		Resource:     authz.ResourceDomains,
		ResourceName: d.Name,
		Scope:        authz.ScopeNamespace,
		Namespace:    d.Namespace,
	})
}
