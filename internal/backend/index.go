package backend

import (
	"context"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
)

// Index resolves domain UIDs. Lookup returns nil, nil for an unknown UID.
type Index interface {
	Lookup(ctx context.Context, domainUID string) (*weblogicv1alpha1.Domain, error)
	List(ctx context.Context) ([]weblogicv1alpha1.Domain, error)
}

// DomainLister is the listing half of the call layer.
type DomainLister interface {
	ListDomainsInNamespaces(ctx context.Context, namespaces []string) ([]weblogicv1alpha1.Domain, error)
}

// listingIndex lists the managed namespaces on every call, so each operation
// works from what the API server holds right now.
type listingIndex struct {
	lister     DomainLister
	namespaces []string
}

func newListingIndex(lister DomainLister, namespaces []string) *listingIndex {
	return &listingIndex{lister: lister, namespaces: namespaces}
}

func (x *listingIndex) List(ctx context.Context) ([]weblogicv1alpha1.Domain, error) {
	return x.lister.ListDomainsInNamespaces(ctx, x.namespaces)
}

func (x *listingIndex) Lookup(ctx context.Context, domainUID string) (*weblogicv1alpha1.Domain, error) {
	domains, err := x.List(ctx)
	if err != nil {
		return nil, err
	}
	return findDomain(domains, domainUID), nil
}

// StaticIndex serves a fixed set of domains, e.g. a cache kept by the caller.
type StaticIndex []weblogicv1alpha1.Domain

func (s StaticIndex) List(context.Context) ([]weblogicv1alpha1.Domain, error) {
	return s, nil
}

func (s StaticIndex) Lookup(_ context.Context, domainUID string) (*weblogicv1alpha1.Domain, error) {
	return findDomain(s, domainUID), nil
}

func findDomain(domains []weblogicv1alpha1.Domain, domainUID string) *weblogicv1alpha1.Domain {
	for i := range domains {
		if domains[i].GetDomainUID() == domainUID {
			return domains[i].DeepCopy()
		}
	}
	return nil
}
