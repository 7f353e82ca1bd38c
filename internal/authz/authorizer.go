// Package authz authenticates callers of the domain admin API and authorizes
// what they ask for.
package authz

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/CATDOGME/domain-admin/internal/apierror"
)

var authzlog = logf.Log.WithName("authz")

// Identity is the caller as reported by a TokenReview.
type Identity struct {
	Username string
	UID      string
	Groups   []string
}

// Request is one operation to authorize.
type Request struct {
	Operation    Operation
	Resource     Resource
	ResourceName string
	Scope        Scope
	Namespace    string
}

// Authorizer gates every listing and mutating operation of a backend.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}

// NoOp authorizes everything. Dedicated mode runs under a fixed trusted identity.
type NoOp struct{}

func (NoOp) Authorize(context.Context, Request) error { return nil }

// CredentialChecked checks every request against the API server on behalf of
// the identity authenticated at construction. Decisions are never cached.
type CredentialChecked struct {
	identity Identity
	checker  Checker
}

// NewCredentialChecked authenticates token and returns an Authorizer bound to
// the resulting identity.
func NewCredentialChecked(ctx context.Context, authn Authenticator, token string, checker Checker) (*CredentialChecked, error) {
	id, err := authn.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, apierror.NewUnauthenticated("token review returned no identity")
	}
	return &CredentialChecked{identity: *id, checker: checker}, nil
}

// Identity returns the authenticated caller.
func (a *CredentialChecked) Identity() Identity {
	return a.identity
}

func (a *CredentialChecked) Authorize(ctx context.Context, req Request) error {
	namespace := req.Namespace
	if req.Scope == ScopeCluster {
		namespace = ""
	}
	allowed, err := a.checker.Check(ctx, a.identity.Username, a.identity.Groups,
		req.Operation, req.Resource, req.ResourceName, req.Scope, namespace)
	if err != nil {
		return err
	}
	if !allowed {
		authzlog.Info("request denied",
			"user", a.identity.Username,
			"groups", a.identity.Groups,
			"operation", req.Operation,
			"resource", req.Resource.Resource,
			"name", req.ResourceName,
			"namespace", namespace,
		)
		return apierror.NewUnauthorized("user %q may not %s %s %q in %s scope",
			a.identity.Username, req.Operation, req.Resource.Resource, req.ResourceName, req.Scope)
	}
	return nil
}

// Mode selects the Authorizer of a backend.
type Mode string

const (
	ModeDedicated Mode = "dedicated"
	ModeShared    Mode = "shared"
)

// ForMode returns NoOp for dedicated mode, or a CredentialChecked built from
// token for shared mode.
func ForMode(ctx context.Context, mode Mode, token string, cs kubernetes.Interface) (Authorizer, error) {
	switch mode {
	case ModeDedicated:
		return NoOp{}, nil
	case ModeShared:
		p := NewProxy(cs)
		return NewCredentialChecked(ctx, p, token, p)
	default:
		return nil, fmt.Errorf("unknown mode %q, must be %q or %q", mode, ModeDedicated, ModeShared)
	}
}
