package authz

import (
	"context"
	"fmt"

	authenticationv1 "k8s.io/api/authentication/v1"
	authorizationv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/log"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
	"github.com/CATDOGME/domain-admin/internal/apierror"
)

// Operation is the verb of an access review.
type Operation string

const (
	OperationGet   Operation = "get"
	OperationList  Operation = "list"
	OperationPatch Operation = "patch"
)

// Resource is a kind the operator authorizes access to.
type Resource struct {
	Group    string
	Resource string
}

var ResourceDomains = Resource{Group: weblogicv1alpha1.GroupVersion.Group, Resource: weblogicv1alpha1.ResourceDomains}

type Scope string

const (
	ScopeCluster   Scope = "cluster"
	ScopeNamespace Scope = "namespace"
)

// Checker answers whether principal may perform operation on a resource.
type Checker interface {
	Check(ctx context.Context, principal string, groups []string, operation Operation,
		resource Resource, resourceName string, scope Scope, namespace string) (bool, error)
}

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// Proxy talks to the authentication and authorization APIs.
type Proxy struct {
	Clientset kubernetes.Interface
}

var (
	_ Checker       = &Proxy{}
	_ Authenticator = &Proxy{}
)

func NewProxy(cs kubernetes.Interface) *Proxy {
	return &Proxy{Clientset: cs}
}

// Check issues a SubjectAccessReview for cluster scope, or a
// LocalSubjectAccessReview in namespace for namespace scope.
func (p *Proxy) Check(ctx context.Context, principal string, groups []string, operation Operation,
	resource Resource, resourceName string, scope Scope, namespace string) (bool, error) {
	attrs := &authorizationv1.ResourceAttributes{
		Verb:     string(operation),
		Group:    resource.Group,
		Resource: resource.Resource,
		Name:     resourceName,
	}
	spec := authorizationv1.SubjectAccessReviewSpec{
		ResourceAttributes: attrs,
		User:               principal,
		Groups:             groups,
	}

	switch scope {
	case ScopeCluster:
		sar := &authorizationv1.SubjectAccessReview{Spec: spec}
		out, err := p.Clientset.AuthorizationV1().SubjectAccessReviews().Create(ctx, sar, metav1.CreateOptions{})
		if err != nil {
			return false, apierror.FromKubernetes("createSubjectAccessReview", err)
		}
		return out.Status.Allowed, nil
	case ScopeNamespace:
		if namespace == "" {
			return false, apierror.NewInvalidRequest("namespace scope requires a namespace")
		}
		attrs.Namespace = namespace
		lsar := &authorizationv1.LocalSubjectAccessReview{
			ObjectMeta: metav1.ObjectMeta{Namespace: namespace},
			Spec:       spec,
		}
		out, err := p.Clientset.AuthorizationV1().LocalSubjectAccessReviews(namespace).Create(ctx, lsar, metav1.CreateOptions{})
		if err != nil {
			return false, apierror.FromKubernetes("createLocalSubjectAccessReview", err)
		}
		return out.Status.Allowed, nil
	default:
		return false, fmt.Errorf("unknown authorization scope %q", scope)
	}
}

// Authenticate issues a TokenReview for token.
func (p *Proxy) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, apierror.NewUnauthenticated("no bearer token supplied")
	}
	tr := &authenticationv1.TokenReview{Spec: authenticationv1.TokenReviewSpec{Token: token}}
	out, err := p.Clientset.AuthenticationV1().TokenReviews().Create(ctx, tr, metav1.CreateOptions{})
	if err != nil {
		return nil, apierror.FromKubernetes("createTokenReview", err)
	}
	if !out.Status.Authenticated {
		msg := out.Status.Error
		if msg == "" {
			msg = "token was not authenticated"
		}
		log.FromContext(ctx).V(1).Info("token review rejected", "reason", msg)
		return nil, apierror.NewUnauthenticated("%s", msg)
	}
	return &Identity{
		Username: out.Status.User.Username,
		UID:      out.Status.User.UID,
		Groups:   append([]string(nil), out.Status.User.Groups...),
	}, nil
}
