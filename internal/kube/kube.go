// Package kube builds the API clients the domain admin core runs with.
package kube

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
)

// NewScheme registers the built-in kinds and the Domain kinds.
func NewScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(s))
	utilruntime.Must(weblogicv1alpha1.AddToScheme(s))
	return s
}

// ConfigForAccessToken copies base and authenticates the copy with token
// instead of the credentials of base.
func ConfigForAccessToken(base *rest.Config, token string) (*rest.Config, error) {
	if base == nil {
		return nil, errors.New("rest config nil")
	}
	if token == "" {
		return nil, errors.New("access token is empty")
	}
	cfg := rest.AnonymousClientConfig(base)
	cfg.BearerToken = token
	return cfg, nil
}

// Clients is the pair of clients one backend needs: a typed client for
// Domains and a clientset for the authentication and authorization APIs.
type Clients struct {
	Client    client.Client
	Clientset kubernetes.Interface
}

func NewClients(cfg *rest.Config, scheme *runtime.Scheme) (*Clients, error) {
	if scheme == nil {
		scheme = NewScheme()
	}
	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return &Clients{Client: c, Clientset: cs}, nil
}
