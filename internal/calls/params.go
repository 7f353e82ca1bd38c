package calls

import (
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// CallParams shapes a list request.
type CallParams struct {
	Limit          int64
	TimeoutSeconds int64
	FieldSelector  string
	LabelSelector  string
	Continue       string
}

// RequestParams describes one call. Result is the object the call decodes the
// response into; a stubbing Dispatcher may fill it instead of calling out.
type RequestParams struct {
	Operation string
	Namespace string
	Name      string
	Body      []byte
	Call      CallParams

	// Idempotent calls may be retried after transport failures.
	Idempotent bool

	Result client.Object
	List   client.ObjectList
}

const (
	OperationListDomain  = "listDomain"
	OperationPatchDomain = "patchDomain"
)
