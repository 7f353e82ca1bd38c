package apierror

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilnet "k8s.io/apimachinery/pkg/util/net"
)

// IsTransportFailure reports whether err means the call never produced a usable
// answer: connection problems, timeouts and throttling. Conflicts are not
// transport failures.
func IsTransportFailure(err error) bool {
	if err == nil || apierrors.IsConflict(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err) ||
		apierrors.IsTooManyRequests(err) || apierrors.IsServiceUnavailable(err) {
		return true
	}
	if utilnet.IsConnectionReset(err) || utilnet.IsConnectionRefused(err) || utilnet.IsProbableEOF(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// FromKubernetes classifies an error returned by the API server for the named operation.
func FromKubernetes(operation string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if IsTransportFailure(err) {
		return Wrap(Transport, err, "%s failed", operation)
	}
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		st := status.Status()
		code := APIError
		switch {
		case st.Code == http.StatusConflict || apierrors.IsConflict(err):
			code = Conflict
		case apierrors.IsNotFound(err):
			code = NotFound
		}
		return &Error{
			Code:   code,
			Msg:    string(st.Reason),
			Status: st.Code,
			Body:   st.Message,
			Err:    err,
		}
	}
	return Wrap(Transport, err, "%s failed", operation)
}
