// Package kubernetes adapts the client-go dynamic client to the
// core.Transport contract. It owns the mapping from Kubernetes API
// errors to the domain's transport error taxonomy, keeping client-go
// specifics out of the watcher and reflector.
package kubernetes

import (
	"context"
	"errors"
	"net"
	"net/url"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/ChinYing-Li/kubemirror/internal/core"
)

// statusReasonToKind maps Kubernetes StatusReason values to transport
// error kinds. Reasons absent from the map fall through to Other.
var statusReasonToKind = map[metav1.StatusReason]core.ErrorKind{
	metav1.StatusReasonUnauthorized:       core.ErrorKindUnauthorized,
	metav1.StatusReasonForbidden:          core.ErrorKindForbidden,
	metav1.StatusReasonGone:               core.ErrorKindGone,
	metav1.StatusReasonExpired:            core.ErrorKindGone,
	metav1.StatusReasonNotFound:           core.ErrorKindNotFound,
	metav1.StatusReasonServerTimeout:      core.ErrorKindNetwork,
	metav1.StatusReasonTimeout:            core.ErrorKindNetwork,
	metav1.StatusReasonTooManyRequests:    core.ErrorKindNetwork,
	metav1.StatusReasonServiceUnavailable: core.ErrorKindNetwork,
	metav1.StatusReasonBadRequest:         core.ErrorKindOther,
	metav1.StatusReasonInvalid:            core.ErrorKindOther,
	metav1.StatusReasonInternalError:      core.ErrorKindOther,
}

// fatalReasons are Kubernetes failures that indicate permanently
// invalid configuration: the pipeline should stop instead of retrying.
var fatalReasons = map[metav1.StatusReason]bool{
	metav1.StatusReasonNotFound:         true,
	metav1.StatusReasonBadRequest:       true,
	metav1.StatusReasonInvalid:          true,
	metav1.StatusReasonMethodNotAllowed: true,
}

// wrapK8sError converts an error from a Kubernetes API call into a
// classified *core.TransportError. Context errors pass through
// untouched so cancellation keeps its identity.
func wrapK8sError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiStatus apierrors.APIStatus
	if errors.As(err, &apiStatus) {
		reason := apiStatus.Status().Reason
		kind, ok := statusReasonToKind[reason]
		if !ok {
			kind = core.ErrorKindOther
		}
		if fatalReasons[reason] {
			return core.NewFatalTransportError(kind, err)
		}
		return core.NewTransportError(kind, err)
	}

	if isNetworkError(err) {
		return core.NewTransportError(core.ErrorKindNetwork, err)
	}

	return core.NewTransportError(core.ErrorKindOther, err)
}

// wrapStatus classifies the metav1.Status embedded in a watch ERROR
// event. A 410/Gone status is the sole trigger for a full relist.
func wrapStatus(status *metav1.Status) error {
	err := apierrors.FromObject(status)
	if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
		return core.NewTransportError(core.ErrorKindGone, err)
	}
	return wrapK8sError(err)
}

// isNetworkError matches connection-level failures: refused or reset
// connections, DNS resolution, TLS handshakes surfaced through
// *url.Error, and timeouts.
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
