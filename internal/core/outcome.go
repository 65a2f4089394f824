package core

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// OutcomeKind discriminates the variants of a WatchOutcome.
type OutcomeKind string

const (
	// OutcomeApplied carries the full current body of a created or
	// updated object.
	OutcomeApplied OutcomeKind = "APPLIED"
	// OutcomeDeleted carries the last-known body of a removed object
	// so consumers can run cleanup logic.
	OutcomeDeleted OutcomeKind = "DELETED"
	// OutcomeBookmark advances the watch watermark without an object
	// change.
	OutcomeBookmark OutcomeKind = "BOOKMARK"
	// OutcomeRestarted signals that the watch stream was invalidated
	// and a fresh full relist replaced the working set. Consumers must
	// treat it as a resync, not as a sequence of individual applies.
	OutcomeRestarted OutcomeKind = "RESTARTED"
)

// WatchOutcome is one element of the lazy, infinite sequence a Watcher
// produces for a collection. Exactly one variant applies per value:
// Object is set for APPLIED and DELETED, Snapshot for RESTARTED, and
// BOOKMARK carries only the version.
//
// Version is the opaque resource version supplied by the server; it is
// never parsed. Sequence is a per-watcher counter stamped in emission
// order, which preserves the server's ordering without interpreting
// version tokens.
type WatchOutcome struct {
	Kind     OutcomeKind
	Object   *unstructured.Unstructured
	Snapshot []*unstructured.Unstructured
	Version  string
	Sequence uint64
}

// Identity returns the identity of the outcome's object. It is only
// meaningful for APPLIED and DELETED outcomes.
func (o WatchOutcome) Identity() ObjectIdentity {
	if o.Object == nil {
		return ObjectIdentity{}
	}
	return IdentityOf(o.Object)
}
