package core

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ObjectIdentity is the immutable composite key of a watched object:
// kind, namespace (empty for cluster-scoped resources), and name. Two
// objects with the same identity are the same logical resource across
// time.
type ObjectIdentity struct {
	Kind      string
	Namespace string
	Name      string
}

// IdentityOf derives the identity of an unstructured object from its
// kind and metadata.
func IdentityOf(obj *unstructured.Unstructured) ObjectIdentity {
	return ObjectIdentity{
		Kind:      obj.GetKind(),
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}
}

// String renders the identity as "kind/namespace/name"; the namespace
// segment is omitted for cluster-scoped objects.
func (id ObjectIdentity) String() string {
	if id.Namespace == "" {
		return id.Kind + "/" + id.Name
	}
	return id.Kind + "/" + id.Namespace + "/" + id.Name
}

// Less orders identities lexicographically by kind, namespace, name.
// Store snapshots are returned in this order.
func (id ObjectIdentity) Less(other ObjectIdentity) bool {
	if c := strings.Compare(id.Kind, other.Kind); c != 0 {
		return c < 0
	}
	if c := strings.Compare(id.Namespace, other.Namespace); c != 0 {
		return c < 0
	}
	return id.Name < other.Name
}
