package core

import (
	"fmt"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// CollectionSpec identifies one resource collection to mirror. An
// empty Namespace watches across all namespaces (or a cluster-scoped
// resource).
type CollectionSpec struct {
	Name          string
	Group         string
	Version       string
	Resource      string
	Namespace     string
	LabelSelector string
	FieldSelector string
}

// GVR returns the collection's group/version/resource triple.
func (c CollectionSpec) GVR() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: c.Group, Version: c.Version, Resource: c.Resource}
}

// ParseCollection parses a collection string of the form
//
//	[group/]version/resource[@namespace][?label=...&field=...]
//
// Core-group resources omit the group segment ("v1/pods"); everything
// else uses three segments ("apps/v1/deployments"). The derived name
// is "resource" for the core group and "resource.group" otherwise,
// matching the plural.group convention used by kubectl.
func ParseCollection(s string) (CollectionSpec, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return CollectionSpec{}, fmt.Errorf("empty collection spec")
	}

	var spec CollectionSpec

	if raw, spec.LabelSelector, spec.FieldSelector = splitSelectors(raw); raw == "" {
		return CollectionSpec{}, fmt.Errorf("collection %q: missing resource", s)
	}
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		spec.Namespace = raw[at+1:]
		raw = raw[:at]
	}

	switch parts := strings.Split(raw, "/"); len(parts) {
	case 2:
		spec.Version, spec.Resource = parts[0], parts[1]
	case 3:
		spec.Group, spec.Version, spec.Resource = parts[0], parts[1], parts[2]
	default:
		return CollectionSpec{}, fmt.Errorf("collection %q: want [group/]version/resource", s)
	}

	if spec.Version == "" || spec.Resource == "" {
		return CollectionSpec{}, fmt.Errorf("collection %q: version and resource are required", s)
	}

	spec.Name = spec.Resource
	if spec.Group != "" {
		spec.Name = spec.Resource + "." + spec.Group
	}
	return spec, nil
}

// splitSelectors strips an optional "?label=...&field=..." suffix.
// Selector parse failures are ignored rather than fatal; a bad
// selector string simply selects nothing server-side.
func splitSelectors(raw string) (rest, label, field string) {
	q := strings.IndexByte(raw, '?')
	if q < 0 {
		return raw, "", ""
	}
	values, err := url.ParseQuery(raw[q+1:])
	if err != nil {
		return raw[:q], "", ""
	}
	return raw[:q], values.Get("label"), values.Get("field")
}

// ParseCollections parses each entry, rejecting duplicates by name.
func ParseCollections(entries []string) ([]CollectionSpec, error) {
	specs := make([]CollectionSpec, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		spec, err := ParseCollection(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("collection %q configured twice", spec.Name)
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}
	return specs, nil
}
