package config

import (
	"strings"
	"time"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// MirrorOptions defines the configuration entries of the mirror
// daemon. Each entry is registered as a viper default and a CLI flag.
var MirrorOptions = []Option{
	{Key: keyMirrorAddress, Flag: toFlag(keyMirrorAddress), Default: ":8383", Description: "Mirror API listen address"},
	{Key: keyMirrorAllowedOrigins, Flag: toFlag(keyMirrorAllowedOrigins), Default: []string{}, Description: "Mirror API allowed CORS origins"},
	{Key: keyMirrorSource, Flag: toFlag(keyMirrorSource), Default: SourceKubernetes, Description: "Watch source (kubernetes or http)"},
	{Key: keyMirrorKubeconfig, Flag: toFlag(keyMirrorKubeconfig), Default: "", Description: "Kubeconfig path (empty for in-cluster)"},
	{Key: keyMirrorHTTPBaseURL, Flag: toFlag(keyMirrorHTTPBaseURL), Default: "", Description: "Base URL for the http watch source"},
	{Key: keyMirrorHTTPToken, Flag: toFlag(keyMirrorHTTPToken), Default: "", Description: "Bearer token for the http watch source"},
	{Key: keyMirrorCollections, Flag: toFlag(keyMirrorCollections), Default: []string{"v1/pods"}, Description: "Collections to mirror (group/version/resource[@namespace][?selectors])"},
	{Key: keyMirrorBackoffFloor, Flag: toFlag(keyMirrorBackoffFloor), Default: 500 * time.Millisecond, Description: "Initial relist backoff delay"},
	{Key: keyMirrorBackoffCeiling, Flag: toFlag(keyMirrorBackoffCeiling), Default: 30 * time.Second, Description: "Maximum relist backoff delay"},
	{Key: keyMirrorBuffer, Flag: toFlag(keyMirrorBuffer), Default: 64, Description: "Per-subscriber event buffer size"},
	{Key: keyMirrorLeaderEnabled, Flag: toFlag(keyMirrorLeaderEnabled), Default: false, Description: "Enable Lease-based leader election"},
	{Key: keyMirrorLeaderLease, Flag: toFlag(keyMirrorLeaderLease), Default: "kubemirror-leader", Description: "Leader election Lease name"},
	{Key: keyMirrorLeaderNS, Flag: toFlag(keyMirrorLeaderNS), Default: "", Description: "Leader election Lease namespace (empty to detect)"},
}

// toFlag converts a viper key like "mirror.backoff.floor" into a CLI
// flag like "backoff-floor" by lower-casing, replacing dots and
// underscores with hyphens, and stripping the "mirror-" prefix.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	return strings.TrimPrefix(flag, "mirror-")
}
