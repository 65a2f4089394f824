// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix KUBEMIRROR_)
//  3. Config file (config.yaml in . or /etc/kubemirror/)
//  4. Compiled defaults
package config

// Viper keys for the mirror daemon.
const (
	keyMirrorAddress        = "mirror.address"
	keyMirrorAllowedOrigins = "mirror.allowed_origins"
	keyMirrorSource         = "mirror.source"
	keyMirrorKubeconfig     = "mirror.kubeconfig"
	keyMirrorHTTPBaseURL    = "mirror.http.base_url"
	keyMirrorHTTPToken      = "mirror.http.bearer_token"
	keyMirrorCollections    = "mirror.collections"
	keyMirrorBackoffFloor   = "mirror.backoff.floor"
	keyMirrorBackoffCeiling = "mirror.backoff.ceiling"
	keyMirrorBuffer         = "mirror.subscriber_buffer"
	keyMirrorLeaderEnabled  = "mirror.leader.enabled"
	keyMirrorLeaderLease    = "mirror.leader.lease_name"
	keyMirrorLeaderNS       = "mirror.leader.namespace"
)

// Source values accepted for mirror.source.
const (
	SourceKubernetes = "kubernetes"
	SourceHTTP       = "http"
)
