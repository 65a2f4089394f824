package kubernetes

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"
	"k8s.io/client-go/discovery"
)

// minBookmarkVersion is the minimum Kubernetes version whose watch
// implementation honours allowWatchBookmarks (beta, default-on since
// 1.17). Older servers silently ignore the flag, but requesting it
// from a server that predates the field entirely is avoided.
var minBookmarkVersion = semver.MustParse("v1.17.0")

// versionCache is a TTL cache in front of the discovery ServerVersion
// endpoint, with singleflight deduplication so that many pipelines
// starting at once issue a single request.
type versionCache struct {
	discovery discovery.DiscoveryInterface
	ttl       time.Duration

	mu        sync.RWMutex
	cached    *semver.Version
	expiresAt time.Time
	flight    singleflight.Group
}

func newVersionCache(disco discovery.DiscoveryInterface, ttl time.Duration) *versionCache {
	return &versionCache{
		discovery: disco,
		ttl:       ttl,
	}
}

// ServerVersion returns the API server's version, parsed as semver.
func (c *versionCache) ServerVersion() (*semver.Version, error) {
	c.mu.RLock()
	cached, expiresAt := c.cached, c.expiresAt
	c.mu.RUnlock()

	if cached != nil && time.Now().Before(expiresAt) {
		return cached, nil
	}

	v, err, _ := c.flight.Do("server-version", func() (any, error) {
		info, err := c.discovery.ServerVersion()
		if err != nil {
			return nil, err
		}
		parsed, err := semver.NewVersion(info.GitVersion)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = parsed
		c.expiresAt = time.Now().Add(c.ttl)
		c.mu.Unlock()

		return parsed, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*semver.Version), nil
}

// SupportsBookmarks reports whether the server accepts bookmark
// events. When the version cannot be determined the answer defaults
// to true; any reasonably current server qualifies, and a server that
// does not simply never sends bookmarks.
func (c *versionCache) SupportsBookmarks() bool {
	v, err := c.ServerVersion()
	if err != nil {
		slog.Warn("server version unavailable, assuming bookmark support", "error", err)
		return true
	}
	return !v.LessThan(minBookmarkVersion)
}
