// Package leader runs Kubernetes Lease leader election so that HA
// deployments keep hot standbys: every replica serves reads from its
// mirror, but only the leader signals readiness to consumers that
// require a single authoritative instance.
package leader

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	coordinationv1 "k8s.io/client-go/kubernetes/typed/coordination/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

const defaultLeaseName = "kubemirror-leader"

// Elector participates in Lease-based leader election.
type Elector struct {
	namespace string
	leaseName string
	identity  string

	isLeader atomic.Bool

	coordClient coordinationv1.CoordinationV1Interface
}

// Config parameterizes an Elector. Zero values are detected from the
// pod environment where possible.
type Config struct {
	// Namespace where the Lease object lives. If empty, it is
	// detected from POD_NAMESPACE or the service account mount.
	Namespace string
	// LeaseName is the name of the Lease object.
	LeaseName string
	// Identity uniquely names this participant. If empty, it is
	// detected from POD_NAME or the hostname.
	Identity string
}

// NewElector builds an elector against the API server described by
// restCfg.
func NewElector(restCfg *rest.Config, cfg Config) (*Elector, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = detectNamespace()
	}
	if ns == "" {
		return nil, fmt.Errorf("unable to detect namespace; set POD_NAMESPACE or mount serviceaccount namespace")
	}

	leaseName := cfg.LeaseName
	if leaseName == "" {
		leaseName = defaultLeaseName
	}

	identity := cfg.Identity
	if identity == "" {
		identity = detectIdentity()
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, err
	}

	return &Elector{
		namespace:   ns,
		leaseName:   leaseName,
		identity:    identity,
		coordClient: clientset.CoordinationV1(),
	}, nil
}

func (e *Elector) IsLeader() bool {
	return e.isLeader.Load()
}

func (e *Elector) Identity() string {
	return e.identity
}

// LeaderIdentity returns the current lease holder.
func (e *Elector) LeaderIdentity(ctx context.Context) (string, error) {
	lease, err := e.coordClient.Leases(e.namespace).Get(ctx, e.leaseName, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	if lease.Spec.HolderIdentity == nil || strings.TrimSpace(*lease.Spec.HolderIdentity) == "" {
		return "", fmt.Errorf("lease %s/%s has no holder identity yet", e.namespace, e.leaseName)
	}
	return strings.TrimSpace(*lease.Spec.HolderIdentity), nil
}

// Run blocks until ctx is done, invoking the callbacks on leadership
// transitions. The returned error is only for setup failures.
func (e *Elector) Run(ctx context.Context, onStartedLeading func(context.Context), onStoppedLeading func()) error {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.leaseName,
			Namespace: e.namespace,
		},
		Client: e.coordClient,
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.identity,
		},
	}

	lec := leaderelection.LeaderElectionConfig{
		Lock:          lock,
		LeaseDuration: 15 * time.Second,
		RenewDeadline: 10 * time.Second,
		RetryPeriod:   2 * time.Second,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(c context.Context) {
				e.isLeader.Store(true)
				onStartedLeading(c)
			},
			OnStoppedLeading: func() {
				e.isLeader.Store(false)
				onStoppedLeading()
			},
		},
		ReleaseOnCancel: true,
		Name:            "kubemirror",
	}

	le, err := leaderelection.NewLeaderElector(lec)
	if err != nil {
		return err
	}

	le.Run(ctx) // blocks
	return nil
}

func detectNamespace() string {
	if ns := strings.TrimSpace(os.Getenv("POD_NAMESPACE")); ns != "" {
		return ns
	}
	// Standard location in Kubernetes pods
	if b, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(b))
	}
	return ""
}

func detectIdentity() string {
	if n := strings.TrimSpace(os.Getenv("POD_NAME")); n != "" {
		return n
	}
	if h, err := os.Hostname(); err == nil && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h) + "-" + shortRandom()
	}
	return shortRandom()
}

func shortRandom() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf) // best-effort
	return base64.RawStdEncoding.EncodeToString(buf)
}
