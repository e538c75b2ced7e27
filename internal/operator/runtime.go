// Package operator implements the OperatorController: a runtime
// enable/disable switch around a controller-runtime manager watching the
// Database custom resource, plus the CRD bootstrap and cross-namespace
// secret replication that come with reconciling it.
package operator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/wafflehacks/external-postgres/internal/provisioning"
)

// Status reports the controller's current runtime slot.
type Status struct {
	Running bool
}

// Config holds everything the controller needs to build a manager once
// it is started.
type Config struct {
	// KubeconfigPath is tilde-expanded and checked for existence before
	// Start transitions to Running. Empty means in-cluster config.
	KubeconfigPath string
	KubeContext    string

	ManagementAddress string
	Secret            SecretConfig
}

// SecretConfig carries the connection-presentation values (PGHOST, PGPORT,
// PGSSLMODE) written into every replicated credential secret; these may
// differ from the administrative connection the operator itself uses.
type SecretConfig struct {
	Host    string
	Port    string
	SSLMode string
}

// Controller is the OperatorController. It is safe for concurrent use;
// Start/Stop/Status are all guarded by a single mutex around the runtime
// slot, never held across I/O.
type Controller struct {
	cfg    Config
	engine *provisioning.Engine
	log    logr.Logger

	mu      sync.Mutex
	running *runningState
}

type runningState struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Stopped Controller. Callers should invoke Start once at
// process startup; if it returns false, the controller remains Stopped
// until a later Start call (typically driven through the control-plane
// HTTP API) succeeds.
func New(cfg Config, engine *provisioning.Engine, log logr.Logger) *Controller {
	return &Controller{cfg: cfg, engine: engine, log: log}
}

// Status reports whether the controller is currently Running.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Running: c.running != nil}
}

// Start transitions Stopped -> Running. It returns true iff the
// kubeconfig exists at the configured path; a Start call while already
// Running is a no-op that returns true.
func (c *Controller) Start(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.running != nil {
		c.mu.Unlock()
		return true, nil
	}
	c.mu.Unlock()

	restConfig, err := c.loadRESTConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	mgr, err := buildManager(restConfig, c.cfg, c.engine, c.log)
	if err != nil {
		return false, err
	}

	// The manager's lifetime is owned by the stored cancel/Stop(), not by
	// ctx: Start is frequently called with a short-lived *http.Request
	// context (POST /operator/state), which is cancelled the instant the
	// handler returns, and that must not tear down the manager it started.
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	if c.running != nil {
		// Lost a race with a concurrent Start; keep the winner, discard ours.
		c.mu.Unlock()
		cancel()
		return true, nil
	}
	c.running = &runningState{cancel: cancel, done: done}
	c.mu.Unlock()

	go func() {
		defer close(done)
		if err := mgr.Start(runCtx); err != nil {
			c.log.Error(err, "controller manager exited")
		}
	}()

	return true, nil
}

// Stop transitions Running -> Stopped, cancelling the watch loop and
// awaiting in-flight reconciles before returning. Returns true iff a
// transition occurred.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	running := c.running
	c.running = nil
	c.mu.Unlock()

	if running == nil {
		return false
	}

	running.cancel()
	<-running.done
	return true
}

// loadRESTConfig resolves the kubeconfig (tilde-expanded) or falls back
// to the in-cluster config when no path is configured.
func (c *Controller) loadRESTConfig() (*rest.Config, error) {
	if c.cfg.KubeconfigPath == "" {
		return rest.InClusterConfig()
	}

	path := expandHome(c.cfg.KubeconfigPath)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: path}
	overrides := &clientcmd.ConfigOverrides{}
	if c.cfg.KubeContext != "" {
		overrides.CurrentContext = c.cfg.KubeContext
	}

	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

// expandHome expands a leading "~" to the user's home directory, mirroring
// shell tilde expansion for a kubeconfig path supplied as an environment
// variable.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return fmt.Sprintf("%s%s", home, path[1:])
	}
	return path
}
