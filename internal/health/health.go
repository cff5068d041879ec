// Package health provides readiness state tracking and the health check
// handlers behind /healthz and /readyz.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const probeTimeout = 2 * time.Second

// Readiness states. The app starts in Starting, flips to Ready once wiring
// completes, and enters Draining during shutdown so load balancers stop
// routing before in-flight requests finish.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// ProbeFunc checks one dependency. A nil error means the dependency can
// serve requests.
type ProbeFunc func(ctx context.Context) error

// Checker tracks the readiness state of the gateway plus its dependency
// probes. Safe for concurrent use; probes must be registered before the
// server starts.
type Checker struct {
	state  atomic.Int32
	probes []namedProbe
}

type namedProbe struct {
	name  string
	check ProbeFunc
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// AddProbe registers a named dependency probe run on every readiness check.
func (c *Checker) AddProbe(name string, check ProbeFunc) {
	c.probes = append(c.probes, namedProbe{name: name, check: check})
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always responds 200 OK. Use for the process liveness
// probe; it must not depend on downstream services.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when the state is Ready and every probe
// passes, 503 otherwise. The body names each failing dependency.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: c.State()}
		code := http.StatusOK
		if !c.IsReady() {
			code = http.StatusServiceUnavailable
		}

		if len(c.probes) > 0 {
			resp.Checks = make(map[string]string, len(c.probes))
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()
			for _, p := range c.probes {
				if err := p.check(ctx); err != nil {
					resp.Checks[p.name] = err.Error()
					code = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[p.name] = "ok"
			}
		}

		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
