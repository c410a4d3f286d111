// Package task defines the contract between the admission path and the
// media operations it runs, plus the registry that maps route names to them.
package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrUnknownRoute   = errors.New("unknown route")
	ErrDuplicateRoute = errors.New("route already registered")
)

// Outcome is what a task reports back: a payload, the route it ran for and
// an HTTP-like status. Status 200 means success.
type Outcome struct {
	Payload any
	Route   string
	Status  int
}

// OK builds a successful outcome.
func OK(route string, payload any) Outcome {
	return Outcome{Payload: payload, Route: route, Status: 200}
}

// Fail builds a declared failure with a text payload.
func Fail(route string, status int, message string) Outcome {
	return Outcome{Payload: message, Route: route, Status: status}
}

// Func runs one media operation. A returned error is a fault.
type Func func(ctx context.Context, params Params) (Outcome, error)

// Params is the flat parameter mapping taken from the request body.
type Params map[string]any

func (p Params) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ID returns the client-supplied correlation id, if any.
func (p Params) ID() (string, bool) {
	v, ok := p["id"]
	if !ok || v == nil {
		return "", false
	}
	return p.str("id"), true
}

// WebhookURL returns the callback address, or "" when absent.
func (p Params) WebhookURL() string {
	return strings.TrimSpace(p.str("webhook_url"))
}

// UserID returns the authenticated caller attached by the HTTP layer.
func (p Params) UserID() string {
	return p.str("user_id")
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Decode copies the parameters into a typed request struct using its json tags.
func (p Params) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           dst,
		Squash:           true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

// Route binds a public route name to its task.
type Route struct {
	Name string
	// BypassQueue forces synchronous execution even when a webhook is given.
	BypassQueue bool
	Run         Func
	// NewRequest returns a pointer to the request struct used for validation.
	NewRequest func() any
}

// Registry maps route names to routes. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]Route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]Route)}
}

// Register adds a route. Names must be unique and non-empty.
func (r *Registry) Register(route Route) error {
	if route.Name == "" {
		return errors.New("route name is required")
	}
	if route.Run == nil {
		return fmt.Errorf("route %s: task function is required", route.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[route.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, route.Name)
	}
	r.routes[route.Name] = route
	return nil
}

// Lookup returns the route registered under name.
func (r *Registry) Lookup(name string) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[name]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	return route, nil
}

// Routes lists registered routes sorted by name.
func (r *Registry) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
