// Package connectivity dispatches named service calls either to an
// in-process handler or to a remote docparse instance, as decided by a
// SQLite routes table that can change while the process runs.
//
//	router := connectivity.New(connectivity.WithLogger(logger))
//	router.RegisterTransport("http", connectivity.HTTPFactory())
//	pipe.RegisterConnectivity(router)
//	go router.Watch(ctx, db, time.Second)
//
//	resp, err := router.Call(ctx, "docparse_parse", payload)
package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Handler is a transport-agnostic service function: JSON bytes in, JSON bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory builds a Handler for a remote endpoint. The returned
// close function, if non-nil, runs when the route is replaced or removed.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

const (
	StrategyLocal    = "local"
	StrategyHTTP     = "http"
	StrategyDisabled = "disabled"
)

type route struct {
	Service  string
	Strategy string
	Endpoint string
	Config   json.RawMessage
}

func (rt route) fingerprint() string {
	return rt.Strategy + "|" + rt.Endpoint + "|" + string(rt.Config)
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router is safe for concurrent use. Calls take a read lock; Reload swaps
// the remote table under the write lock.
type Router struct {
	mu        sync.RWMutex
	local     map[string]Handler
	remote    map[string]remoteEntry
	routes    map[string]route
	factories map[string]TransportFactory
	mw        HandlerMiddleware
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMiddleware wraps every dispatched call, local or remote.
func WithMiddleware(mws ...HandlerMiddleware) Option {
	return func(r *Router) { r.mw = Chain(mws...) }
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		local:     make(map[string]Handler),
		remote:    make(map[string]remoteEntry),
		routes:    make(map[string]route),
		factories: make(map[string]TransportFactory),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for service.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.local[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers the factory used by routes whose strategy is protocol.
func (r *Router) RegisterTransport(protocol string, f TransportFactory) {
	r.mu.Lock()
	r.factories[protocol] = f
	r.mu.Unlock()
}

// Services lists the locally registered service names, sorted.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.local))
	for name := range r.local {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches to, in order: a disabled route (error), a remote route,
// the local handler. A service with none of these is not routable.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remote[service]
	localH := r.local[service]
	rt, hasRoute := r.routes[service]
	mw := r.mw
	r.mu.RUnlock()

	var h Handler
	switch {
	case hasRoute && rt.Strategy == StrategyDisabled:
		return nil, &ErrServiceDisabled{Service: service}
	case hasRemote:
		r.logger.DebugContext(ctx, "routing remote", "service", service, "endpoint", rt.Endpoint)
		h = entry.handler
	case localH != nil:
		h = localH
	default:
		return nil, &ErrServiceNotFound{Service: service}
	}

	if mw != nil {
		h = mw(h)
	}
	return h(WithService(ctx, service), payload)
}

// Reload reads the routes table and rebuilds remote handlers whose route
// changed. Unchanged routes keep their handler.
func (r *Router) Reload(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}') FROM routes`)
	if err != nil {
		return fmt.Errorf("connectivity: query routes: %w", err)
	}
	defer rows.Close()

	next := make(map[string]route)
	for rows.Next() {
		var rt route
		var cfg string
		if err := rows.Scan(&rt.Service, &rt.Strategy, &rt.Endpoint, &cfg); err != nil {
			return fmt.Errorf("connectivity: scan route: %w", err)
		}
		rt.Config = json.RawMessage(cfg)
		next[rt.Service] = rt
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("connectivity: rows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make(map[string]remoteEntry, len(next))
	for name, rt := range next {
		if rt.Strategy == StrategyLocal || rt.Strategy == StrategyDisabled {
			continue
		}
		if old, ok := r.routes[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, ok := r.remote[name]; ok {
				entries[name] = existing
				continue
			}
		}
		factory, ok := r.factories[rt.Strategy]
		if !ok {
			r.logger.Warn("no transport factory for strategy", "service", name, "strategy", rt.Strategy)
			continue
		}
		h, closeFn, err := factory(rt.Endpoint, rt.Config)
		if err != nil {
			r.logger.Error("transport factory failed",
				"service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint, "error", err)
			continue
		}
		entries[name] = remoteEntry{handler: h, close: closeFn}
	}

	for name, old := range r.remote {
		if old.close == nil {
			continue
		}
		if _, kept := entries[name]; !kept || r.routes[name].fingerprint() != next[name].fingerprint() {
			old.close()
		}
	}

	r.remote = entries
	r.routes = next
	r.logger.Info("routes reloaded", "total", len(next), "remote", len(entries))
	return nil
}

// Close releases every remote handler.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.remote {
		if e.close != nil {
			e.close()
		}
	}
	r.remote = make(map[string]remoteEntry)
	r.routes = make(map[string]route)
	return nil
}
