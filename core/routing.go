package core

import (
	"context"
	"fmt"
)

// RouteKind tells where continuations posted through a Router resume.
type RouteKind int

const (
	// RouteNone is the default runtime behaviour: a new goroutine.
	RouteNone RouteKind = iota

	// RoutePump resumes on the goroutine pumping a PumpContext.
	RoutePump

	// RoutePool resumes on the worker pool's shared queue.
	RoutePool
)

func (k RouteKind) String() string {
	switch k {
	case RouteNone:
		return "none"
	case RoutePump:
		return "pump"
	case RoutePool:
		return "pool"
	default:
		return fmt.Sprintf("route(%d)", int(k))
	}
}

// Router is the ambient routing token: it decides where a continuation runs.
//
// Post must be safe to call from any goroutine, since a suspended operation
// may be completed by an arbitrary one. Post never runs task inline.
type Router interface {
	Post(ctx context.Context, task Task)
	Kind() RouteKind
}

type routerKeyType struct{}

var routerKey routerKeyType

// WithRouter returns a context carrying r as its routing token. Routing
// follows the context, so leaving the scope that owns the derived context
// restores the previous token.
func WithRouter(ctx context.Context, r Router) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routerKey, r)
}

// RouterFromContext returns the routing token carried by ctx, or nil for
// "no special routing".
func RouterFromContext(ctx context.Context) Router {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(routerKey).(Router); ok {
		return v
	}
	return nil
}

// RouteKindOf reports the kind of routing ctx carries.
func RouteKindOf(ctx context.Context) RouteKind {
	if r := RouterFromContext(ctx); r != nil {
		return r.Kind()
	}
	return RouteNone
}

// Post schedules task according to the routing token carried by ctx.
// Without a token the task runs on a new goroutine.
func Post(ctx context.Context, task Task) {
	if task == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if r := RouterFromContext(ctx); r != nil {
		r.Post(ctx, task)
		return
	}
	go task(ctx)
}

// runDetached runs a continuation that lost its route (pump finished, pool
// closed) on a fresh goroutine with routing cleared.
func runDetached(ctx context.Context, task Task) {
	go task(WithRouter(ctx, nil))
}
