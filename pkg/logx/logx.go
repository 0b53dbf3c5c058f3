// Package logx contains helpers to build slog handlers out of middlewares.
package logx

import (
	"context"

	"golang.org/x/exp/slog"
)

// HandleFunc is a function that handles a record.
type HandleFunc func(context.Context, slog.Record) error

// Middleware is a middleware for logging handler.
type Middleware func(HandleFunc) HandleFunc

// Chain is a handler that passes records through middlewares
// before the wrapped handler.
type Chain struct {
	next   slog.Handler
	mws    []Middleware
	handle HandleFunc
}

// NewChain wraps the handler with middlewares, the first one is called first.
func NewChain(h slog.Handler, mws ...Middleware) *Chain {
	c := &Chain{next: h, mws: mws, handle: h.Handle}
	for i := len(mws) - 1; i >= 0; i-- {
		c.handle = mws[i](c.handle)
	}
	return c
}

// Enabled reports whether the wrapped handler handles records at the level.
func (c *Chain) Enabled(ctx context.Context, lvl slog.Level) bool { return c.next.Enabled(ctx, lvl) }

// Handle runs the chain of middleware and the handler.
func (c *Chain) Handle(ctx context.Context, rec slog.Record) error { return c.handle(ctx, rec) }

// WithGroup returns a new Chain with the given group.
func (c *Chain) WithGroup(group string) slog.Handler { return NewChain(c.next.WithGroup(group), c.mws...) }

// WithAttrs returns a new Chain with the given attributes.
func (c *Chain) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewChain(c.next.WithAttrs(attrs), c.mws...)
}

// NoOp returns a handler that drops every record.
func NoOp() slog.Handler { return noop{} }

type noop struct{}

func (noop) Enabled(context.Context, slog.Level) bool  { return false }
func (noop) Handle(context.Context, slog.Record) error { return nil }
func (n noop) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n noop) WithGroup(string) slog.Handler           { return n }
