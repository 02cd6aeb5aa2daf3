package auth

import (
	"context"

	"github.com/warp/fleetlog/fleet"
)

// Context is the authenticated caller of one request.
type Context struct {
	User    fleet.User    `json:"user"`
	Session fleet.Session `json:"session"`
}

func (c *Context) Language() fleet.Language { return c.Session.Language }

// RequireAdmin returns ErrForbidden unless the caller is an admin.
func (c *Context) RequireAdmin() error {
	if !c.User.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// RequireRider returns ErrRiderOnly unless the caller is a rider.
func (c *Context) RequireRider() error {
	if !c.User.IsRider() {
		return ErrRiderOnly
	}
	return nil
}

type ctxKey struct{}

// WithContext attaches c to ctx.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the caller attached by WithContext.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok && c != nil
}
