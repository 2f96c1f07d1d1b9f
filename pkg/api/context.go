package api

import (
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/router"
	"github.com/brypt-io/brypt-core/internal/tracking"
)

// Context is the handler-reply surface a registered route's OnMessage
// receives alongside the inbound parcel's fields. It wraps
// router.Next so a route handler never imports internal/router directly.
type Context struct {
	next router.Next

	Source     string
	Route      string
	Payload    []byte
	StatusCode int
}

// OnMessage is a route handler: it inspects ctx's parcel fields and calls
// exactly one of ctx.Respond, ctx.Dispatch, or ctx.Defer.
type OnMessage func(ctx *Context)

// Respond seals a reply carrying the same tracker key as the inbound
// parcel, if any, back to the immediate sender.
func (c *Context) Respond(payload []byte, statusCode int) errs.ResultCode {
	return errs.Translate(c.next.Respond(payload, statusCode))
}

// Dispatch relays a fresh, untracked message to route.
func (c *Context) Dispatch(route string, payload []byte) errs.ResultCode {
	return errs.Translate(c.next.Dispatch(route, payload))
}

// Defer sends notice immediately and stages a one-slot tracker that
// resolves with response on the next scheduler tick.
func (c *Context) Defer(noticeType, noticeRoute string, noticePayload, responsePayload []byte) (tracking.Key, errs.ResultCode) {
	key, err := c.next.Defer(
		router.DeferNotice{Type: noticeType, Route: noticeRoute, Payload: noticePayload},
		router.DeferResponse{Payload: responsePayload},
	)
	return key, errs.Translate(err)
}
