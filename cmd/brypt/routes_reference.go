package main

import "github.com/brypt-io/brypt-core/pkg/api"

// registerReferenceRoutes binds the small set of demonstration routes a
// brypt host process typically wires, as listed and searched by the
// `routes` diagnostic.
func registerReferenceRoutes(svc *api.Service) {
	svc.RegisterRoute("/ping", "liveness probe; replies pong", func(ctx *api.Context) {
		ctx.Respond([]byte("pong"), 200)
	})
	svc.RegisterRoute("/echo", "returns the request payload unchanged", func(ctx *api.Context) {
		ctx.Respond(ctx.Payload, 200)
	})
	svc.RegisterRoute("/cluster/announce", "one-way broadcast notice with no reply expected", func(ctx *api.Context) {
	})
}
