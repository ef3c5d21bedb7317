// Package kit holds the small cross-transport plumbing shared by the
// relay's HTTP and MCP surfaces: the Endpoint shape, request-scoped
// context values, and the MCP tool adapter.
package kit

import "context"

// Endpoint is a transport-agnostic operation: a typed request in, a typed
// response out. HTTP handlers and MCP tools both wrap Endpoints so the
// relay logic is written once.
type Endpoint func(ctx context.Context, req any) (any, error)
