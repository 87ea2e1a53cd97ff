// Package server hosts the Fiber HTTP service: the middleware chain (panic
// recovery, request IDs, the cache crowding check), the error handler that
// turns every uncaught failure into the configured error redirect, and the
// shared upstream HTTP client. Route handlers live in server/routes and the
// proxy flow in internal/proxy; both receive their dependencies explicitly.
package server
