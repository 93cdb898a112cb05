// Package server provides HTTP routing, middleware and the handlers of the download job API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so requests with an
// unregistered method receive 405 from the mux itself.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Endpoints
//
//	POST   /download_job          → 202 {"id": N}
//	GET    /download_job          → job list
//	GET    /download_job/{id}     → job
//	DELETE /download_job/{id}     → 204
//	GET    /downloaded_file       → artifact list
//	GET    /downloaded_file/{id}  → file stream (attachment)
//	DELETE /downloaded_file/{id}  → 204, removes the file
//	GET    /health                → {"status": "ok"}
//
// # Middleware
//
// [NewRouter] installs [Recover], [RequestID], [Logging], [CORS], [RateLimit] and [BearerAuth].
// Errors are returned as {"error": "..."} with the status chosen from the wrapped sentinel:
// [shared.ErrNotFound] is 404, [shared.ErrInvalidInput] and [shared.ErrInvalidArgument] are 400,
// [shared.ErrUnauthorized] is 401 and anything else is 500.
package server
