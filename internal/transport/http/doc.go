// Package http implements the JSON API of the disposal watch web server.
// Handlers stay thin: they parse and validate the request, call a service and
// render the result with go-chi/render. Failures are written as RFC 7807
// problem documents through errors.ErrorHandler.
//
// Routes:
//
//	GET  /api/report          latest report, optional ?level=高|中|低 and ?format=rows|table
//	POST /api/scan            start a scan in the background (202, or 409 while one runs)
//	GET  /api/health          liveness, version, scan state and latest evaluation date
package http
