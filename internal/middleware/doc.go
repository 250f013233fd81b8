// Package middleware holds the chi middleware chain of the web server:
// request IDs, structured request logs, panic recovery, rate limiting,
// tracing with request metrics and query validation.
package middleware
