// Package app wires configuration, telemetry, collaborators and services
// into the two entry points: a one-shot scan and the long-running web
// server.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, DISPO_* environment)
//  2. Initialize the slog logger and OpenTelemetry providers
//  3. Open the store backend (Excel workbook or Google Sheets)
//  4. Build the bulletin and market clients, the evaluation engine and the
//     optional notifier and concentration scraper
//  5. For the web server: mount the chi router, start the HTTP server and
//     the optional scan schedule, and shut down gracefully on SIGINT/SIGTERM
package app
