// Package config loads the scanner configuration.
//
// # Configuration Sources
//
// Values are layered, later sources winning:
//
//  1. Default()
//  2. A YAML file: DISPO_CONFIG_FILE, or config.yaml next to the working
//     directory or the executable
//  3. Environment variables prefixed with DISPO_
//
// # Environment Variables
//
// Each section maps to a prefix:
//
//	DISPO_SERVER_PORT=8080
//	DISPO_RULES_SAFE_HARBOR=true
//	DISPO_RULES_COUNTING_CLAUSES=1,2,3,4,5,6,7,8
//	DISPO_RISK_PRICE_BAND=0.32
//	DISPO_STORE_BACKEND=sheets
//	DISPO_NOTIFY_WEBHOOK_URL=https://discord.com/api/webhooks/...
//
// Rule tracks can only be overridden from YAML:
//
//	rules:
//	  window_size: 30
//	  tracks:
//	    - {name: 連續3個營業日, window: 3, threshold: 3}
//	    - {name: 最近30個營業日內12日, window: 30, threshold: 12}
//
// # Validation
//
// Load validates struct tags with go-playground/validator and checks that
// every track fits inside the simulation window.
package config
