// Package config loads and validates the throttle service configuration.
//
// # Loading
//
// Configuration is read from a YAML file, completed with defaults,
// optionally overridden from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Environment variables follow the naming convention THROTTLE_SECTION_FIELD,
// for example THROTTLE_SERVER_LISTEN_ADDRESS or THROTTLE_AUDIT_SQLITE_PATH.
// Individual limiters can be tuned with THROTTLE_LIMITERS_<NAME>_RATE and
// THROTTLE_LIMITERS_<NAME>_BURST, where NAME is upper-cased with dashes
// replaced by underscores.
//
// # Example
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	limiters:
//	  api:
//	    strategy: token_bucket
//	    rate: 100
//	    per: second
//	  uploads:
//	    strategy: sliding_window
//	    rate: 20
//	    per: minute
//	    reset_schedule: "0 0 * * *"
//
//	middleware:
//	  enabled: true
//	  limiter: api
//	  mode: reject
//
// # Validation
//
// Validate collects every problem into a ValidationError so a single run
// reports all misconfigured fields.
//
// # Hot Reload
//
// FileWatcher watches the configuration file with fsnotify and invokes a
// callback after a debounce interval; the limits manager reloads from it.
package config
