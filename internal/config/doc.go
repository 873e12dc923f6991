// Package config handles configuration loading for arcstate-server.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, then overlaid with ARCSTATE_* environment variables. A missing
// file is not an error; the defaults describe a self-contained in-memory
// instance.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ARCSTATE_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  shutdown_timeout: "5s"
//	workspace:
//	  flush_delay: "500ms"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "localhost:8155"
//	  shutdown_timeout: "5s"
//
// Storage backend:
//
//	storage:
//	  backend: "sqlite"        # memory, sqlite, bolt, file
//	  path: "/var/lib/arcstate/state.db"
//
// Store prefixes and debounce:
//
//	preferences:
//	  prefix: "_arc_"
//	workspace:
//	  prefix: "_arcworkspace"
//	  flush_delay: "500ms"
//
// Authentication:
//
//	auth:
//	  enabled: true
//	  jwt_secret: "${ARCSTATE_JWT_SECRET}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
