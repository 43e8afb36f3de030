// Package config loads runtime configuration for the authkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c/-config or
//     $AUTHKEEPER_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-f string   path of the local session database
//	-t int      per-request timeout (seconds)
//
// # JSON schema
//
// Timeouts use timex.Duration, so values can be either strings like "10s"
// or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "session_file": "authkeeper.db",
//	  "request_timeout": "10s"
//	}
package config
