// Package config loads runtime configuration for the claimer.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables, after loading ./.env with godotenv (the process
//     environment always wins over .env values).
//  4. Command-line flags, which override everything above.
//
// Supported flags
//
//	-d string   data directory
//	-n int      maximum number of accounts processed concurrently
//	-p string   site profile (JSON selector descriptors)
//	-l string   log level (debug, info, warn, error)
//	-headless   run browsers without a window
//	-auto       run one claim pass and exit
//
// Environment
//
//	PROMOCLAIM_DATA_DIR     data directory, honored before any default lookup
//	PROMOCLAIM_PASSPHRASE   derive the secret key from a passphrase
//	PROMOCLAIM_LOG_LEVEL    log level
//
// # JSON schema
//
// Intervals use timex.Duration, so "3s" and integer nanoseconds both work.
// Only keys present in the file are applied:
//
//	{
//	  "custom_data_path": "/srv/promoclaim",
//	  "max_concurrency": 3,
//	  "site_profile": "profiles/store.json",
//	  "headless": false,
//	  "session_ttl": "720h",
//	  "item_pause": "3s",
//	  "login_timeout": "5m",
//	  "notification_domains": ["epicgames.com", "sentry.io"]
//	}
//
// The data directory is resolved exactly once, by ResolveDataDir; every file
// path in the program derives from (*Config) path helpers.
package config
