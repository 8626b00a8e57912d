// Package configs loads and saves the chatvault configuration.
//
// Configuration is a single TOML file, by default at
// $XDG_CONFIG_HOME/chatvault/config.toml:
//
//	app_name          = "chatvault"
//	database_path     = "/home/alice/.local/share/chatvault/chatvault.db"
//	pbkdf2_iterations = 100000
//	audit_log_path    = "/home/alice/.local/share/chatvault/audit.jsonl"
//
//	[nats]
//	url             = "nats://127.0.0.1:4222"
//	subject_prefix  = "chatvault.crypto"
//	queue           = "chatvault"
//	request_timeout = "5s"
//
// Values missing from the file keep their DefaultConfig value. Unknown keys
// and values that would weaken key derivation are rejected at load time.
//
// app_name is part of every v2 derived key. Two deployments that must read
// each other's messages need the same app_name.
package configs
