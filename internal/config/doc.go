// Package config provides configuration loading, merging, and path management for agentchat.
//
// # Configuration Loading
//
// Load searches for and merges configuration from several sources, later
// sources overriding earlier ones:
//
//  1. A .env file in the working directory (process environment wins)
//  2. Global config (~/.config/agentchat/agentchat.json[c])
//  3. Project config (agentchat.json[c] and .agentchat/agentchat.json[c])
//  4. AGENTCHAT_CONFIG file
//  5. AGENTCHAT_CONFIG_CONTENT inline JSON
//  6. Environment variables (AGENTCHAT_AGENT, AGENTCHAT_ENDPOINT,
//     AGENTCHAT_STORAGE_DRIVER, AGENTCHAT_LOG_LEVEL, AGENTCHAT_PORT)
//
// Files may be JSON or JSONC; comments and trailing commas are stripped with
// tidwall/jsonc before decoding.
//
// # Variable Interpolation
//
// String values may reference the environment or other files:
//
//	{
//	  "agent": {
//	    "support": {
//	      "endpoint": "{env:SUPPORT_WEBHOOK}",
//	      "headers": {"Authorization": "{file:~/.secrets/support-token}"}
//	    }
//	  }
//	}
//
// Relative {file:} paths resolve against the directory of the config file
// that contains them.
//
// # Defaults
//
// When no agent is configured a single "assistant" agent is created. Every
// agent gets a namespace equal to its id unless one is given, and agents may
// not share a namespace since it prefixes all of their storage keys.
//
// # Paths
//
// GetPaths follows the XDG base directory layout:
//
//   - Config: ~/.config/agentchat, or AGENTCHAT_CONFIG_DIR
//   - Data:   ~/.local/share/agentchat (storage directory, sqlite database)
//   - State:  ~/.local/state/agentchat (log files)
package config
