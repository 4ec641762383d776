// Package config loads subforge's declarative Lua configuration.
//
// The file ($SUBFORGE_CONFIG_DIR/config.lua) runs in a sandboxed gopher-lua
// VM with a read-only platform table injected, so settings can branch on
// the host:
//
//	subforge = {
//	  paths = { data = "~/.local/share/subforge" },
//	  download = { max_attempts = 3, initial_backoff = "1s" },
//	  process = { timeout = "10m" },
//	  ledger = { backend = "sqlite" },
//	  log = { level = "debug", format = "json" },
//	  github = { token = "" },
//	  models = {
//	    default = platform.is_apple_silicon and "medium" or "base",
//	    checksums = { ["base.en"] = "<sha256>" },
//	  },
//	  signing = { keyring = "~/.config/subforge/keys.asc" },
//	  strategies = { ["yt-dlp"] = { "release", "brew" } },
//	  concurrency = 2,
//	}
//
// Every field is optional; a missing file yields the defaults. The os, io,
// debug and module-loading libraries are removed from the VM and parsing is
// bounded by a timeout.
package config
