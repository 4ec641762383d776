package config

import "time"

// Lua schema field names.
const (
	luaGlobal = "subforge"

	luaFieldPaths       = "paths"
	luaFieldDownload    = "download"
	luaFieldProcess     = "process"
	luaFieldLedger      = "ledger"
	luaFieldLog         = "log"
	luaFieldGitHub      = "github"
	luaFieldModels      = "models"
	luaFieldSigning     = "signing"
	luaFieldStrategies  = "strategies"
	luaFieldConcurrency = "concurrency"
)

// Limits applied while parsing.
const (
	MaxConfigSize       = 1 << 20
	DefaultParseTimeout = 5 * time.Second
	luaCallStackSize    = 256
	luaRegistrySize     = 8 * 1024
)

// Environment variables that override the configuration.
const (
	EnvConfigDir   = "SUBFORGE_CONFIG_DIR"
	EnvDataDir     = "SUBFORGE_DATA_DIR"
	EnvCacheDir    = "SUBFORGE_CACHE_DIR"
	EnvGitHubToken = "GITHUB_TOKEN"
)

// FileName is the configuration file inside the config directory.
const FileName = "config.lua"
