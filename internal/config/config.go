//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package config provides configuration management for the authorization
// service using [Viper] for flexible configuration sources.
//
// Configuration can be provided via:
//   - A YAML configuration file
//   - Environment variables with the AUTHZCORE_ prefix
//   - Programmatic defaults
//
// By default, the service looks for authzcore-config.yaml in the current
// directory. Override the location via:
//
//	AUTHZCORE_CONFIG_PATH=/etc/authzcore
//	AUTHZCORE_CONFIG_FILENAME=production-config
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/hodei/authzcore/internal/logging"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all authzcore environment variables.
	// For example, the key "log.level" becomes AUTHZCORE_LOG_LEVEL.
	EnvVarPrefix string = "AUTHZCORE"

	ConfigPathEnv     string = "AUTHZCORE_CONFIG_PATH"
	ConfigFileNameEnv string = "AUTHZCORE_CONFIG_FILENAME"

	ConfigDefaultPath     string = "."
	ConfigDefaultFilename string = "authzcore-config"
)

// Configuration key constants for use with [VConfig].
const (
	logLevel string = "log.level"

	// CacheTTLSeconds is the key for a decision cache entry lifetime, in
	// seconds. It is declared and defaulted here only; no package in this
	// module reads it (the orchestrator takes its TTL from WithCache).
	//
	// Default: 60
	// Set via environment: AUTHZCORE_CACHE_TTLSECONDS=30
	CacheTTLSeconds string = "cache.ttlseconds"

	// RedisAddr is the key for the address of a Redis server backing the
	// decision cache. No package in this module reads it; the redis cache
	// is built from a client its caller constructs.
	//
	// Set via environment: AUTHZCORE_CACHE_REDIS_ADDR=localhost:6379
	RedisAddr string = "cache.redis.addr"

	// UnsafeBuiltIns is the key for a comma-separated list of Rego
	// built-in function names. No package in this module reads it; the
	// engine always removes http.send and opa.runtime, and further
	// built-ins are removed only through its compiler options.
	//
	// Set via environment: AUTHZCORE_OPA_UNSAFEBUILTINS=net.lookup_ip_addr
	UnsafeBuiltIns string = "opa.unsafebuiltins"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance for the service.
	VConfig *viper.Viper
	logger  = logging.GetLogger("authzcore.config")
)

// Init initializes the configuration system without loading config files.
// Safe to call multiple times; subsequent calls are no-ops.
func Init() {
	once.Do(func() {
		doInitialize()
	})
}

func getConfigPath() string {
	if p, ok := os.LookupEnv(ConfigPathEnv); ok {
		return p
	}
	return ConfigDefaultPath
}

func getConfigFileName() string {
	if n, ok := os.LookupEnv(ConfigFileNameEnv); ok {
		return n
	}
	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(CacheTTLSeconds, 60)
}

// Load initializes configuration and loads settings from files and the
// environment. Safe to call concurrently; subsequent calls are no-ops.
func Load() error {
	loadOnce.Do(func() {
		Init()

		earlyLoglevel := os.Getenv("AUTHZCORE_LOG_LEVEL")
		if earlyLoglevel != "" {
			if err := logging.UpdateLogLevels(earlyLoglevel); err != nil {
				logger.SysErrorf("Failed updating early log level %s: %+v", earlyLoglevel, err)
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		err := VConfig.ReadInConfig()
		if err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			}
			logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
		}

		loglevel := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(loglevel); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", loglevel, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig clears all configuration and reinitializes with defaults.
// Intended for tests only.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
	_ = Load()
}
