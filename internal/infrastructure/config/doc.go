// Package config provides 12-factor configuration management for the constellation server.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML or TOML file, chosen by extension, overrides the environment.
//
// Example Usage:
//
//	cfg, err := config.LoadFile(*configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	retained := cfg.Constellation.RetainedPipelines
package config
