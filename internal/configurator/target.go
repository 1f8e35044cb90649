// Package configurator locates the dependent applications' XML configuration
// files and points them at the provisioned backend.
package configurator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"CSU/internal/logger"
	"CSU/internal/system"
)

// Target is one configuration file to patch.
type Target struct {
	Name string
	Path string
	// Primary marks the main application's configuration.
	Primary bool
}

// Discover lists the configuration files present on disk in manifest order:
// the configured files under the install directory, then the companion
// web manager's configuration when the registry knows where it lives.
func Discover(ctx context.Context, cfg *system.Config, registry system.Registry, log logger.Logger) []Target {
	var targets []Target

	for i, name := range cfg.ConfigFiles {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.InstallDir, name)
		}
		targets = appendExisting(ctx, targets, Target{Name: filepath.Base(name), Path: path, Primary: i == 0}, log)
	}

	companion := cfg.Companion
	if registry == nil || companion.RegistryKey == "" || companion.ConfigFile == "" {
		return targets
	}

	dir, found, err := registry.LookupString(companion.RegistryKey, companion.RegistryValue)
	switch {
	case err != nil:
		log.WarnContext(ctx, "companion install path lookup failed", logger.String("key", companion.RegistryKey), logger.Error(err))
	case !found:
		log.DebugContext(ctx, "companion install path not registered", logger.String("key", companion.RegistryKey))
	default:
		dir = strings.TrimSpace(dir)
		targets = appendExisting(ctx, targets, Target{
			Name: companion.ConfigFile,
			Path: filepath.Join(dir, companion.ConfigFile),
		}, log)
	}

	return targets
}

// PrimaryOnly keeps the main application's configuration.
func PrimaryOnly(targets []Target) []Target {
	for _, t := range targets {
		if t.Primary {
			return []Target{t}
		}
	}
	return nil
}

func appendExisting(ctx context.Context, targets []Target, t Target, log logger.Logger) []Target {
	info, err := os.Stat(t.Path)
	if err != nil || info.IsDir() {
		log.DebugContext(ctx, "configuration file not present, skipping", logger.String("path", t.Path))
		return targets
	}
	return append(targets, t)
}
