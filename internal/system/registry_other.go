//go:build !windows

package system

// NewRegistry returns the YAML registry named by the configuration.
func NewRegistry(cfg *Config) Registry {
	return NewFileRegistry(cfg.RegistryFile)
}
