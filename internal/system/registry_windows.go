//go:build windows

package system

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows/registry"
)

// WindowsRegistry reads values below HKEY_LOCAL_MACHINE.
type WindowsRegistry struct{}

// NewRegistry returns the native registry.
func NewRegistry(_ *Config) Registry {
	return WindowsRegistry{}
}

func (WindowsRegistry) LookupString(key, value string) (string, bool, error) {
	for _, candidate := range registryCandidates(key) {
		k, err := registry.OpenKey(registry.LOCAL_MACHINE, candidate, registry.QUERY_VALUE)
		if err != nil {
			if errors.Is(err, registry.ErrNotExist) {
				continue
			}
			return "", false, errors.Wrapf(err, "open registry key %s", candidate)
		}

		v, _, err := k.GetStringValue(value)
		k.Close()
		if err != nil {
			if errors.Is(err, registry.ErrNotExist) {
				continue
			}
			return "", false, errors.Wrapf(err, "read registry value %s", value)
		}
		if v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}
