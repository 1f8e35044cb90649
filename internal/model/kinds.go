package model

import (
	"strings"

	apperrors "CSU/internal/errors"
)

// ConfigurationKind selects where the dependent applications read their metadata from.
type ConfigurationKind int

const (
	KindUnknown ConfigurationKind = iota
	KindDatabase
	KindXML
	KindWebService
)

var configurationKindNames = map[ConfigurationKind]string{
	KindDatabase:   "database",
	KindXML:        "xml",
	KindWebService: "webservice",
}

func (k ConfigurationKind) String() string {
	if name, ok := configurationKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k ConfigurationKind) MarshalText() ([]byte, error) {
	if _, ok := configurationKindNames[k]; !ok {
		return nil, invalidEnum("configuration kind", k.String())
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ConfigurationKind) UnmarshalText(text []byte) error {
	parsed, err := ParseConfigurationKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseConfigurationKind maps text onto a ConfigurationKind.
func ParseConfigurationKind(value string) (ConfigurationKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for kind, name := range configurationKindNames {
		if name == normalized {
			return kind, nil
		}
	}
	return KindUnknown, invalidEnum("configuration kind", value)
}

// BackendKind selects the database technology for the Database configuration kind.
type BackendKind int

const (
	BackendUnknown BackendKind = iota
	BackendSQLite
	BackendMySQL
	BackendSQLServer
	BackendPostgreSQL
)

var backendKindNames = map[BackendKind]string{
	BackendSQLite:     "sqlite",
	BackendMySQL:      "mysql",
	BackendSQLServer:  "sqlserver",
	BackendPostgreSQL: "postgresql",
}

func (b BackendKind) String() string {
	if name, ok := backendKindNames[b]; ok {
		return name
	}
	return "unknown"
}

// Scripted reports whether the backend is provisioned by running SQL scripts.
func (b BackendKind) Scripted() bool {
	switch b {
	case BackendMySQL, BackendSQLServer, BackendPostgreSQL:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b BackendKind) MarshalText() ([]byte, error) {
	if _, ok := backendKindNames[b]; !ok {
		return nil, invalidEnum("backend kind", b.String())
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BackendKind) UnmarshalText(text []byte) error {
	parsed, err := ParseBackendKind(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBackendKind maps text onto a BackendKind.
func ParseBackendKind(value string) (BackendKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for kind, name := range backendKindNames {
		if name == normalized {
			return kind, nil
		}
	}
	return BackendUnknown, invalidEnum("backend kind", value)
}

func invalidEnum(what, value string) error {
	return apperrors.ValidationError(apperrors.CodeValidationGeneric, "unsupported "+what, nil).
		WithModule("model").
		WithField("value", value)
}
