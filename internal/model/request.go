package model

import (
	"net/url"
	"strings"

	apperrors "CSU/internal/errors"
)

// SQLiteOptions locates the embedded database file.
type SQLiteOptions struct {
	DestinationPath string `yaml:"destination_path"`
}

// ServerOptions describes a scripted database server and its administrative login.
type ServerOptions struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port,omitempty"`
	Database           string `yaml:"database"`
	AdminUser          string `yaml:"admin_user"`
	AdminPassword      string `yaml:"admin_password"`
	IntegratedSecurity bool   `yaml:"integrated_security,omitempty"`
	DataProviderString string `yaml:"data_provider_string,omitempty"`
}

// Credentials is a login name and password pair.
type Credentials struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// Request is the user's provisioning selection, captured once per run.
type Request struct {
	Kind          ConfigurationKind `yaml:"kind"`
	Backend       BackendKind       `yaml:"backend,omitempty"`
	SQLite        SQLiteOptions     `yaml:"sqlite,omitempty"`
	Server        ServerOptions     `yaml:"server,omitempty"`
	XMLFilePath   string            `yaml:"xml_file_path,omitempty"`
	WebServiceURL string            `yaml:"web_service_url,omitempty"`

	Existing    bool        `yaml:"existing"`
	Migrate     bool        `yaml:"migrate"`
	InitialData bool        `yaml:"initial_data"`
	SampleData  bool        `yaml:"sample_data"`
	CreateUser  bool        `yaml:"create_user"`
	Encrypt     bool        `yaml:"encrypt"`
	NewUser     Credentials `yaml:"new_user,omitempty"`
}

// Migrating reports whether an existing target's schema is to be migrated.
func (r *Request) Migrating() bool {
	return r.Existing && r.Migrate
}

// ShouldProvision reports whether the backend needs schema work at all.
func (r *Request) ShouldProvision() bool {
	return !r.Existing || r.Migrating()
}

// RunsInitialData reports whether the initial data set is loaded.
func (r *Request) RunsInitialData() bool {
	return !r.Migrating() && r.InitialData
}

// RunsSampleData reports whether the sample data set is loaded.
func (r *Request) RunsSampleData() bool {
	return r.RunsInitialData() && r.SampleData
}

// Validate checks that the fields required by the selected kind are present.
func (r *Request) Validate() error {
	if r == nil {
		return requestError("provisioning request is required", "")
	}

	switch r.Kind {
	case KindDatabase:
		return r.validateDatabase()
	case KindXML:
		if strings.TrimSpace(r.XMLFilePath) == "" {
			return requestError("xml file path is required", "xml_file_path")
		}
		return nil
	case KindWebService:
		u, err := url.Parse(strings.TrimSpace(r.WebServiceURL))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return requestError("web service url must be absolute", "web_service_url")
		}
		return nil
	default:
		return requestError("unsupported configuration kind", "kind")
	}
}

func (r *Request) validateDatabase() error {
	switch r.Backend {
	case BackendSQLite:
		if strings.TrimSpace(r.SQLite.DestinationPath) == "" {
			return requestError("sqlite destination path is required", "sqlite.destination_path")
		}
		return nil
	case BackendMySQL, BackendSQLServer, BackendPostgreSQL:
	default:
		return requestError("unsupported backend kind", "backend")
	}

	if strings.TrimSpace(r.Server.Host) == "" {
		return requestError("server host is required", "server.host")
	}
	if strings.TrimSpace(r.Server.Database) == "" {
		return requestError("database name is required", "server.database")
	}
	if r.Server.Port < 0 || r.Server.Port > 65535 {
		return requestError("port must be between 1 and 65535", "server.port")
	}
	if !r.Server.IntegratedSecurity && strings.TrimSpace(r.Server.AdminUser) == "" {
		return requestError("admin user is required", "server.admin_user")
	}
	if r.CreateUser {
		if strings.TrimSpace(r.NewUser.Name) == "" {
			return requestError("new user name is required", "new_user.name")
		}
		if r.NewUser.Password == "" {
			return requestError("new user password is required", "new_user.password")
		}
	}
	return nil
}

func requestError(message, field string) error {
	err := apperrors.ValidationError(apperrors.CodeValidationGeneric, message, nil).WithModule("model")
	if field != "" {
		err.WithField("field", field)
	}
	return err
}
