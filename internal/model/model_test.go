package model

import (
	"testing"

	apperrors "CSU/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEffectiveFlags(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		provision bool
		initial   bool
		sample    bool
	}{
		{"new target", Request{InitialData: true, SampleData: true}, true, true, true},
		{"sample without initial", Request{SampleData: true}, true, false, false},
		{"existing untouched", Request{Existing: true, InitialData: true}, false, true, false},
		{"existing migrate", Request{Existing: true, Migrate: true, InitialData: true, SampleData: true}, true, false, false},
		{"migrate ignored on new target", Request{Migrate: true, InitialData: true}, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.provision, tt.req.ShouldProvision())
			assert.Equal(t, tt.initial, tt.req.RunsInitialData())
			assert.Equal(t, tt.sample, tt.req.RunsSampleData())
		})
	}
}

func TestBuildScriptJobOrder(t *testing.T) {
	assert.Equal(t, ScriptJob{ScriptSchema}, BuildScriptJob(&Request{}))
	assert.Equal(t, ScriptJob{ScriptSchema, ScriptInitialData}, BuildScriptJob(&Request{InitialData: true}))
	assert.Equal(t, ScriptJob{ScriptSchema, ScriptInitialData, ScriptSampleData},
		BuildScriptJob(&Request{InitialData: true, SampleData: true}))
	assert.Equal(t, ScriptJob{ScriptSchema}, BuildScriptJob(&Request{SampleData: true}))
}

func TestCaptureOldValuesIsWriteOnce(t *testing.T) {
	state := NewState("run")

	assert.True(t, state.CaptureOldConnection("first", true))
	assert.False(t, state.CaptureOldConnection("second", false))
	assert.True(t, state.CaptureOldDataProvider("provider-a"))
	assert.False(t, state.CaptureOldDataProvider("provider-b"))

	assert.Equal(t, "first", state.OldConnectionString)
	assert.True(t, state.OldEncrypted)
	assert.Equal(t, "provider-a", state.OldDataProviderString)
	assert.True(t, state.HasOldValues())
}

func TestCaptureEmptyValueStillCounts(t *testing.T) {
	state := NewState("run")
	state.CaptureOldConnection("", false)
	state.CaptureOldConnection("later", false)
	assert.Empty(t, state.OldConnectionString)
}

func TestRequestFromYAML(t *testing.T) {
	doc := `
kind: database
backend: MySQL
server:
  host: db.local
  database: openPDC
  admin_user: root
  admin_password: secret
initial_data: true
`
	var req Request
	require.NoError(t, yaml.Unmarshal([]byte(doc), &req))
	assert.Equal(t, KindDatabase, req.Kind)
	assert.Equal(t, BackendMySQL, req.Backend)
	assert.True(t, req.InitialData)
	require.NoError(t, req.Validate())
}

func TestRequestFromYAMLRejectsUnknownBackend(t *testing.T) {
	var req Request
	err := yaml.Unmarshal([]byte("kind: database\nbackend: oracle\n"), &req)
	require.Error(t, err)
}

func TestParseKinds(t *testing.T) {
	kind, err := ParseConfigurationKind(" WebService ")
	require.NoError(t, err)
	assert.Equal(t, KindWebService, kind)

	_, err = ParseConfigurationKind("ldap")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationGeneric))

	backend, err := ParseBackendKind("postgresql")
	require.NoError(t, err)
	assert.True(t, backend.Scripted())
	assert.False(t, BackendSQLite.Scripted())
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown kind", Request{}, "kind"},
		{"unknown backend", Request{Kind: KindDatabase}, "backend"},
		{"sqlite path", Request{Kind: KindDatabase, Backend: BackendSQLite}, "sqlite.destination_path"},
		{"server host", Request{Kind: KindDatabase, Backend: BackendMySQL}, "server.host"},
		{"admin user", Request{Kind: KindDatabase, Backend: BackendSQLServer, Server: ServerOptions{Host: "h", Database: "d"}}, "server.admin_user"},
		{"new user", Request{Kind: KindDatabase, Backend: BackendPostgreSQL, CreateUser: true, Server: ServerOptions{Host: "h", Database: "d", AdminUser: "a"}}, "new_user.name"},
		{"xml path", Request{Kind: KindXML}, "xml_file_path"},
		{"relative url", Request{Kind: KindWebService, WebServiceURL: "/meta"}, "web_service_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, appErr.Metadata["field"])
		})
	}

	ok := Request{Kind: KindDatabase, Backend: BackendSQLServer, Server: ServerOptions{Host: "h", Database: "d", IntegratedSecurity: true}}
	assert.NoError(t, ok.Validate())
	assert.NoError(t, (&Request{Kind: KindWebService, WebServiceURL: "http://meta.local/svc"}).Validate())
}
