package configurator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"CSU/internal/cipher"
	apperrors "CSU/internal/errors"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/status"
	"CSU/internal/system"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `<?xml version="1.0" encoding="utf-8"?>
<configuration>
  <categorizedSettings>
    <systemSettings>
      <add name="ConnectionString" value="%s" description="Configuration database connection string" encrypted="%s" />
      <add name="DataProviderString" value="%s" description="Configuration database ADO.NET data provider assembly type creation string" encrypted="false" />
      <add name="NodeID" value="8736f6c7-ad41-4b43-b4f6-e684e0d4ad20" description="Unique Node ID" encrypted="false" />
    </systemSettings>
    <devicesAdoMetadataProvider>
      <add name="ConnectionString" value="old" description="" encrypted="false" />
      <add name="DataProviderString" value="old" description="" encrypted="false" />
      <add name="TableName" value="Device" description="" encrypted="false" />
    </devicesAdoMetadataProvider>
    <measurementsAdoMetadataProvider>
      <add name="ConnectionString" value="old" description="" encrypted="false" />
      <add name="DataProviderString" value="old" description="" encrypted="false" />
    </measurementsAdoMetadataProvider>
    <historianSettings>
      <add name="ConnectionString" value="untouched" description="" encrypted="false" />
    </historianSettings>
  </categorizedSettings>
</configuration>
`

func writeConfig(t *testing.T, dir, name, connection, encrypted, provider string) Target {
	t.Helper()
	path := filepath.Join(dir, name)
	content := fmt.Sprintf(sampleConfig, connection, encrypted, provider)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return Target{Name: name, Path: path}
}

func setting(t *testing.T, path, section, name, attr string) string {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(path))
	el := doc.FindElement("configuration/categorizedSettings/" + section + "/add[@name='" + name + "']")
	require.NotNil(t, el, "%s/%s missing in %s", section, name, path)
	return el.SelectAttrValue(attr, "")
}

func newTestPatcher(rec *status.Recorder) *Patcher {
	return NewPatcher(cipher.Default(), rec, logger.NewMockLogger())
}

func TestPatchRewritesSystemAndProviderSections(t *testing.T) {
	dir := t.TempDir()
	target := writeConfig(t, dir, "openPDC.exe.config", "Data Source=old.db", "false", "old provider")
	rec := status.NewRecorder()
	state := model.NewState("run")

	prev, err := newTestPatcher(rec).Patch(context.Background(), []Target{target}, Update{
		ConnectionString:   "Data Source=/data/openPDC.db",
		DataProviderString: "new provider",
	}, state)
	require.NoError(t, err)

	for _, section := range []string{"systemSettings", "devicesAdoMetadataProvider", "measurementsAdoMetadataProvider"} {
		assert.Equal(t, "Data Source=/data/openPDC.db", setting(t, target.Path, section, "ConnectionString", "value"))
		assert.Equal(t, "False", setting(t, target.Path, section, "ConnectionString", "encrypted"))
		assert.Equal(t, "new provider", setting(t, target.Path, section, "DataProviderString", "value"))
	}
	assert.Equal(t, "untouched", setting(t, target.Path, "historianSettings", "ConnectionString", "value"))
	assert.Equal(t, "8736f6c7-ad41-4b43-b4f6-e684e0d4ad20", setting(t, target.Path, "systemSettings", "NodeID", "value"))

	assert.Equal(t, Previous{ConnectionString: "Data Source=old.db", DataProviderString: "old provider"}, prev)
	assert.Equal(t, []string{target.Path}, state.PatchedTargets)
	assert.Equal(t, []string{
		"Attempting to modify openPDC.exe.config...",
		"Modification of configuration files was successful.",
		"",
	}, rec.Lines())

	info, err := os.Stat(target.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestPatchEncryptsConnectionString(t *testing.T) {
	dir := t.TempDir()
	target := writeConfig(t, dir, "openPDC.exe.config", "old", "false", "old")

	_, err := newTestPatcher(status.NewRecorder()).Patch(context.Background(), []Target{target}, Update{
		ConnectionString: "Server=db; Uid=pdc; Pwd=secret;",
		Encrypt:          true,
	}, model.NewState("run"))
	require.NoError(t, err)

	for _, section := range []string{"systemSettings", "devicesAdoMetadataProvider"} {
		sealed := setting(t, target.Path, section, "ConnectionString", "value")
		assert.NotContains(t, sealed, "secret")
		plain, err := cipher.Default().Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "Server=db; Uid=pdc; Pwd=secret;", plain)
		assert.Equal(t, "True", setting(t, target.Path, section, "ConnectionString", "encrypted"))
	}
}

func TestPatchCapturesFirstTargetValuesOnly(t *testing.T) {
	dir := t.TempDir()
	sealed, err := cipher.Default().Encrypt("Data Source=first.db")
	require.NoError(t, err)

	first := writeConfig(t, dir, "openPDC.exe.config", sealed, "True", "first provider")
	second := writeConfig(t, dir, "openPDCManager.exe.config", "Data Source=second.db", "false", "second provider")
	state := model.NewState("run")

	prev, err := newTestPatcher(status.NewRecorder()).Patch(context.Background(), []Target{first, second}, Update{
		ConnectionString:   "new",
		DataProviderString: "new provider",
	}, state)
	require.NoError(t, err)

	assert.Equal(t, "Data Source=first.db", state.OldConnectionString)
	assert.True(t, state.OldEncrypted)
	assert.Equal(t, "first provider", state.OldDataProviderString)
	assert.Equal(t, "Data Source=first.db", prev.ConnectionString)
	assert.Equal(t, "new", setting(t, second.Path, "systemSettings", "ConnectionString", "value"))
	assert.Equal(t, []string{first.Path, second.Path}, state.PatchedTargets)
}

func TestPatchPartialFailure(t *testing.T) {
	dir := t.TempDir()
	first := writeConfig(t, dir, "openPDC.exe.config", "old", "false", "old")
	broken := filepath.Join(dir, "openPDCManager.exe.config")
	require.NoError(t, os.WriteFile(broken, []byte("<configuration><<</configuration>"), 0o644))
	rec := status.NewRecorder()
	state := model.NewState("run")

	_, err := newTestPatcher(rec).Patch(context.Background(), []Target{first, {Name: "openPDCManager.exe.config", Path: broken}}, Update{
		ConnectionString: "new",
	}, state)

	var partial *PartialFailure
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []Target{first}, partial.CompletedTargets)
	assert.Equal(t, broken, partial.FailedTarget.Path)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigParseFailure))

	assert.Equal(t, "new", setting(t, first.Path, "systemSettings", "ConnectionString", "value"))
	assert.Equal(t, 0, rec.CountLines("successful"))
}

func TestPatchFirstTargetFailureIsNotPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openPDC.exe.config")
	require.NoError(t, os.WriteFile(path, []byte(`<configuration><categorizedSettings/></configuration>`), 0o644))

	_, err := newTestPatcher(status.NewRecorder()).Patch(context.Background(), []Target{{Name: "openPDC.exe.config", Path: path}}, Update{}, model.NewState("run"))
	require.Error(t, err)

	var partial *PartialFailure
	assert.False(t, errors.As(err, &partial))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigParseFailure))

	_, err = newTestPatcher(status.NewRecorder()).Patch(context.Background(), []Target{{Name: "gone", Path: filepath.Join(dir, "gone")}}, Update{}, model.NewState("run"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigIOFailure))
}

func TestDiscoverFollowsManifestOrder(t *testing.T) {
	install := t.TempDir()
	companion := t.TempDir()
	writeConfig(t, install, "openPDCManager.exe.config", "x", "false", "x")
	writeConfig(t, install, "openPDC.exe.config", "x", "false", "x")
	writeConfig(t, companion, "Web.config", "x", "false", "x")

	registryFile := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(registryFile, []byte(`'Software\Wow6432Node\openPDCManagerServices':
  Installation Path: `+companion+"\n"), 0o644))

	cfg := &system.Config{
		InstallDir:  install,
		ConfigFiles: []string{"openPDC.exe.config", "missing.exe.config", "openPDCManager.exe.config"},
		Companion: system.CompanionConfig{
			RegistryKey:   `Software\openPDCManagerServices`,
			RegistryValue: "Installation Path",
			ConfigFile:    "Web.config",
		},
	}

	targets := Discover(context.Background(), cfg, system.NewFileRegistry(registryFile), logger.NewMockLogger())
	require.Len(t, targets, 3)
	assert.Equal(t, Target{Name: "openPDC.exe.config", Path: filepath.Join(install, "openPDC.exe.config"), Primary: true}, targets[0])
	assert.Equal(t, "openPDCManager.exe.config", targets[1].Name)
	assert.Equal(t, filepath.Join(companion, "Web.config"), targets[2].Path)

	assert.Equal(t, targets[:1], PrimaryOnly(targets))
}

func TestDiscoverWithoutCompanion(t *testing.T) {
	install := t.TempDir()
	writeConfig(t, install, "openPDCManager.exe.config", "x", "false", "x")

	cfg := &system.Config{
		InstallDir:  install,
		ConfigFiles: []string{"openPDC.exe.config", "openPDCManager.exe.config"},
		Companion:   system.CompanionConfig{RegistryKey: `Software\openPDCManagerServices`, RegistryValue: "Installation Path", ConfigFile: "Web.config"},
	}
	targets := Discover(context.Background(), cfg, system.NewFileRegistry(filepath.Join(install, "none.yaml")), logger.NewMockLogger())

	require.Len(t, targets, 1)
	assert.False(t, targets[0].Primary)
	assert.Empty(t, PrimaryOnly(targets))
}
