package configurator

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"CSU/internal/cipher"
	apperrors "CSU/internal/errors"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/status"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
)

const (
	settingsPath           = "configuration/categorizedSettings"
	systemSettingsTag      = "systemSettings"
	metadataProviderSuffix = "AdoMetadataProvider"

	connectionStringKey   = "ConnectionString"
	dataProviderStringKey = "DataProviderString"
)

// Update is the set of values written into every target.
type Update struct {
	ConnectionString   string
	DataProviderString string
	Encrypt            bool
}

// Previous holds the values found in the first patched target.
type Previous struct {
	ConnectionString   string
	DataProviderString string
	Encrypted          bool
}

// Patcher rewrites connection settings in XML configuration files.
type Patcher struct {
	cipher   cipher.Cipher
	reporter status.Reporter
	logger   logger.Logger
}

// NewPatcher returns a Patcher sealing connection strings with c.
func NewPatcher(c cipher.Cipher, reporter status.Reporter, log logger.Logger) *Patcher {
	return &Patcher{cipher: c, reporter: reporter, logger: log}
}

// Patch rewrites every target in order. The first values seen are captured
// into state and are never replaced during the run. A failure stops the
// patch; when earlier targets were saved it is returned as *PartialFailure.
func (p *Patcher) Patch(ctx context.Context, targets []Target, update Update, state *model.State) (Previous, error) {
	if len(targets) == 1 {
		p.reporter.Status("Attempting to modify %s...", targets[0].Name)
	} else {
		p.reporter.Status("Attempting to modify configuration files...")
	}

	value := update.ConnectionString
	if update.Encrypt {
		sealed, err := p.cipher.Encrypt(value)
		if err != nil {
			return previous(state), errors.Wrap(err, "failed to encrypt connection string")
		}
		value = sealed
	}

	var completed []Target
	for _, target := range targets {
		if err := p.patchFile(ctx, target, value, update, state); err != nil {
			p.logger.ErrorContext(ctx, "configuration file patch failed",
				logger.String("path", target.Path), logger.Int("completed", len(completed)), logger.Error(err))
			if len(completed) > 0 {
				return previous(state), &PartialFailure{CompletedTargets: completed, FailedTarget: target, Err: err}
			}
			return previous(state), err
		}
		completed = append(completed, target)
		state.PatchedTargets = append(state.PatchedTargets, target.Path)
		p.logger.InfoContext(ctx, "configuration file updated", logger.String("path", target.Path))
	}

	p.reporter.Status("Modification of configuration files was successful.")
	p.reporter.Status("")
	return previous(state), nil
}

func (p *Patcher) patchFile(ctx context.Context, target Target, value string, update Update, state *model.State) error {
	raw, err := os.ReadFile(target.Path)
	if err != nil {
		return newConfiguratorError(apperrors.CodeConfigIOFailure, "configurator.read", "failed to read "+target.Name, err,
			apperrors.Metadata{"path": target.Path})
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return newConfiguratorError(apperrors.CodeConfigParseFailure, "configurator.parse", "failed to parse "+target.Name, err,
			apperrors.Metadata{"path": target.Path})
	}

	categorized := doc.FindElement(settingsPath)
	if categorized == nil {
		return newConfiguratorError(apperrors.CodeConfigParseFailure, "configurator.parse", target.Name+" has no categorizedSettings section", nil,
			apperrors.Metadata{"path": target.Path})
	}
	systemSettings := categorized.SelectElement(systemSettingsTag)
	if systemSettings == nil {
		return newConfiguratorError(apperrors.CodeConfigParseFailure, "configurator.parse", target.Name+" has no systemSettings section", nil,
			apperrors.Metadata{"path": target.Path})
	}

	if err := p.capture(systemSettings, state); err != nil {
		return newConfiguratorError(apperrors.CodeConfigParseFailure, "configurator.capture", "failed to read existing connection string in "+target.Name, err,
			apperrors.Metadata{"path": target.Path})
	}
	overwrite(systemSettings, value, update)

	for _, section := range categorized.ChildElements() {
		if strings.HasSuffix(section.Tag, metadataProviderSuffix) {
			overwrite(section, value, update)
			p.logger.DebugContext(ctx, "metadata provider section updated", logger.String("path", target.Path), logger.String("section", section.Tag))
		}
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return newConfiguratorError(apperrors.CodeConfigIOFailure, "configurator.write", "failed to render "+target.Name, err,
			apperrors.Metadata{"path": target.Path})
	}
	if err := writeFileAtomic(target.Path, out); err != nil {
		return newConfiguratorError(apperrors.CodeConfigIOFailure, "configurator.write", "failed to save "+target.Name, err,
			apperrors.Metadata{"path": target.Path})
	}
	return nil
}

// capture records the section's current values unless an earlier target
// already supplied them.
func (p *Patcher) capture(section *etree.Element, state *model.State) error {
	for _, entry := range section.SelectElements("add") {
		switch entry.SelectAttrValue("name", "") {
		case dataProviderStringKey:
			state.CaptureOldDataProvider(entry.SelectAttrValue("value", ""))
		case connectionStringKey:
			if state.HasOldConnection() {
				continue
			}
			old := entry.SelectAttrValue("value", "")
			encrypted := isEncrypted(entry)
			if encrypted && old != "" {
				plain, err := p.cipher.Decrypt(old)
				if err != nil {
					return err
				}
				old = plain
			}
			state.CaptureOldConnection(old, encrypted)
		}
	}
	return nil
}

func overwrite(section *etree.Element, value string, update Update) {
	for _, entry := range section.SelectElements("add") {
		switch entry.SelectAttrValue("name", "") {
		case dataProviderStringKey:
			entry.CreateAttr("value", update.DataProviderString)
		case connectionStringKey:
			entry.CreateAttr("value", value)
			entry.CreateAttr("encrypted", formatBool(update.Encrypt))
		}
	}
}

func isEncrypted(entry *etree.Element) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(entry.SelectAttrValue("encrypted", "false")))
	return err == nil && v
}

// formatBool renders the casing the dependent applications write themselves.
func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func previous(state *model.State) Previous {
	return Previous{
		ConnectionString:   state.OldConnectionString,
		DataProviderString: state.OldDataProviderString,
		Encrypted:          state.OldEncrypted,
	}
}

// writeFileAtomic replaces path through a temp file in the same directory,
// keeping the original file mode.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
