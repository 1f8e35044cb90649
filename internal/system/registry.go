package system

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Registry resolves string values from a machine-wide key/value store.
type Registry interface {
	// LookupString returns the value and whether it was found.
	LookupString(key, value string) (string, bool, error)
}

// FileRegistry is a Registry backed by a YAML document of the form
//
//	Software\openPDCManagerServices:
//	  Installation Path: /opt/openPDCManagerServices
type FileRegistry struct {
	Path string
}

// NewFileRegistry returns a FileRegistry reading path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{Path: path}
}

// LookupString reads the document on every call; a missing document yields not found.
func (r *FileRegistry) LookupString(key, value string) (string, bool, error) {
	if strings.TrimSpace(r.Path) == "" {
		return "", false, nil
	}

	data, err := os.ReadFile(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "failed to read registry file %s", r.Path)
	}

	var doc map[string]map[string]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false, errors.Wrapf(err, "failed to parse registry file %s", r.Path)
	}

	for _, candidate := range registryCandidates(key) {
		if values, ok := doc[candidate]; ok {
			if v, ok := values[value]; ok && strings.TrimSpace(v) != "" {
				return v, true, nil
			}
		}
	}
	return "", false, nil
}

// registryCandidates lists the native key followed by its 32-bit view.
func registryCandidates(key string) []string {
	key = strings.Trim(key, `\`)
	candidates := []string{key}
	if rest, ok := strings.CutPrefix(key, `Software\`); ok && !strings.HasPrefix(rest, `Wow6432Node\`) {
		candidates = append(candidates, `Software\Wow6432Node\`+rest)
	}
	return candidates
}

var _ Registry = (*FileRegistry)(nil)
