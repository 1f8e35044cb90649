package system

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no --config flag is supplied.
const DefaultConfigPath = "/etc/csu/setup.yaml"

// Config captures directories, target names and tool locations used by the setup tool.
type Config struct {
	InstallDir   string   `yaml:"install_dir"`
	ScriptsDir   string   `yaml:"scripts_dir"`
	WorkDir      string   `yaml:"work_dir"`
	RegistryFile string   `yaml:"registry_file"`
	ConfigFiles  []string `yaml:"config_files"`

	Companion  CompanionConfig  `yaml:"companion"`
	Preemption PreemptionConfig `yaml:"preemption"`
	Clients    ClientsConfig    `yaml:"clients"`

	ScriptTimeout time.Duration `yaml:"script_timeout"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CompanionConfig locates the companion web install through the registry.
type CompanionConfig struct {
	RegistryKey   string `yaml:"registry_key"`
	RegistryValue string `yaml:"registry_value"`
	ConfigFile    string `yaml:"config_file"`
}

// PreemptionConfig names what is stopped before configuration is rewritten.
type PreemptionConfig struct {
	ServiceName        string        `yaml:"service_name"`
	ApplicationProcess string        `yaml:"application_process"`
	ManagerProcess     string        `yaml:"manager_process"`
	ApplicationLabel   string        `yaml:"application_label"`
	ManagerLabel       string        `yaml:"manager_label"`
	StopTimeout        time.Duration `yaml:"stop_timeout"`
	RestartAfterRun    *bool         `yaml:"restart_after_run"`
}

// ShouldRestart reports whether a stopped service is started again after a successful run.
func (p PreemptionConfig) ShouldRestart() bool {
	return p.RestartAfterRun == nil || *p.RestartAfterRun
}

// ClientsConfig names the command-line SQL client per dialect.
type ClientsConfig struct {
	MySQL      string `yaml:"mysql"`
	SQLServer  string `yaml:"sqlserver"`
	PostgreSQL string `yaml:"postgresql"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

//go:embed default-config.yaml
var embeddedDefaults embed.FS

// BaseConfig returns the embedded default configuration.
func BaseConfig() (*Config, error) {
	data, err := embeddedDefaults.ReadFile("default-config.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read embedded default config")
	}
	return decodeConfig(data)
}

// LoadConfig overlays the file at path onto the embedded defaults.
// A missing file at DefaultConfigPath is not an error; any other missing path is.
func LoadConfig(path string) (*Config, error) {
	base, err := BaseConfig()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultConfigPath {
			return MergeConfigs(base)
		}
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	override, err := decodeConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return MergeConfigs(base, override)
}

// MergeConfigs merges configurations, later entries overriding earlier ones.
func MergeConfigs(cfgs ...*Config) (*Config, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no configurations provided")
	}

	var result Config
	first := true
	for _, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		if first {
			result = *cfg
			result.ConfigFiles = append([]string(nil), cfg.ConfigFiles...)
			first = false
			continue
		}

		overrideString(&result.InstallDir, cfg.InstallDir)
		overrideString(&result.ScriptsDir, cfg.ScriptsDir)
		overrideString(&result.WorkDir, cfg.WorkDir)
		overrideString(&result.RegistryFile, cfg.RegistryFile)
		if len(cfg.ConfigFiles) > 0 {
			result.ConfigFiles = append([]string(nil), cfg.ConfigFiles...)
		}

		overrideString(&result.Companion.RegistryKey, cfg.Companion.RegistryKey)
		overrideString(&result.Companion.RegistryValue, cfg.Companion.RegistryValue)
		overrideString(&result.Companion.ConfigFile, cfg.Companion.ConfigFile)

		overrideString(&result.Preemption.ServiceName, cfg.Preemption.ServiceName)
		overrideString(&result.Preemption.ApplicationProcess, cfg.Preemption.ApplicationProcess)
		overrideString(&result.Preemption.ManagerProcess, cfg.Preemption.ManagerProcess)
		overrideString(&result.Preemption.ApplicationLabel, cfg.Preemption.ApplicationLabel)
		overrideString(&result.Preemption.ManagerLabel, cfg.Preemption.ManagerLabel)
		if cfg.Preemption.StopTimeout > 0 {
			result.Preemption.StopTimeout = cfg.Preemption.StopTimeout
		}
		if cfg.Preemption.RestartAfterRun != nil {
			result.Preemption.RestartAfterRun = cfg.Preemption.RestartAfterRun
		}

		overrideString(&result.Clients.MySQL, cfg.Clients.MySQL)
		overrideString(&result.Clients.SQLServer, cfg.Clients.SQLServer)
		overrideString(&result.Clients.PostgreSQL, cfg.Clients.PostgreSQL)

		if cfg.ScriptTimeout > 0 {
			result.ScriptTimeout = cfg.ScriptTimeout
		}
		overrideString(&result.Log.Level, cfg.Log.Level)
		overrideString(&result.Log.Format, cfg.Log.Format)
		overrideString(&result.Metrics.Textfile, cfg.Metrics.Textfile)
	}

	if result.Preemption.StopTimeout <= 0 {
		result.Preemption.StopTimeout = 60 * time.Second
	}
	if result.ScriptTimeout <= 0 {
		result.ScriptTimeout = 30 * time.Minute
	}
	if strings.TrimSpace(result.WorkDir) == "" {
		result.WorkDir = filepath.Join(os.TempDir(), "csu")
	}

	return &result, nil
}

// GetScriptsDir returns the directory holding database images and SQL scripts.
func (c *Config) GetScriptsDir() string {
	if strings.TrimSpace(c.ScriptsDir) != "" {
		return c.ScriptsDir
	}
	return filepath.Join(c.InstallDir, "Database scripts")
}

// GetHistoryPath returns the run history database path.
func (c *Config) GetHistoryPath() string {
	return filepath.Join(c.WorkDir, "history.db")
}

// EnsureWorkDir creates the working directory.
func (c *Config) EnsureWorkDir() error {
	if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create working directory %s", c.WorkDir)
	}
	return nil
}

func overrideString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func decodeConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse setup configuration")
	}
	return &cfg, nil
}
