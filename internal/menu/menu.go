// Package menu is the interactive wizard that builds a provisioning request.
package menu

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"CSU/internal/configurator"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/system"
)

// ErrCancelled is returned when the operator aborts the wizard.
var ErrCancelled = errors.New("setup cancelled by user")

// Wizard walks the operator through the setup choices.
type Wizard struct {
	config   *system.Config
	prompter Prompter
	logger   logger.Logger
	summary  func(lines []string)
}

// NewWizard creates a wizard asking through prompter. Summary lines are
// passed to show before the final confirmation.
func NewWizard(cfg *system.Config, prompter Prompter, log logger.Logger, show func(lines []string)) *Wizard {
	if prompter == nil {
		prompter = PromptUI{}
	}
	if show == nil {
		show = func([]string) {}
	}
	return &Wizard{config: cfg, prompter: prompter, logger: log, summary: show}
}

var kindOptions = []Option{
	{Label: "1. Database", Color: "green"},
	{Label: "2. XML file", Color: "cyan"},
	{Label: "3. Web service", Color: "cyan"},
}

var backendOptions = []Option{
	{Label: "1. SQLite (embedded file)", Color: "green"},
	{Label: "2. MySQL", Color: "cyan"},
	{Label: "3. SQL Server", Color: "cyan"},
	{Label: "4. PostgreSQL", Color: "cyan"},
}

// Run asks every question and returns the confirmed request.
func (w *Wizard) Run() (*model.Request, error) {
	kinds := []model.ConfigurationKind{model.KindDatabase, model.KindXML, model.KindWebService}
	index, err := w.prompter.Select("Select the configuration type", formatOptions(kindOptions))
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(kinds) {
		return nil, errors.New("invalid selection")
	}

	req := &model.Request{Kind: kinds[index]}
	switch req.Kind {
	case model.KindDatabase:
		err = w.askDatabase(req)
	case model.KindXML:
		req.XMLFilePath, err = w.prompter.Input("XML configuration file", "", required("XML file path"))
	case model.KindWebService:
		req.WebServiceURL, err = w.prompter.Input("Web service URL", "", validURL)
	}
	if err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	w.summary(Summary(req))
	ok, err := w.prompter.Confirm("Proceed with setup", true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	w.logger.Debug("Wizard completed: kind=%s backend=%s", req.Kind, req.Backend)
	return req, nil
}

func (w *Wizard) askDatabase(req *model.Request) error {
	backends := []model.BackendKind{model.BackendSQLite, model.BackendMySQL, model.BackendSQLServer, model.BackendPostgreSQL}
	index, err := w.prompter.Select("Select the database type", formatOptions(backendOptions))
	if err != nil {
		return err
	}
	if index < 0 || index >= len(backends) {
		return errors.New("invalid selection")
	}
	req.Backend = backends[index]

	if req.Backend == model.BackendSQLite {
		req.SQLite.DestinationPath, err = w.prompter.Input("Database file", filepath.Join(w.config.InstallDir, "ConfigurationCache", "openPDC.db"), required("database file"))
		if err != nil {
			return err
		}
	} else if err := w.askServer(req); err != nil {
		return err
	}

	if req.Existing, err = w.prompter.Confirm("Use an existing database", false); err != nil {
		return err
	}
	if req.Existing {
		if req.Migrate, err = w.prompter.Confirm("Update the existing database schema", false); err != nil {
			return err
		}
	} else {
		if req.InitialData, err = w.prompter.Confirm("Load the initial data set", true); err != nil {
			return err
		}
		if req.InitialData {
			if req.SampleData, err = w.prompter.Confirm("Load the sample data set", false); err != nil {
				return err
			}
		}
	}

	if req.Backend.Scripted() && req.ShouldProvision() {
		if req.CreateUser, err = w.prompter.Confirm("Create a dedicated database user", false); err != nil {
			return err
		}
		if req.CreateUser {
			if req.NewUser.Name, err = w.prompter.Input("New user name", "openPDC", required("user name")); err != nil {
				return err
			}
			if req.NewUser.Password, err = w.prompter.Secret("New user password", required("password")); err != nil {
				return err
			}
		}
	}

	if req.Backend.Scripted() {
		req.Encrypt, err = w.prompter.Confirm("Encrypt the connection string", false)
	}
	return err
}

func (w *Wizard) askServer(req *model.Request) error {
	server := &req.Server
	var err error

	if server.Host, err = w.prompter.Input("Server host", "localhost", required("host")); err != nil {
		return err
	}
	port, err := w.prompter.Input("Server port (blank for default)", "", validPort)
	if err != nil {
		return err
	}
	if port != "" {
		server.Port, _ = strconv.Atoi(port)
	}
	if server.Database, err = w.prompter.Input("Database name", "openPDC", required("database name")); err != nil {
		return err
	}

	if req.Backend == model.BackendSQLServer {
		if server.IntegratedSecurity, err = w.prompter.Confirm("Use integrated security", false); err != nil {
			return err
		}
	}
	if !server.IntegratedSecurity {
		if server.AdminUser, err = w.prompter.Input("Administrator user", defaultAdmin(req.Backend), required("administrator user")); err != nil {
			return err
		}
		if server.AdminPassword, err = w.prompter.Secret("Administrator password", nil); err != nil {
			return err
		}
	}

	server.DataProviderString, err = w.prompter.Input("Data provider string (blank for default)", "", nil)
	return err
}

// ConfirmOverride asks whether to keep a partially applied configuration change.
func ConfirmOverride(prompter Prompter, failure *configurator.PartialFailure) (bool, error) {
	if prompter == nil {
		prompter = PromptUI{}
	}
	label := fmt.Sprintf("%d configuration file(s) were modified before %s failed. Accept the changes anyway",
		len(failure.CompletedTargets), failure.FailedTarget.Name)
	return prompter.Confirm(label, false)
}

func defaultAdmin(backend model.BackendKind) string {
	switch backend {
	case model.BackendSQLServer:
		return "sa"
	case model.BackendPostgreSQL:
		return "postgres"
	default:
		return "root"
	}
}

func required(what string) func(string) error {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validPort(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	p, err := strconv.Atoi(input)
	if err != nil || p <= 0 || p > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func validURL(input string) error {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("please enter an absolute URL")
	}
	return nil
}
