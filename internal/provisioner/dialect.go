package provisioner

import (
	"os"

	"CSU/internal/executor"
	"CSU/internal/model"

	"github.com/pkg/errors"
)

// Login is the identity a client connects with.
type Login struct {
	User       string
	Password   string
	Integrated bool
}

// Statement is SQL run in the context of Database; empty means the server's
// maintenance database.
type Statement struct {
	Database string
	SQL      string
}

// Dialect knows how to drive one server's command-line client.
type Dialect interface {
	Backend() model.BackendKind
	Label() string
	// Client is the command-line client binary.
	Client() string
	// ScriptDir is the sub-directory of the scripts tree holding this dialect's scripts.
	ScriptDir() string
	// Command runs the SQL file at scriptPath against database. The returned
	// cleanup must be called once the command has finished.
	Command(server model.ServerOptions, login Login, database, scriptPath string) (executor.Command, func(), error)
	CreateDatabase(name string) Statement
	CreateUser(database string, user model.Credentials) []Statement
	Grant(database, user string) Statement
	ConnectionString(server model.ServerOptions, login Login) string
	DefaultDataProvider() string
}

// writeTemp writes content to a 0600 temporary file and returns its path.
func writeTemp(pattern string, content []byte) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, errors.Wrap(err, "create temporary file")
	}
	name := f.Name()
	cleanup := func() { os.Remove(name) }

	if _, err := f.Write(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, "write temporary file")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "close temporary file")
	}
	return name, cleanup, nil
}

func noop() {}
