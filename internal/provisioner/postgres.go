package provisioner

import (
	"fmt"
	"strconv"
	"strings"

	"CSU/internal/executor"
	"CSU/internal/model"

	"github.com/lib/pq"
)

// PostgreSQLDataProvider is the default descriptor for PostgreSQL connections.
const PostgreSQLDataProvider = "AssemblyName={Npgsql, Version=4.0.11.0, Culture=neutral, PublicKeyToken=5d8b90d52f46fda7}; ConnectionType=Npgsql.NpgsqlConnection; AdapterType=Npgsql.NpgsqlDataAdapter"

// PostgreSQL drives psql. The password is passed through PGPASSWORD.
type PostgreSQL struct {
	client string
}

// NewPostgreSQL returns the PostgreSQL dialect using client as the psql binary.
func NewPostgreSQL(client string) *PostgreSQL {
	if client == "" {
		client = "psql"
	}
	return &PostgreSQL{client: client}
}

func (d *PostgreSQL) Backend() model.BackendKind { return model.BackendPostgreSQL }
func (d *PostgreSQL) Label() string              { return "PostgreSQL" }
func (d *PostgreSQL) ScriptDir() string          { return "PostgreSQL" }
func (d *PostgreSQL) Client() string             { return d.client }

func (d *PostgreSQL) Command(server model.ServerOptions, login Login, database, scriptPath string) (executor.Command, func(), error) {
	if database == "" {
		database = "postgres"
	}

	args := []string{"-X", "-q", "-v", "ON_ERROR_STOP=1", "-h", server.Host}
	if server.Port > 0 {
		args = append(args, "-p", strconv.Itoa(server.Port))
	}
	if login.User != "" {
		args = append(args, "-U", login.User)
	}
	args = append(args, "-d", database, "-f", scriptPath)

	cmd := executor.Command{Name: d.client, Args: args}
	if login.Password != "" {
		cmd.Env = []string{"PGPASSWORD=" + login.Password}
	}
	return cmd, noop, nil
}

func (d *PostgreSQL) CreateDatabase(name string) Statement {
	return Statement{SQL: fmt.Sprintf("CREATE DATABASE %s;", pq.QuoteIdentifier(name))}
}

func (d *PostgreSQL) CreateUser(_ string, user model.Credentials) []Statement {
	return []Statement{{
		SQL: fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD %s;", pq.QuoteIdentifier(user.Name), pq.QuoteLiteral(user.Password)),
	}}
}

func (d *PostgreSQL) Grant(database, user string) Statement {
	return Statement{
		Database: database,
		SQL:      fmt.Sprintf("GRANT SELECT, UPDATE, INSERT ON ALL TABLES IN SCHEMA public TO %s;", pq.QuoteIdentifier(user)),
	}
}

func (d *PostgreSQL) ConnectionString(server model.ServerOptions, login Login) string {
	parts := []string{"Server=" + server.Host}
	if server.Port > 0 {
		parts = append(parts, "Port="+strconv.Itoa(server.Port))
	}
	parts = append(parts, "Database="+server.Database, "User Id="+login.User, "Password="+login.Password)
	return strings.Join(parts, "; ")
}

func (d *PostgreSQL) DefaultDataProvider() string { return PostgreSQLDataProvider }

var _ Dialect = (*PostgreSQL)(nil)
