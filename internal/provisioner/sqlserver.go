package provisioner

import (
	"fmt"
	"strconv"
	"strings"

	"CSU/internal/executor"
	"CSU/internal/model"
)

// SQLServerDataProvider is the default descriptor for SQL Server connections.
const SQLServerDataProvider = "AssemblyName={System.Data, Version=4.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089}; ConnectionType=System.Data.SqlClient.SqlConnection; AdapterType=System.Data.SqlClient.SqlDataAdapter"

// SQLServer drives sqlcmd. The password is passed through SQLCMDPASSWORD.
type SQLServer struct {
	client string
}

// NewSQLServer returns the SQL Server dialect using client as the sqlcmd binary.
func NewSQLServer(client string) *SQLServer {
	if client == "" {
		client = "sqlcmd"
	}
	return &SQLServer{client: client}
}

func (d *SQLServer) Backend() model.BackendKind { return model.BackendSQLServer }
func (d *SQLServer) Label() string              { return "SQL Server" }
func (d *SQLServer) ScriptDir() string          { return "SQL Server" }
func (d *SQLServer) Client() string             { return d.client }

func (d *SQLServer) Command(server model.ServerOptions, login Login, database, scriptPath string) (executor.Command, func(), error) {
	if database == "" {
		database = "master"
	}

	args := []string{"-S", sqlServerAddress(server), "-d", database, "-b", "-i", scriptPath}
	cmd := executor.Command{Name: d.client}
	if login.Integrated {
		args = append(args, "-E")
	} else {
		args = append(args, "-U", login.User)
		cmd.Env = []string{"SQLCMDPASSWORD=" + login.Password}
	}
	cmd.Args = args

	return cmd, noop, nil
}

func (d *SQLServer) CreateDatabase(name string) Statement {
	return Statement{SQL: fmt.Sprintf("CREATE DATABASE %s\nGO\n", sqlServerIdentifier(name))}
}

// CreateUser creates the server login in master, then the database user for it.
func (d *SQLServer) CreateUser(database string, user model.Credentials) []Statement {
	name := sqlServerIdentifier(user.Name)
	return []Statement{
		{
			SQL: fmt.Sprintf("IF NOT EXISTS (SELECT * FROM sys.server_principals WHERE name = %s) CREATE LOGIN %s WITH PASSWORD=%s, DEFAULT_DATABASE=[master], CHECK_EXPIRATION=OFF, CHECK_POLICY=OFF\nGO\n",
				sqlServerLiteral(user.Name), name, sqlServerLiteral(user.Password)),
		},
		{
			Database: database,
			SQL:      fmt.Sprintf("CREATE USER %s FOR LOGIN %s\nGO\n", name, name),
		},
	}
}

func (d *SQLServer) Grant(database, user string) Statement {
	return Statement{
		Database: database,
		SQL:      fmt.Sprintf("GRANT SELECT, UPDATE, INSERT TO %s\nGO\n", sqlServerIdentifier(user)),
	}
}

func (d *SQLServer) ConnectionString(server model.ServerOptions, login Login) string {
	parts := []string{"Data Source=" + sqlServerAddress(server), "Initial Catalog=" + server.Database}
	if login.Integrated {
		parts = append(parts, "Integrated Security=SSPI")
	} else {
		parts = append(parts, "User ID="+login.User, "Password="+login.Password)
	}
	return strings.Join(parts, "; ")
}

func (d *SQLServer) DefaultDataProvider() string { return SQLServerDataProvider }

func sqlServerAddress(server model.ServerOptions) string {
	if server.Port > 0 {
		return server.Host + "," + strconv.Itoa(server.Port)
	}
	return server.Host
}

func sqlServerIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func sqlServerLiteral(value string) string {
	return "N'" + strings.ReplaceAll(value, "'", "''") + "'"
}

var _ Dialect = (*SQLServer)(nil)
