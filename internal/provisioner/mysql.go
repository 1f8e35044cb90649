package provisioner

import (
	"fmt"
	"strconv"
	"strings"

	"CSU/internal/executor"
	"CSU/internal/model"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

// MySQLDataProvider is the default descriptor for MySQL connections.
const MySQLDataProvider = "AssemblyName={MySql.Data, Version=6.3.4.0, Culture=neutral, PublicKeyToken=c5687fc88969c44d}; ConnectionType=MySql.Data.MySqlClient.MySqlConnection; AdapterType=MySql.Data.MySqlClient.MySqlDataAdapter"

// MySQL drives the mysql client. Credentials travel in a --defaults-extra-file.
type MySQL struct {
	client string
}

// NewMySQL returns the MySQL dialect using client as the mysql binary.
func NewMySQL(client string) *MySQL {
	if client == "" {
		client = "mysql"
	}
	return &MySQL{client: client}
}

func (d *MySQL) Backend() model.BackendKind { return model.BackendMySQL }
func (d *MySQL) Label() string              { return "MySQL" }
func (d *MySQL) ScriptDir() string          { return "MySQL" }
func (d *MySQL) Client() string             { return d.client }

func (d *MySQL) Command(server model.ServerOptions, login Login, database, scriptPath string) (executor.Command, func(), error) {
	options, cleanup, err := d.optionFile(server, login)
	if err != nil {
		return executor.Command{}, nil, err
	}

	args := []string{"--defaults-extra-file=" + options, "--batch"}
	if database != "" {
		args = append(args, "--database="+database)
	}

	return executor.Command{
		Name:      d.client,
		Args:      args,
		StdinFile: scriptPath,
	}, cleanup, nil
}

// optionFile renders the [client] section the mysql client reads before its arguments.
func (d *MySQL) optionFile(server model.ServerOptions, login Login) (string, func(), error) {
	cfg := ini.Empty()
	section, err := cfg.NewSection("client")
	if err != nil {
		return "", nil, errors.Wrap(err, "build mysql option file")
	}

	keys := [][2]string{{"host", server.Host}}
	if server.Port > 0 {
		keys = append(keys, [2]string{"port", strconv.Itoa(server.Port)})
	}
	if login.User != "" {
		keys = append(keys, [2]string{"user", login.User})
	}
	if login.Password != "" {
		keys = append(keys, [2]string{"password", login.Password})
	}
	for _, kv := range keys {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return "", nil, errors.Wrapf(err, "build mysql option %s", kv[0])
		}
	}

	var buf strings.Builder
	if _, err := cfg.WriteTo(&buf); err != nil {
		return "", nil, errors.Wrap(err, "render mysql option file")
	}
	return writeTemp("csu-mysql-*.cnf", []byte(buf.String()))
}

func (d *MySQL) CreateDatabase(name string) Statement {
	return Statement{SQL: fmt.Sprintf("CREATE DATABASE %s;", mysqlIdentifier(name))}
}

func (d *MySQL) CreateUser(_ string, user model.Credentials) []Statement {
	return []Statement{{
		SQL: fmt.Sprintf("CREATE USER %s IDENTIFIED BY %s;", mysqlLiteral(user.Name), mysqlLiteral(user.Password)),
	}}
}

func (d *MySQL) Grant(database, user string) Statement {
	return Statement{
		SQL: fmt.Sprintf("GRANT SELECT, UPDATE, INSERT ON %s.* TO %s;", mysqlIdentifier(database), mysqlLiteral(user)),
	}
}

func (d *MySQL) ConnectionString(server model.ServerOptions, login Login) string {
	parts := []string{"Server=" + server.Host}
	if server.Port > 0 {
		parts = append(parts, "Port="+strconv.Itoa(server.Port))
	}
	parts = append(parts, "Database="+server.Database, "Uid="+login.User, "Pwd="+login.Password)
	return strings.Join(parts, "; ") + ";"
}

func (d *MySQL) DefaultDataProvider() string { return MySQLDataProvider }

func mysqlIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mysqlLiteral(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(value) + "'"
}

var _ Dialect = (*MySQL)(nil)
