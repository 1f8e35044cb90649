package provisioner

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	apperrors "CSU/internal/errors"
	"CSU/internal/executor"
	"CSU/internal/logger"
	"CSU/internal/model"
	"CSU/internal/status"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// inputOf returns the SQL file a client command reads.
func inputOf(cmd executor.Command) string {
	if cmd.StdinFile != "" {
		return cmd.StdinFile
	}
	for i, arg := range cmd.Args {
		if (arg == "-i" || arg == "-f") && i+1 < len(cmd.Args) {
			return cmd.Args[i+1]
		}
	}
	return ""
}

type sqlClient struct {
	mu       sync.Mutex
	inputs   []string
	failWhen func(input, sql string) bool
}

func (c *sqlClient) fake() *executor.Fake {
	return &executor.Fake{RunFunc: func(_ context.Context, cmd executor.Command, onLine executor.LineHandler) (*executor.Result, error) {
		input := inputOf(cmd)
		content, _ := os.ReadFile(input)

		label := filepath.Base(input)
		if strings.HasPrefix(label, "csu-statement-") {
			label = strings.TrimSpace(string(content))
		}
		c.mu.Lock()
		c.inputs = append(c.inputs, label)
		c.mu.Unlock()

		if c.failWhen != nil && c.failWhen(filepath.Base(input), string(content)) {
			onLine(executor.Stderr, "ERROR 1064: syntax error")
			return &executor.Result{ExitCode: 1, Stderr: []string{"ERROR 1064: syntax error"}}, errors.New("exit status 1")
		}
		onLine(executor.Stdout, "ok")
		return &executor.Result{}, nil
	}}
}

func (c *sqlClient) scripts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, in := range c.inputs {
		if strings.HasSuffix(in, ".sql") {
			out = append(out, in)
		}
	}
	return out
}

func mysqlRequest() *model.Request {
	return &model.Request{
		Kind:    model.KindDatabase,
		Backend: model.BackendMySQL,
		Server: model.ServerOptions{
			Host:          "db.local",
			Database:      "openPDC",
			AdminUser:     "root",
			AdminPassword: "admin-secret",
		},
	}
}

func TestScriptRunnerRunsJobInOrderWithProgress(t *testing.T) {
	client := &sqlClient{}
	rec := status.NewRecorder()
	req := mysqlRequest()
	req.InitialData = true
	req.SampleData = true

	p := NewScriptRunner(NewMySQL(""), client.fake(), "/scripts", 0, rec, logger.NewMockLogger())
	state := model.NewState("run")
	res, err := p.Provision(context.Background(), req, state)

	require.NoError(t, err)
	assert.Equal(t, []string{"openPDC.sql", "InitialDataSet.sql", "SampleDataSet.sql"}, client.scripts())
	assert.Equal(t, []int{30, 60, 90}, rec.ProgressValues())
	assert.Equal(t, "CREATE DATABASE `openPDC`;", client.inputs[0])
	assert.Equal(t, "Server=db.local; Database=openPDC; Uid=root; Pwd=admin-secret;", res.ConnectionString)
	assert.Equal(t, MySQLDataProvider, res.DataProviderString)
	assert.Equal(t, "root", state.ActiveUser)
	assert.Len(t, res.Scripts, 4)
	assert.Equal(t, 4, rec.CountLines("ok"))
}

func TestScriptRunnerProgressFloors(t *testing.T) {
	client := &sqlClient{}
	rec := status.NewRecorder()
	req := mysqlRequest()
	req.Existing = true
	req.Migrate = true

	p := NewScriptRunner(NewMySQL(""), client.fake(), "/scripts", 0, rec, logger.NewMockLogger())
	_, err := p.Provision(context.Background(), req, model.NewState("run"))
	require.NoError(t, err)

	assert.Equal(t, []string{"openPDC.sql"}, client.scripts())
	assert.NotContains(t, client.inputs, "CREATE DATABASE `openPDC`;")
	assert.Equal(t, []int{90}, rec.ProgressValues())

	req = mysqlRequest()
	req.InitialData = true
	rec = status.NewRecorder()
	p = NewScriptRunner(NewMySQL(""), (&sqlClient{}).fake(), "/scripts", 0, rec, logger.NewMockLogger())
	_, err = p.Provision(context.Background(), req, model.NewState("run"))
	require.NoError(t, err)
	assert.Equal(t, []int{45, 90}, rec.ProgressValues())
}

func TestScriptRunnerStopsAtFirstFailingScript(t *testing.T) {
	client := &sqlClient{failWhen: func(input, _ string) bool { return input == "InitialDataSet.sql" }}
	rec := status.NewRecorder()
	req := mysqlRequest()
	req.InitialData = true
	req.SampleData = true

	p := NewScriptRunner(NewMySQL(""), client.fake(), "/scripts", 0, rec, logger.NewMockLogger())
	res, err := p.Provision(context.Background(), req, model.NewState("run"))

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeScriptFailure))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "InitialDataSet.sql", appErr.Metadata["script"])
	assert.Equal(t, "ERROR 1064: syntax error", appErr.Metadata["stderr"])

	assert.Equal(t, []string{"openPDC.sql", "InitialDataSet.sql"}, client.scripts())
	assert.Equal(t, []int{30}, rec.ProgressValues())
	assert.Equal(t, 1, rec.CountLines("ERROR 1064"))
	assert.Len(t, res.Scripts, 3)
}

func TestScriptRunnerGrantFailureKeepsAdminCredentials(t *testing.T) {
	client := &sqlClient{failWhen: func(_, sql string) bool { return strings.HasPrefix(sql, "GRANT") }}
	rec := status.NewRecorder()
	req := mysqlRequest()
	req.CreateUser = true
	req.NewUser = model.Credentials{Name: "pdc", Password: "pdc-secret"}

	p := NewScriptRunner(NewMySQL(""), client.fake(), "/scripts", 0, rec, logger.NewMockLogger())
	state := model.NewState("run")
	_, err := p.Provision(context.Background(), req, state)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserCreationFailure))
	assert.Equal(t, "root", state.ActiveUser)
	assert.Equal(t, 1, rec.CountLines("Created new user pdc."))
	assert.Zero(t, rec.CountLinesFold("grant"))
	assert.Contains(t, err.Error(), "failed to grant access on openPDC to pdc")
	assert.NotContains(t, rec.ProgressValues(), 95)
}

func TestScriptRunnerSwitchesToNewUser(t *testing.T) {
	client := &sqlClient{}
	rec := status.NewRecorder()
	req := mysqlRequest()
	req.CreateUser = true
	req.Encrypt = true
	req.NewUser = model.Credentials{Name: "pdc", Password: "pdc-secret"}

	p := NewScriptRunner(NewMySQL(""), client.fake(), "/scripts", 0, rec, logger.NewMockLogger())
	state := model.NewState("run")
	res, err := p.Provision(context.Background(), req, state)

	require.NoError(t, err)
	assert.Equal(t, "pdc", state.ActiveUser)
	assert.Contains(t, res.ConnectionString, "Uid=pdc; Pwd=pdc-secret;")
	assert.True(t, res.Encrypt)
	assert.Equal(t, []int{90, 95}, rec.ProgressValues())
	assert.Contains(t, client.inputs, "CREATE USER 'pdc' IDENTIFIED BY 'pdc-secret';")
	assert.Contains(t, client.inputs, "GRANT SELECT, UPDATE, INSERT ON `openPDC`.* TO 'pdc';")
}

func TestScriptRunnerExistingTargetSkipsSchemaWork(t *testing.T) {
	client := &sqlClient{}
	req := mysqlRequest()
	req.Existing = true
	req.CreateUser = true
	req.NewUser = model.Credentials{Name: "pdc", Password: "x"}
	req.Server.DataProviderString = "custom provider"

	p := NewScriptRunner(NewMySQL(""), client.fake(), "/scripts", 0, status.NewRecorder(), logger.NewMockLogger())
	res, err := p.Provision(context.Background(), req, model.NewState("run"))

	require.NoError(t, err)
	assert.Empty(t, client.inputs)
	assert.Equal(t, "custom provider", res.DataProviderString)
}

func TestMySQLCommandKeepsPasswordOffCommandLine(t *testing.T) {
	server := model.ServerOptions{Host: "db.local", Port: 3307, Database: "openPDC"}
	cmd, cleanup, err := NewMySQL("").Command(server, Login{User: "root", Password: "s3cret"}, "openPDC", "/scripts/openPDC.sql")
	require.NoError(t, err)

	assert.NotContains(t, strings.Join(cmd.Args, " "), "s3cret")
	assert.Equal(t, "/scripts/openPDC.sql", cmd.StdinFile)

	optionsPath := strings.TrimPrefix(cmd.Args[0], "--defaults-extra-file=")
	opts, err := ini.Load(optionsPath)
	require.NoError(t, err)
	client := opts.Section("client")
	assert.Equal(t, "root", client.Key("user").String())
	assert.Equal(t, "s3cret", client.Key("password").String())
	assert.Equal(t, "3307", client.Key("port").String())

	cleanup()
	_, err = os.Stat(optionsPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSQLServerDialect(t *testing.T) {
	d := NewSQLServer("")
	server := model.ServerOptions{Host: "sql01", Port: 1433, Database: "openPDC"}

	cmd, _, err := d.Command(server, Login{User: "sa", Password: "pw"}, "", "/tmp/x.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"-S", "sql01,1433", "-d", "master", "-b", "-i", "/tmp/x.sql", "-U", "sa"}, cmd.Args)
	assert.Equal(t, []string{"SQLCMDPASSWORD=pw"}, cmd.Env)

	cmd, _, err = d.Command(server, Login{Integrated: true}, "openPDC", "/tmp/x.sql")
	require.NoError(t, err)
	assert.Contains(t, cmd.Args, "-E")
	assert.Empty(t, cmd.Env)

	stmts := d.CreateUser("openPDC", model.Credentials{Name: "o'brien", Password: "p'w"})
	require.Len(t, stmts, 2)
	assert.Empty(t, stmts[0].Database)
	assert.Contains(t, stmts[0].SQL, "CREATE LOGIN [o'brien] WITH PASSWORD=N'p''w'")
	assert.Equal(t, "openPDC", stmts[1].Database)

	assert.Equal(t, "Data Source=sql01,1433; Initial Catalog=openPDC; Integrated Security=SSPI",
		d.ConnectionString(server, Login{Integrated: true}))
}

func TestPostgreSQLDialect(t *testing.T) {
	d := NewPostgreSQL("")
	server := model.ServerOptions{Host: "pg", Port: 5432, Database: "open\"PDC"}

	cmd, _, err := d.Command(server, Login{User: "postgres", Password: "pw"}, "", "/tmp/x.sql")
	require.NoError(t, err)
	assert.Contains(t, strings.Join(cmd.Args, " "), "-d postgres -f /tmp/x.sql")
	assert.Equal(t, []string{"PGPASSWORD=pw"}, cmd.Env)

	assert.Equal(t, `CREATE DATABASE "open""PDC";`, d.CreateDatabase(server.Database).SQL)
	assert.Equal(t, `CREATE ROLE "pdc" LOGIN PASSWORD 'it''s';`, d.CreateUser("", model.Credentials{Name: "pdc", Password: "it's"})[0].SQL)
	assert.Equal(t, "Server=pg; Port=5432; Database=open\"PDC; User Id=u; Password=p", d.ConnectionString(server, Login{User: "u", Password: "p"}))
}

func buildImage(t *testing.T, path, table string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE " + table + " (ID INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSelectImage(t *testing.T) {
	assert.Equal(t, ImageSchema, SelectImage(&model.Request{}))
	assert.Equal(t, ImageInitialData, SelectImage(&model.Request{InitialData: true}))
	assert.Equal(t, ImageSampleData, SelectImage(&model.Request{InitialData: true, SampleData: true}))
	assert.Equal(t, ImageSchema, SelectImage(&model.Request{Existing: true, Migrate: true, InitialData: true, SampleData: true}))
}

func TestFileCopyCopiesSelectedImage(t *testing.T) {
	scripts := t.TempDir()
	buildImage(t, filepath.Join(scripts, "SQLite", ImageSchema), "SchemaOnly")
	buildImage(t, filepath.Join(scripts, "SQLite", ImageInitialData), "WithSeed")

	dest := filepath.Join(t.TempDir(), "data", "openPDC.db")
	rec := status.NewRecorder()
	req := &model.Request{Kind: model.KindDatabase, Backend: model.BackendSQLite, SQLite: model.SQLiteOptions{DestinationPath: dest}, InitialData: true}

	res, err := NewFileCopy(scripts, rec, logger.NewMockLogger()).Provision(context.Background(), req, model.NewState("run"))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 95}, rec.ProgressValues())
	assert.Equal(t, "Data Source="+dest+"; Version=3; Foreign Keys=True; FailIfMissing=True", res.ConnectionString)
	assert.Equal(t, SQLiteDataProvider, res.DataProviderString)

	db, err := sql.Open("sqlite", dest)
	require.NoError(t, err)
	defer db.Close()
	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table'").Scan(&name))
	assert.Equal(t, "WithSeed", name)
}

func TestFileCopyExistingWithoutMigrationSkipsCopy(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "openPDC.db")
	rec := status.NewRecorder()
	req := &model.Request{Kind: model.KindDatabase, Backend: model.BackendSQLite, SQLite: model.SQLiteOptions{DestinationPath: dest}, Existing: true}

	res, err := NewFileCopy(t.TempDir(), rec, logger.NewMockLogger()).Provision(context.Background(), req, model.NewState("run"))
	require.NoError(t, err)
	assert.Empty(t, rec.ProgressValues())
	assert.Contains(t, res.ConnectionString, dest)
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestFileCopyFailures(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "openPDC.db")
	req := &model.Request{Kind: model.KindDatabase, Backend: model.BackendSQLite, SQLite: model.SQLiteOptions{DestinationPath: dest}}

	_, err := NewFileCopy(t.TempDir(), status.NewRecorder(), logger.NewMockLogger()).Provision(context.Background(), req, model.NewState("run"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCopyFailure))

	scripts := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(scripts, "SQLite"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "SQLite", ImageSchema), []byte("corrupted image contents that are not sqlite"), 0o644))
	_, err = NewFileCopy(scripts, status.NewRecorder(), logger.NewMockLogger()).Provision(context.Background(), req, model.NewState("run"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCopyFailure))
}

func TestReferenceRecordsLocationVerbatim(t *testing.T) {
	req := &model.Request{Kind: model.KindWebService, WebServiceURL: "http://meta.local/svc?x=1", Encrypt: true}
	res, err := NewReference(model.KindWebService, logger.NewMockLogger()).Provision(context.Background(), req, model.NewState("run"))
	require.NoError(t, err)
	assert.Equal(t, "http://meta.local/svc?x=1", res.ConnectionString)
	assert.Empty(t, res.DataProviderString)
	assert.True(t, res.PrimaryOnly)
	assert.False(t, res.Encrypt)

	req = &model.Request{Kind: model.KindXML, XMLFilePath: `C:\meta\openPDC.xml`}
	res, err = NewReference(model.KindXML, logger.NewMockLogger()).Provision(context.Background(), req, model.NewState("run"))
	require.NoError(t, err)
	assert.Equal(t, `C:\meta\openPDC.xml`, res.ConnectionString)
}
