package components

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
	"webup/deploy/utils"
)

// Database dumps and restores the databases of a project.
//
// The section keys are:
//
//	type       postgresql (default), mysql or sqlite
//	names      databases to dump (postgresql, mysql)
//	host, port, user, password
//	container  compose service running the database server; the client
//	           tools are then run inside it with docker exec
//	paths      database files (sqlite)
type Database struct {
	runner domain.Runner
	logger loggo.Logger
}

func NewDatabase(ectx domain.ExecutionContext) *Database {
	return &Database{
		runner: ectx.Runner,
		logger: ectx.Logger("database"),
	}
}

type engine interface {
	dump(ctx context.Context, section domain.Section, destDir string) error
	restore(ctx context.Context, section domain.Section, srcDir string) error
}

func (d *Database) engine(section domain.Section) (engine, error) {
	switch dbType := section.String("type", "postgresql"); dbType {
	case "postgresql", "postgres", "pgsql":
		return &clientEngine{db: d, client: postgresClient{}}, nil
	case "mysql", "mariadb":
		return &clientEngine{db: d, client: mysqlClient{}}, nil
	case "sqlite", "sqlite3":
		return &sqliteEngine{logger: d.logger}, nil
	default:
		return nil, errors.WithType(errors.Errorf("unsupported database type %q (postgresql, mysql or sqlite)", dbType), domain.ConfigError)
	}
}

// Dump writes one dump per database into destDir, replacing its content.
func (d *Database) Dump(ctx context.Context, section domain.Section, destDir string) error {
	e, err := d.engine(section)
	if err != nil {
		return errors.Trace(err)
	}
	if err := utils.ReplaceDir(destDir); err != nil {
		return errors.Annotatef(err, "unable to create the db backup directory")
	}
	return errors.Trace(e.dump(ctx, section, destDir))
}

// Restore loads the dumps found in srcDir. A missing srcDir means the
// archive holds no databases: it is reported and skipped.
func (d *Database) Restore(ctx context.Context, section domain.Section, srcDir string) error {
	if !isDir(srcDir) {
		d.logger.Warningf("no databases in archive ('%s' missing), skipping", srcDir)
		return nil
	}
	e, err := d.engine(section)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.restore(ctx, section, srcDir))
}

// client builds the command lines of a database server's client tools.
type client interface {
	dumpArgs(conn connection, database string) []string
	restoreArgs(conn connection, database string) []string
	env(conn connection) []string
	// defaults fills the connection from the environment of the database
	// container.
	defaults(conn *connection, env domain.DockerContainerEnv)
}

type connection struct {
	host     string
	port     string
	user     string
	password string
	names    []string
}

type clientEngine struct {
	db     *Database
	client client
}

// connection resolves the connection settings and, when the database runs
// in a compose service, the container to run the client tools in.
func (e *clientEngine) connection(ctx context.Context, section domain.Section) (connection, string, error) {
	conn := connection{
		host:     section.String("host", ""),
		port:     section.String("port", ""),
		user:     section.String("user", ""),
		password: section.String("password", ""),
		names:    section.List("names"),
	}

	containerID := ""
	if service := section.String("container", ""); service != "" {
		id, err := utils.GetContainerID(ctx, e.db.runner, service)
		if err != nil {
			return conn, "", errors.Trace(err)
		}
		containerConfig, err := utils.GetContainerConfig(ctx, e.db.runner, id)
		if err != nil {
			return conn, "", errors.Trace(err)
		}
		e.db.logger.Infof("using container %s of service '%s' (image %s)", shortID(id), service, containerConfig.Image)
		e.client.defaults(&conn, containerConfig.Env)
		containerID = id
	}

	return conn, containerID, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func (e *clientEngine) command(args []string, conn connection, containerID string) domain.Command {
	if containerID != "" {
		return domain.NewContainerCommand(containerID, args, e.client.env(conn))
	}
	cmd := domain.NewCommand(args)
	cmd.Env = e.client.env(conn)
	return cmd
}

func (e *clientEngine) dump(ctx context.Context, section domain.Section, destDir string) error {
	conn, containerID, err := e.connection(ctx, section)
	if err != nil {
		return err
	}
	if len(conn.names) == 0 {
		return errors.WithType(errors.Errorf("no database to dump: set %q", "names"), domain.MissingField)
	}

	for _, database := range conn.names {
		cmd := e.command(e.client.dumpArgs(conn, database), conn, containerID)
		e.db.logger.Infof("dumping database '%s'", database)
		e.db.logger.Debugf("executing: %s", cmd)

		file, err := os.CreateTemp(destDir, "dump")
		if err != nil {
			return errors.Annotatef(err, "unable to create a tmp file")
		}

		var stderr strings.Builder
		if err := domain.WriteResultToFile(ctx, e.db.runner, cmd, file, &stderr); err != nil {
			file.Close()
			os.Remove(file.Name())
			return errors.Annotatef(err, "dumping %s: %s", database, strings.TrimSpace(stderr.String()))
		}
		if err := file.Close(); err != nil {
			os.Remove(file.Name())
			return errors.Trace(err)
		}

		if err := os.Rename(file.Name(), filepath.Join(destDir, database+".sql")); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (e *clientEngine) restore(ctx context.Context, section domain.Section, srcDir string) error {
	dumps, err := filepath.Glob(filepath.Join(srcDir, "*.sql"))
	if err != nil {
		return errors.Trace(err)
	}
	sort.Strings(dumps)
	if len(dumps) == 0 {
		e.db.logger.Warningf("no dump found in '%s'", srcDir)
		return nil
	}

	// the databases restored are the ones dumped, whatever "names" says now
	conn, containerID, err := e.connection(ctx, section)
	if err != nil {
		return err
	}

	for _, dump := range dumps {
		database := strings.TrimSuffix(filepath.Base(dump), ".sql")
		cmd := e.command(e.client.restoreArgs(conn, database), conn, containerID)
		e.db.logger.Infof("restoring database '%s'", database)
		e.db.logger.Debugf("executing: %s", cmd)

		if err := e.replay(ctx, cmd, dump); err != nil {
			return errors.Annotatef(err, "restoring %s", database)
		}
	}
	return nil
}

func (e *clientEngine) replay(ctx context.Context, cmd domain.Command, dump string) error {
	file, err := os.Open(dump)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()

	var stderr strings.Builder
	if err := e.db.runner.Run(ctx, cmd, domain.Streams{Stdin: file, Stderr: &stderr}); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Annotate(err, msg)
		}
		return err
	}
	return nil
}

type postgresClient struct{}

func (postgresClient) connArgs(conn connection) []string {
	var args []string
	if conn.host != "" {
		args = append(args, "-h", conn.host)
	}
	if conn.port != "" {
		args = append(args, "-p", conn.port)
	}
	if conn.user != "" {
		args = append(args, "-U", conn.user)
	}
	return args
}

func (c postgresClient) dumpArgs(conn connection, database string) []string {
	args := append([]string{"pg_dump"}, c.connArgs(conn)...)
	return append(args, "--clean", "--if-exists", "--no-owner", database)
}

func (c postgresClient) restoreArgs(conn connection, database string) []string {
	args := append([]string{"psql", "-q", "-v", "ON_ERROR_STOP=1"}, c.connArgs(conn)...)
	return append(args, "-d", database)
}

func (postgresClient) env(conn connection) []string {
	if conn.password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + conn.password}
}

func (postgresClient) defaults(conn *connection, env domain.DockerContainerEnv) {
	if conn.user == "" {
		conn.user = env["POSTGRES_USER"]
	}
	if conn.password == "" {
		conn.password = env["POSTGRES_PASSWORD"]
	}
	if len(conn.names) == 0 {
		if db := env["POSTGRES_DB"]; db != "" {
			conn.names = []string{db}
		} else if conn.user != "" {
			conn.names = []string{conn.user}
		}
	}
}

type mysqlClient struct{}

func (mysqlClient) connArgs(conn connection) []string {
	var args []string
	if conn.host != "" {
		args = append(args, "-h", conn.host)
	}
	if conn.port != "" {
		args = append(args, "-P", conn.port)
	}
	if conn.user != "" {
		args = append(args, "-u", conn.user)
	}
	return args
}

func (c mysqlClient) dumpArgs(conn connection, database string) []string {
	args := append([]string{"mysqldump"}, c.connArgs(conn)...)
	return append(args, "--single-transaction", "--routines", database)
}

func (c mysqlClient) restoreArgs(conn connection, database string) []string {
	args := append([]string{"mysql"}, c.connArgs(conn)...)
	return append(args, database)
}

func (mysqlClient) env(conn connection) []string {
	if conn.password == "" {
		return nil
	}
	return []string{"MYSQL_PWD=" + conn.password}
}

func (mysqlClient) defaults(conn *connection, env domain.DockerContainerEnv) {
	if conn.user == "" {
		conn.user = "root"
	}
	if conn.password == "" {
		conn.password = env["MYSQL_ROOT_PASSWORD"]
	}
	if len(conn.names) == 0 {
		if db := env["MYSQL_DATABASE"]; db != "" {
			conn.names = []string{db}
		} else {
			conn.names = []string{"db"}
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
