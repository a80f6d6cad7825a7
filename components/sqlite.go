package components

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	_ "modernc.org/sqlite"

	"webup/deploy/domain"
)

// sqliteEngine snapshots database files with VACUUM INTO, which gives a
// consistent copy even while the database is in use.
type sqliteEngine struct {
	logger loggo.Logger
}

func sqlitePaths(section domain.Section) ([]string, error) {
	paths := section.List("paths")
	if len(paths) == 0 {
		return nil, errors.WithType(errors.Errorf("no sqlite database: set %q", "paths"), domain.MissingField)
	}
	seen := map[string]string{}
	for _, p := range paths {
		base := filepath.Base(p)
		if other, ok := seen[base]; ok {
			return nil, errors.WithType(errors.Errorf("%s and %s share the archive name %q", other, p, base), domain.ConfigError)
		}
		seen[base] = p
	}
	return paths, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (e *sqliteEngine) dump(ctx context.Context, section domain.Section, destDir string) error {
	paths, err := sqlitePaths(section)
	if err != nil {
		return err
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return errors.Annotatef(err, "sqlite database")
		}
		target := filepath.Join(destDir, filepath.Base(p))
		e.logger.Infof("dumping database '%s'", p)
		if err := vacuumInto(ctx, p, target); err != nil {
			return errors.Annotatef(err, "dumping %s", p)
		}
	}
	return nil
}

func vacuumInto(ctx context.Context, src, target string) error {
	db, err := sql.Open("sqlite", src)
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(target))
	return errors.Trace(err)
}

func integrityCheck(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return errors.Trace(err)
	}
	if result != "ok" {
		return errors.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func (e *sqliteEngine) restore(ctx context.Context, section domain.Section, srcDir string) error {
	paths, err := sqlitePaths(section)
	if err != nil {
		return err
	}

	for _, p := range paths {
		src := filepath.Join(srcDir, filepath.Base(p))
		if !fileExists(src) {
			e.logger.Warningf("no dump of '%s' in archive, skipping", p)
			continue
		}
		if err := integrityCheck(ctx, src); err != nil {
			return errors.Annotatef(err, "restoring %s", p)
		}

		e.logger.Infof("restoring database '%s'", p)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.Trace(err)
		}
		// copy next to the target then rename, so readers never see a
		// half-written database
		tmp := p + ".restore"
		os.Remove(tmp)
		if err := vacuumInto(ctx, src, tmp); err != nil {
			os.Remove(tmp)
			return errors.Annotatef(err, "restoring %s", p)
		}
		for _, suffix := range []string{"-wal", "-shm", "-journal"} {
			os.Remove(p + suffix)
		}
		if err := os.Rename(tmp, p); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
