package data

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// VerifySQLite opens the database file at path read-only and runs PRAGMA quick_check.
func VerifySQLite(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if info.Size() == 0 {
		return errors.Errorf("%s is empty", path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "PRAGMA quick_check")
	if err != nil {
		return errors.Wrapf(err, "check %s", path)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return errors.Wrapf(err, "check %s", path)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "check %s", path)
	}
	if len(problems) > 0 {
		return errors.Errorf("%s failed integrity check: %s", path, strings.Join(problems, "; "))
	}
	return nil
}
