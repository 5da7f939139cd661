package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	dialect    = "postgres"
)

// Runner applies the goose migrations in dir to one database.
type Runner struct {
	db  *sql.DB
	dir string
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Runner{db: db, dir: dir}, nil
}

func (r *Runner) Up(ctx context.Context) error     { return r.run(ctx, "up") }
func (r *Runner) Down(ctx context.Context) error   { return r.run(ctx, "down") }
func (r *Runner) Status(ctx context.Context) error { return r.run(ctx, "status") }

func (r *Runner) run(ctx context.Context, command string) error {
	if err := goose.RunContext(ctx, command, r.db, r.dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// To moves the schema up or down until version (YYYYMMDDHHMMSS) is current.
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := ParseVersion(version)
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current < target:
		err = goose.UpToContext(ctx, r.db, r.dir, target)
	case current > target:
		err = goose.DownToContext(ctx, r.db, r.dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// ParseVersion accepts the 14 digit timestamp used in migration filenames.
func ParseVersion(version string) (int64, error) {
	if len(version) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	return target, nil
}
