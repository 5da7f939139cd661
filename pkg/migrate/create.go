package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/slug"
)

const versionLayout = "20060102150405"

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<name>.sql. The version is the current UTC second or,
// when dir already holds a migration at or after it, one second past the newest.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	base := strings.ReplaceAll(slug.Make(name), "-", "_")
	if base == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, time.Now().UTC())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, version.Format(versionLayout)+"_"+base+".sql")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, sqlTemplate, base); err != nil {
		f.Close()
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close migration %q: %w", path, err)
	}
	return path, nil
}

func nextVersion(dir string, now time.Time) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("read dir %q: %w", dir, err)
	}
	next := now.Truncate(time.Second)
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		existing, err := time.Parse(versionLayout, m[1])
		if err != nil {
			continue
		}
		if !existing.Before(next) {
			next = existing.Add(time.Second)
		}
	}
	return next, nil
}
