package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	stdfs "io/fs"
	"regexp"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema versions of the users store.
const (
	VersionCreateUsers      = 1
	VersionResetPlaceholder = 2
	VersionUniqueEmail      = 3
)

// DefaultSteps is the ordered schema history of the users store.
//
// Version 2 is a reserved destructive-reset slot. It has no body and must
// stay a no-op until a real schema change is assigned to it.
func DefaultSteps() []Step {
	return []Step{
		{Version: VersionCreateUsers, Name: "create_users", Up: script(VersionCreateUsers)},
		{Version: VersionResetPlaceholder, Name: "reset_placeholder", Destructive: true},
		{Version: VersionUniqueEmail, Name: "unique_users_email", Up: script(VersionUniqueEmail)},
	}
}

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.sql$`)

// loadScripts maps version -> embedded file path for files named like
// 0003_unique_users_email.sql.
func loadScripts() (map[int]string, error) {
	scripts := map[int]string{}
	list, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	for _, de := range list {
		if de.IsDir() {
			continue
		}
		m := migFileRe.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		var ver int
		if _, err := fmt.Sscanf(m[1], "%04d", &ver); err != nil {
			continue
		}
		if prev, ok := scripts[ver]; ok {
			return nil, fmt.Errorf("two scripts for version %04d: %s, %s", ver, prev, de.Name())
		}
		scripts[ver] = "migrations/" + de.Name()
	}
	return scripts, nil
}

// script returns a step body executing the embedded SQL file for version.
func script(version int) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		scripts, err := loadScripts()
		if err != nil {
			return err
		}
		path, ok := scripts[version]
		if !ok {
			return fmt.Errorf("missing script for version %04d", version)
		}
		text, err := migrationsFS.ReadFile(path)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(text)) == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, string(text)); err != nil {
			return fmt.Errorf("exec %s: %w", path, err)
		}
		return nil
	}
}
