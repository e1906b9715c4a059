package db

import (
	"context"
	"database/sql"
	"sync"
)

// Provider hands out one process-wide database handle. The handle is opened
// and migrated on first use; concurrent first callers wait for that single
// attempt and share its outcome, error included.
type Provider struct {
	path     string
	migrator *Migrator

	once sync.Once
	db   *sql.DB
	err  error
}

// NewProvider returns a provider for the database at path.
func NewProvider(path string, m *Migrator) *Provider {
	if m == nil {
		m = NewMigrator(nil)
	}
	return &Provider{path: path, migrator: m}
}

// Get returns the shared handle, opening and migrating it on the first call.
func (p *Provider) Get(ctx context.Context) (*sql.DB, error) {
	p.once.Do(func() {
		p.db, p.err = OpenWith(ctx, p.path, p.migrator)
	})
	return p.db, p.err
}

// Close closes the handle if it was opened.
func (p *Provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
