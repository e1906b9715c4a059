package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memDSN(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

// connectAt returns a store migrated up to version.
func connectAt(t *testing.T, version int) *sql.DB {
	t.Helper()
	d, err := Connect(memDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	_, err = NewMigrator(nil).MigrateTo(context.Background(), d, version)
	require.NoError(t, err)
	return d
}

type row struct {
	ID                                      int64
	First, Last, Email, Phone, DOB, Address string
}

func insertRaw(t *testing.T, d *sql.DB, rows ...row) {
	t.Helper()
	for _, r := range rows {
		_, err := d.Exec(`INSERT INTO users (id, first_name, last_name, email, phone, dob, address) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.First, r.Last, r.Email, r.Phone, r.DOB, r.Address)
		require.NoError(t, err)
	}
}

func allRows(t *testing.T, d *sql.DB) []row {
	t.Helper()
	rs, err := d.Query(`SELECT id, first_name, last_name, email, phone, dob, address FROM users ORDER BY id`)
	require.NoError(t, err)
	defer rs.Close()
	var out []row
	for rs.Next() {
		var r row
		require.NoError(t, rs.Scan(&r.ID, &r.First, &r.Last, &r.Email, &r.Phone, &r.DOB, &r.Address))
		out = append(out, r)
	}
	require.NoError(t, rs.Err())
	return out
}

func legacyRows() []row {
	return []row{
		{ID: 3, First: "John", Last: "Doe", Email: "john@example.com", Phone: "+15550003", DOB: "1990-01-02", Address: "1 Main St"},
		{ID: 5, First: "Jane", Last: "Smith", Email: "jane@example.com", Phone: "+15550005"},
		{ID: 7, First: "Johnny", Last: "Doe", Email: "john@example.com", Phone: "+15550007"},
	}
}

func TestOpen_FreshStoreReachesLatest(t *testing.T) {
	d, err := Open(memDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	v, err := NewMigrator(nil).Version(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, VersionUniqueEmail, v)

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'index_users_email'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUniqueEmail_KeepsLowestIDPerEmail(t *testing.T) {
	d := connectAt(t, VersionResetPlaceholder)
	insertRaw(t, d, legacyRows()...)

	res, err := NewMigrator(nil).Migrate(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, StateCompleted, res[0].State)

	got := allRows(t, d)
	require.Len(t, got, 2)
	assert.Equal(t, legacyRows()[0], got[0], "id 3 survives with every column intact")
	assert.Equal(t, legacyRows()[1], got[1])

	var dups int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM (SELECT email FROM users GROUP BY email HAVING COUNT(*) > 1)`).Scan(&dups))
	assert.Zero(t, dups)
}

func TestUniqueEmail_EnforcedAfterMigration(t *testing.T) {
	d := connectAt(t, VersionResetPlaceholder)
	insertRaw(t, d, legacyRows()...)
	_, err := NewMigrator(nil).Migrate(context.Background(), d)
	require.NoError(t, err)

	_, err = d.Exec(`INSERT INTO users (first_name, last_name, email, phone) VALUES ('X', 'Y', 'jane@example.com', '1')`)
	var se sqlite3.Error
	require.True(t, errors.As(err, &se), "want sqlite3.Error, got %v", err)
	assert.Equal(t, sqlite3.ErrConstraintUnique, se.ExtendedCode)

	res, err := d.Exec(`INSERT INTO users (first_name, last_name, email, phone) VALUES ('X', 'Y', 'new@example.com', '1')`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(8), id, "ids keep growing past the dropped duplicate")
}

func TestMigrate_IdempotentOnMigratedStore(t *testing.T) {
	d := connectAt(t, VersionResetPlaceholder)
	insertRaw(t, d, legacyRows()...)
	m := NewMigrator(nil)
	ctx := context.Background()

	_, err := m.Migrate(ctx, d)
	require.NoError(t, err)
	first := allRows(t, d)

	res, err := m.Migrate(ctx, d)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, first, allRows(t, d))

	// The step body itself is safe to re-run.
	require.NoError(t, WithTx(ctx, d, script(VersionUniqueEmail)))
	assert.Equal(t, first, allRows(t, d))
}

func TestMigrate_FailedStepLeavesStoreUntouched(t *testing.T) {
	d := connectAt(t, VersionResetPlaceholder)
	insertRaw(t, d, legacyRows()...)
	before := allRows(t, d)

	m := NewMigrator(nil)
	m.Steps = append(DefaultSteps()[:2], Step{
		Version: 3,
		Name:    "broken",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `CREATE TABLE users_new (id INTEGER PRIMARY KEY)`); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DROP TABLE users`); err != nil {
				return err
			}
			return errors.New("boom")
		},
	})

	res, err := m.Migrate(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	require.Len(t, res, 1)
	assert.Equal(t, StateFailed, res[0].State)

	v, err := m.Version(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, VersionResetPlaceholder, v)
	assert.Equal(t, before, allRows(t, d))

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'users_new'`).Scan(&n))
	assert.Zero(t, n)
}

func TestMigrate_ReportsTransitions(t *testing.T) {
	d, err := Connect(memDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	var got []string
	m := NewMigrator(nil)
	m.Observe = func(s Step, st State) { got = append(got, fmt.Sprintf("%d:%s", s.Version, st)) }

	_, err = m.Migrate(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1:pending", "1:in_progress", "1:completed",
		"2:pending", "2:completed",
		"3:pending", "3:in_progress", "3:completed",
	}, got)
}

func TestMigrate_StoreAheadOfBuild(t *testing.T) {
	d := connectAt(t, VersionUniqueEmail)
	_, err := d.Exec(`INSERT INTO schema_migrations(version, name) VALUES (9, 'future')`)
	require.NoError(t, err)

	_, err = NewMigrator(nil).Migrate(context.Background(), d)
	assert.ErrorIs(t, err, ErrSchemaAhead)
}

func TestMigrate_RejectsDuplicateVersions(t *testing.T) {
	d, err := Connect(memDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	m := NewMigrator(nil)
	m.Steps = []Step{{Version: 1, Name: "a"}, {Version: 1, Name: "b"}}
	_, err = m.Migrate(context.Background(), d)
	assert.ErrorContains(t, err, "duplicate migration version 0001")
}

func TestMigrate_IOErrorRollsBack(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer d.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE users_new`).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	m := &Migrator{Steps: []Step{
		{Version: 1, Name: "create_users"},
		{Version: 2, Name: "reset_placeholder"},
		{Version: 3, Name: "unique_users_email", Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `CREATE TABLE users_new (id INTEGER)`)
			return err
		}},
	}}

	_, err = m.Migrate(context.Background(), d)
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvider_OpensOnce(t *testing.T) {
	p := NewProvider(memDSN(t), nil)
	t.Cleanup(func() { _ = p.Close() })

	const n = 16
	handles := make([]*sql.DB, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := p.Get(context.Background())
			assert.NoError(t, err)
			handles[i] = d
		}(i)
	}
	wg.Wait()

	require.NotNil(t, handles[0])
	for _, h := range handles[1:] {
		assert.Same(t, handles[0], h)
	}
}
