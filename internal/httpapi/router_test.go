package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userManagement/internal/db"
	"userManagement/internal/metrics"
	"userManagement/internal/testutil"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz_OK(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, t.Name())
	h := &Handler{DB: d, Migrator: db.NewMigrator(nil), Metrics: metrics.New()}

	rec := get(t, h.Router(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, db.VersionUniqueEmail, body.SchemaVersion)
}

func TestHealthz_MigrationPending(t *testing.T) {
	d, err := db.Connect("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	m := db.NewMigrator(nil)
	_, err = m.MigrateTo(context.Background(), d, db.VersionResetPlaceholder)
	require.NoError(t, err)

	rec := get(t, (&Handler{DB: d, Migrator: m}).Router(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "migration_pending")
}

func TestHealthz_ClosedDB(t *testing.T) {
	d, err := db.Connect("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, d.Close())

	rec := get(t, (&Handler{DB: d, Migrator: db.NewMigrator(nil)}).Router(), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveFilter(1, 2)
	h := &Handler{Migrator: db.NewMigrator(nil), Metrics: m}

	rec := get(t, h.Router(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `users_filter_requests_total{active_criteria="1"} 1`)
}
