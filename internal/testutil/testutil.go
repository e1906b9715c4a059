package testutil

import (
	"context"
	"database/sql"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"userManagement/internal/db"
	"userManagement/models"
	"userManagement/repository"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The DB is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// Shared cache keeps one database across the pool's connections.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// Fixture is the user set most tests start from, in insertion order.
func Fixture() []models.User {
	return []models.User{
		{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Phone: "+15550001"},
		{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", Phone: "+15550002"},
		{FirstName: "Jonathan", LastName: "Davis", Email: "jon.davis@mail.org", Phone: "+4420001"},
		{FirstName: "Alice", LastName: "Wonder", Email: "alice@wonder.land", Phone: "+15559999", DOB: "1990-02-03"},
	}
}

// SeedUsers inserts Fixture() and returns the stored rows.
func SeedUsers(t *testing.T, d *sql.DB) []*models.User {
	t.Helper()
	repo := repository.NewUserRepository(d)
	var out []*models.User
	for _, u := range Fixture() {
		u := u
		created, err := repo.Create(context.Background(), &u)
		if err != nil {
			t.Fatalf("seed %s: %v", u.Email, err)
		}
		out = append(out, created)
	}
	return out
}

// GenerateJWTHS256 returns a signed JWT string with minimal claims used by the app.
func GenerateJWTHS256(t *testing.T, secret, name, kind string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"name": name,
		"kind": kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}

// OutgoingBearer is CtxWithBearer for client-side calls.
func OutgoingBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
