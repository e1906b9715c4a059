package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"userManagement/internal/db"
	"userManagement/internal/filter"
	"userManagement/models"
)

func openRepo(t *testing.T) *UserRepository {
	t.Helper()
	d, err := db.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return NewUserRepository(d)
}

func seed(t *testing.T, repo *UserRepository, users ...models.User) []*models.User {
	t.Helper()
	out := make([]*models.User, 0, len(users))
	for i := range users {
		u, err := repo.Create(context.Background(), &users[i])
		if err != nil {
			t.Fatalf("seed %s: %v", users[i].Email, err)
		}
		out = append(out, u)
	}
	return out
}

func TestUserRepository_CRUDAndQueries(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	// Create
	u, err := repo.Create(ctx, &models.User{FirstName: "Alice", LastName: "Wonder", Email: "alice@wonder.land", Phone: "+15550100", DOB: "1990-02-03"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 || u.FirstName != "Alice" || u.DOB != "1990-02-03" {
		t.Fatalf("unexpected created user: %+v", u)
	}

	// GetByID
	g, err := repo.GetByID(ctx, u.ID)
	if err != nil || g == nil || g.Email != "alice@wonder.land" {
		t.Fatalf("get by id: %v %+v", err, g)
	}

	// GetByEmail
	g2, err := repo.GetByEmail(ctx, "alice@wonder.land")
	if err != nil || g2 == nil || g2.ID != u.ID {
		t.Fatalf("get by email: %v %+v", err, g2)
	}
	missing, err := repo.GetByEmail(ctx, "ALICE@wonder.land")
	if err != nil || missing != nil {
		t.Fatalf("email lookup must be exact: %v %+v", err, missing)
	}

	// List
	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}

	// Update
	u.Address = "Rabbit Hole 1"
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	g3, _ := repo.GetByID(ctx, u.ID)
	if g3.Address != "Rabbit Hole 1" {
		t.Fatalf("address not updated: %+v", g3)
	}

	// Delete
	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := repo.GetByID(ctx, u.ID)
	if err != nil || gone != nil {
		t.Fatalf("expected user deleted, got: %+v err=%v", gone, err)
	}
}

func TestUserRepository_DuplicateEmailRejected(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	created := seed(t, repo,
		models.User{FirstName: "John", LastName: "Doe", Email: "john@example.com", Phone: "1"},
		models.User{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "2"},
	)

	_, err := repo.Create(ctx, &models.User{FirstName: "J", LastName: "D", Email: "john@example.com", Phone: "3"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("create duplicate: want ErrDuplicateEmail, got %v", err)
	}

	jane := *created[1]
	jane.Email = "john@example.com"
	if err := repo.Update(ctx, &jane); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("update duplicate: want ErrDuplicateEmail, got %v", err)
	}
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	repo := openRepo(t)
	err := repo.Update(context.Background(), &models.User{ID: 404, FirstName: "a", LastName: "b", Email: "c@d.e", Phone: "1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserRepository_SearchAgreesWithFilter(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	seed(t, repo,
		models.User{FirstName: "John", LastName: "Doe", Email: "john@example.com", Phone: "1"},
		models.User{FirstName: "Jane", LastName: "Smith", Email: "jane@example.com", Phone: "2"},
		models.User{FirstName: "Jonathan", LastName: "Davis", Email: "jd@example.com", Phone: "3"},
		models.User{FirstName: "Ölga", LastName: "Ødegaard", Email: "olga@example.no", Phone: "4"},
		models.User{FirstName: "100%", LastName: "under_score", Email: "pct@example.com", Phone: "5"},
	)
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	for _, q := range []string{"jo", "JO", "a", "smith", "öl", "ØDE", "%", "_", "example", " ", "zz"} {
		got, err := repo.Search(ctx, q)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		want := filter.Search(all, q)
		if len(got) != len(want) {
			t.Fatalf("search %q: storage=%d in-memory=%d", q, len(got), len(want))
		}
		for i := range got {
			if got[i].ID != want[i].ID {
				t.Fatalf("search %q: row %d storage id=%d in-memory id=%d", q, i, got[i].ID, want[i].ID)
			}
		}
	}
}

func TestUserRepository_ListDBError(t *testing.T) {
	d, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer d.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, first_name, last_name, email, phone, dob, address FROM users ORDER BY id`)).
		WillReturnError(errors.New("db down"))

	_, err = NewUserRepository(d).List(context.Background())
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected db error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	d, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer d.Close()

	mock.ExpectQuery(`FROM users WHERE email = \? LIMIT 1`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "phone", "dob", "address"}))

	u, err := NewUserRepository(d).GetByEmail(context.Background(), "ghost@example.com")
	if err != nil || u != nil {
		t.Fatalf("want nil, nil; got %+v, %v", u, err)
	}
}
