package users

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"userManagement/internal/filter"
	"userManagement/internal/metrics"
	tu "userManagement/internal/testutil"
	"userManagement/models"
	"userManagement/repository"
)

func newService(t *testing.T) (*Service, []*models.User) {
	t.Helper()
	d := tu.OpenInMemoryDB(t, t.Name())
	seeded := tu.SeedUsers(t, d)
	return NewService(repository.NewUserRepository(d), zap.NewNop(), metrics.New()), seeded
}

func validInput() Input {
	return Input{FirstName: "Bob", LastName: "Builder", Email: "bob@build.it", Phone: "+15551234", DOB: "2000-02-29"}
}

func ids(us []*models.User) []int64 {
	out := make([]int64, 0, len(us))
	for _, u := range us {
		out = append(out, u.ID)
	}
	return out
}

func TestFilter_NarrowsSnapshot(t *testing.T) {
	svc, seeded := newService(t)
	ctx := context.Background()

	got, err := svc.Filter(ctx, filter.Criteria{FirstName: " jo ", Email: "example"})
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[0].ID}, ids(got))

	got, err = svc.Filter(ctx, filter.Criteria{})
	require.NoError(t, err)
	assert.Len(t, got, len(seeded))

	got, err = svc.Filter(ctx, filter.Criteria{LastName: "zzz"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilter_LogsStagesAndRecordsMetrics(t *testing.T) {
	d := tu.OpenInMemoryDB(t, t.Name())
	tu.SeedUsers(t, d)
	core, logs := observer.New(zap.DebugLevel)
	m := metrics.New()
	svc := NewService(repository.NewUserRepository(d), zap.New(core), m)

	_, err := svc.Filter(context.Background(), filter.Criteria{FirstName: "j", Phone: "+1"})
	require.NoError(t, err)

	stages := logs.FilterMessage("filter stage").All()
	require.Len(t, stages, 2)
	assert.Equal(t, "first_name", stages[0].ContextMap()["stage"])
	assert.Equal(t, int64(4), stages[0].ContextMap()["before"])
	assert.Equal(t, int64(3), stages[0].ContextMap()["after"])
	assert.Equal(t, "phone", stages[1].ContextMap()["stage"])
	assert.Equal(t, int64(2), stages[1].ContextMap()["after"])

	n, err := testutil.GatherAndCount(m.Registry, "users_filter_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreate_ValidatesAndSanitizes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := validInput()
	in.FirstName = "  <b>Bob</b> "
	in.LastName = "O'Brien"
	u, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "Bob", u.FirstName)
	assert.Equal(t, "O'Brien", u.LastName)
	assert.Equal(t, "2000-02-29", u.DOB)

	stored, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, stored)
}

func TestCreate_StripsEntityEncodedMarkup(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := validInput()
	in.FirstName = "&lt;script&gt;alert(1)&lt;/script&gt;"
	_, err := svc.Create(ctx, in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "first_name")

	in = validInput()
	in.LastName = "&lt;b&gt;Builder&lt;/b&gt;"
	in.Address = "&amp;lt;i&amp;gt;12 Main St &amp; Co"
	u, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Builder", u.LastName)
	assert.NotContains(t, u.Address, "<")
	assert.Contains(t, u.Address, "12 Main St & Co")
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[string]func(*Input){
		"first_name": func(in *Input) { in.FirstName = "   " },
		"last_name":  func(in *Input) { in.LastName = "<i></i>" },
		"email":      func(in *Input) { in.Email = "not-an-email" },
		"phone":      func(in *Input) { in.Phone = "0123" },
		"dob":        func(in *Input) { in.DOB = "2001-02-29" },
	}
	for field, mutate := range cases {
		in := validInput()
		mutate(&in)
		_, err := svc.Create(ctx, in)
		require.Error(t, err, field)
		assert.True(t, errors.Is(err, ErrValidation), field)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), field)
		assert.Contains(t, verr.Fields, field)
	}
}

func TestCreate_PhoneAndDateRules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := validInput()
	in.Phone = "15"
	in.DOB = ""
	_, err := svc.Create(ctx, in)
	require.NoError(t, err, "two digits without + and no dob are fine")

	in = validInput()
	in.Email = "other@build.it"
	in.Phone = "+1234567890123456"
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, ErrValidation, "sixteen digits is too long")
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, seeded := newService(t)
	in := validInput()
	in.Email = seeded[1].Email
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUpdate(t *testing.T) {
	svc, seeded := newService(t)
	ctx := context.Background()

	in := Input{FirstName: "John", LastName: "Doe", Email: seeded[0].Email, Phone: "+15550001", Address: "42 Side St"}
	u, err := svc.Update(ctx, seeded[0].ID, in)
	require.NoError(t, err, "keeping your own email is not a duplicate")
	assert.Equal(t, "42 Side St", u.Address)

	in.Email = seeded[1].Email
	_, err = svc.Update(ctx, seeded[0].ID, in)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	in.Email = "ghost@example.com"
	_, err = svc.Update(ctx, 999, in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndGet(t *testing.T) {
	svc, seeded := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, seeded[2].ID))
	_, err := svc.Get(ctx, seeded[2].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, seeded[2].ID), ErrNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSearch(t *testing.T) {
	svc, seeded := newService(t)
	got, err := svc.Search(context.Background(), "ON")
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[2].ID, seeded[3].ID}, ids(got))
}

func receive(t *testing.T, ch <-chan []*models.User) []*models.User {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	svc, seeded := newService(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	assert.Len(t, receive(t, ch), len(seeded))

	_, err = svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Len(t, receive(t, ch), len(seeded)+1)

	// A failed write publishes nothing.
	_, err = svc.Create(context.Background(), validInput())
	require.ErrorIs(t, err, ErrDuplicateEmail)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot of %d users", len(snap))
	default:
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSubscribe_SlowSubscriberSeesLatest(t *testing.T) {
	svc, seeded := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Delete(context.Background(), seeded[i].ID))
	}
	last := receive(t, ch)
	assert.Equal(t, []int64{seeded[3].ID}, ids(last))
}

func TestConcurrentCreatesKeepEmailsUnique(t *testing.T) {
	svc, seeded := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, validInput())
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	}
	assert.Equal(t, 1, ok)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(seeded)+1)
}
