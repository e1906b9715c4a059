package users

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"userManagement/internal/filter"
	"userManagement/internal/logging"
	"userManagement/internal/metrics"
	"userManagement/models"
	"userManagement/repository"
)

// Sentinel errors for deterministic transport mapping.
var (
	ErrDuplicateEmail = repository.ErrDuplicateEmail
	ErrNotFound       = repository.ErrNotFound
)

// Service is the consumer-facing API over the user store. Reads are taken
// from a fresh snapshot of the store; writes are serialized and every
// successful write is pushed to subscribers.
type Service struct {
	repo      repository.UserRepositoryI
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
	metrics   *metrics.Metrics

	// mu orders writes and subscription starts so snapshots reach
	// subscribers in commit order.
	mu   sync.Mutex
	subs *broker
}

// NewService wires a Service. logger and m may be nil.
func NewService(repo repository.UserRepositoryI, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		validator: newValidator(),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		metrics:   m,
		subs:      newBroker(),
	}
}

// List returns every user in id order.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.List(ctx)
}

// Get returns the user with id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// Filter narrows the current snapshot by c. Blank or odd search text never
// fails; only storage errors are returned.
func (s *Service) Filter(ctx context.Context, c filter.Criteria) ([]*models.User, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out, trace := c.Trace(all)
	if s.logger.Core().Enabled(zap.DebugLevel) {
		for _, st := range trace {
			s.logger.Debug("filter stage",
				zap.String("stage", st.Stage),
				zap.String("term", st.Term),
				zap.Int("before", st.Before),
				zap.Int("after", st.After))
		}
	}
	s.metrics.ObserveFilter(c.Active(), len(out))
	return out, nil
}

// Search returns users whose first or last name contains query.
func (s *Service) Search(ctx context.Context, query string) ([]*models.User, error) {
	return s.repo.Search(ctx, query)
}

// Create validates in and stores a new user.
func (s *Service) Create(ctx context.Context, in Input) (*models.User, error) {
	in = clean(s.sanitizer, in)
	if err := validate(s.validator, in); err != nil {
		s.metrics.ObserveWrite("create", outcome(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		s.metrics.ObserveWrite("create", outcome(err))
		return nil, err
	}
	if existing != nil {
		s.metrics.ObserveWrite("create", outcome(ErrDuplicateEmail))
		return nil, ErrDuplicateEmail
	}

	u, err := s.repo.Create(ctx, toUser(0, in))
	s.metrics.ObserveWrite("create", outcome(err))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.Int64("id", u.ID), logging.Email(u.Email))
	s.publishLocked(ctx)
	return u, nil
}

// Update validates in and overwrites the user with id.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*models.User, error) {
	in = clean(s.sanitizer, in)
	if err := validate(s.validator, in); err != nil {
		s.metrics.ObserveWrite("update", outcome(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		s.metrics.ObserveWrite("update", outcome(err))
		return nil, err
	}
	if existing != nil && existing.ID != id {
		s.metrics.ObserveWrite("update", outcome(ErrDuplicateEmail))
		return nil, ErrDuplicateEmail
	}

	u := toUser(id, in)
	err = s.repo.Update(ctx, u)
	s.metrics.ObserveWrite("update", outcome(err))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated", zap.Int64("id", id), logging.Email(u.Email))
	s.publishLocked(ctx)
	return u, nil
}

// Delete removes the user with id or returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.repo.GetByID(ctx, id)
	if err == nil && u == nil {
		err = ErrNotFound
	}
	if err == nil {
		err = s.repo.Delete(ctx, id)
	}
	s.metrics.ObserveWrite("delete", outcome(err))
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int64("id", id))
	s.publishLocked(ctx)
	return nil
}

// Subscribe returns a channel that receives the current snapshot at once and
// a fresh one after every successful write. A subscriber that falls behind
// only sees the most recent snapshot. The channel closes when ctx ends.
func (s *Service) Subscribe(ctx context.Context) (<-chan []*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ch := s.subs.add(snap)
	go func() {
		<-ctx.Done()
		s.subs.remove(ch)
	}()
	return ch, nil
}

// publishLocked must be called with s.mu held.
func (s *Service) publishLocked(ctx context.Context) {
	if s.subs.len() == 0 {
		return
	}
	snap, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn("snapshot after write failed", zap.Error(err))
		return
	}
	s.subs.publish(snap)
}

func toUser(id int64, in Input) *models.User {
	return &models.User{
		ID:        id,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		DOB:       in.DOB,
		Address:   in.Address,
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
