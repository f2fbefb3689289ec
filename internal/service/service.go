package service

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/events"
	"stockledger/internal/ledger"
	"stockledger/internal/lock"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// codeAttempts bounds the retries for random human-readable codes.
const codeAttempts = 20

type Service struct {
	store     repository.Store
	locker    lock.Locker
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	rnd       domain.Intn
	shortfall ledger.ShortfallPolicy
	drain     ledger.DrainPolicy
	operator  domain.Operator
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithRand(rnd domain.Intn) Option {
	return func(s *Service) { s.rnd = rnd }
}

func WithShortfallPolicy(p ledger.ShortfallPolicy) Option {
	return func(s *Service) { s.shortfall = p }
}

func WithDrainPolicy(p ledger.DrainPolicy) Option {
	return func(s *Service) { s.drain = p }
}

// WithOperator sets who ledger entries are attributed to when a command does
// not name an operator.
func WithOperator(op domain.Operator) Option {
	return func(s *Service) { s.operator = op }
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.Intn(n) }

func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		locker:    lock.NewKeyedMutex(),
		publisher: events.Nop{},
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		rnd:       globalRand{},
		shortfall: ledger.ShortfallReject,
		drain:     ledger.DrainFIFO,
		operator:  domain.Operator{ID: "system", Name: "System"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) operatorFor(op *domain.Operator) domain.Operator {
	if op == nil || (strings.TrimSpace(op.ID) == "" && strings.TrimSpace(op.Name) == "") {
		return s.operator
	}
	out := domain.Operator{ID: strings.TrimSpace(op.ID), Name: strings.TrimSpace(op.Name)}
	if out.ID == "" {
		out.ID = out.Name
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	return out
}

// uniqueCode draws codes from gen until lookup reports one as unused.
func uniqueCode(gen func() string, lookup func(code string) error) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := gen()
		err := lookup(code)
		if errors.Is(err, repository.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a free code after %d attempts: %w", codeAttempts, domain.ErrConflict)
}

// collect pages through a list query until a short page comes back.
func collect[T any](list func(limit, offset int) ([]T, error)) ([]T, error) {
	const page = 1000
	var out []T
	for offset := 0; ; offset += page {
		batch, err := list(page, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
	}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, domain.ErrValidation)...)
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
