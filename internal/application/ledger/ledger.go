package ledger

import (
	"context"
	"time"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
	"github.com/nep-campus/credit-ledger/pkg/retry"
)

// Unit is handed to every ledger update. Events emitted on it are published
// only after the unit commits.
type Unit struct {
	Tx
	events []shared.Event
}

// Emit queues an event for publication after commit.
func (u *Unit) Emit(events ...shared.Event) {
	u.events = append(u.events, events...)
}

// Evictor drops whatever a read cache holds for a student.
type Evictor interface {
	Invalidate(ctx context.Context, studentID string) error
}

const evictTimeout = 2 * time.Second

// Config tunes a Ledger.
type Config struct {
	// ConflictRetries is how many times a unit that lost a version race is
	// re-run before the failure is reported as inconsistent.
	ConflictRetries int
	Now             func() time.Time

	// Evict, when set, is called after every commit and before Update
	// returns.
	Evict Evictor
}

// Ledger runs per-student atomic updates with the version-conflict retry
// rule and publishes their events.
type Ledger struct {
	store     Store
	publisher shared.EventPublisher
	log       *logger.Logger
	evict     Evictor
	retries   int
	now       func() time.Time
}

// New creates a Ledger. publisher may be nil.
func New(store Store, publisher shared.EventPublisher, log *logger.Logger, cfg Config) *Ledger {
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		log:       log.With(logger.Component("ledger")),
		evict:     cfg.Evict,
		retries:   cfg.ConflictRetries,
		now:       cfg.Now,
	}
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time { return l.now() }

// Reader returns repositories for reads outside a unit.
func (l *Ledger) Reader() Tx { return l.store.Reader() }

// Update runs fn atomically for studentID. A version conflict re-runs the
// whole unit up to the configured number of retries; when they are used up
// the error is surfaced as shared.ErrInconsistent. Other errors are
// returned unchanged. After a commit the student's cached reads are evicted
// before Update returns, then the events are published.
func (l *Ledger) Update(ctx context.Context, op, studentID string, fn func(ctx context.Context, u *Unit) error) error {
	log := l.log.With(logger.Operation(op), logger.StudentID(studentID))

	var committed []shared.Event
	retrier := retry.ConflictRetrier(l.retries, shared.IsVersionConflict,
		retry.WithOnRetry(func(attempt int, err error, _ time.Duration) {
			log.Warn("ledger unit lost a version race, retrying", logger.Int("attempt", attempt), logger.Err(err))
		}),
	)
	err := retrier.Do(ctx, func(ctx context.Context) error {
		return l.store.Atomic(ctx, studentID, func(ctx context.Context, tx Tx) error {
			u := &Unit{Tx: tx}
			if err := fn(ctx, u); err != nil {
				return err
			}
			committed = u.events
			return nil
		})
	})
	if err != nil {
		if shared.IsVersionConflict(err) {
			log.Error("ledger unit could not be settled", logger.Err(err))
			return shared.Inconsistent(op, err)
		}
		return err
	}

	l.evictCached(ctx, log, studentID)
	l.publish(log, committed)
	return nil
}

// evictCached outlives a cancelled request: the unit is already committed.
func (l *Ledger) evictCached(ctx context.Context, log *logger.Logger, studentID string) {
	if l.evict == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evictTimeout)
	defer cancel()
	if err := l.evict.Invalidate(ctx, studentID); err != nil {
		log.Warn("cache eviction failed", logger.Err(err))
	}
}

func (l *Ledger) publish(log *logger.Logger, events []shared.Event) {
	if l.publisher == nil {
		return
	}
	for _, e := range events {
		if err := l.publisher.Publish(e); err != nil {
			log.Warn("event publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
		}
	}
}
