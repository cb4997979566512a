package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campushub/internal/domain"
	"campushub/internal/registration/store"
	"campushub/pkg/platform/sentinel"
)

// Postgres error codes observed by the ledger.
const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// PostgresLedger serializes seat accounting with row-level locks: every
// mutation starts by locking the event's counter row FOR UPDATE, so two
// admits racing for the last seat resolve to exactly one REGISTERED.
//
// Lock order is events (sorted by id) before registrations, everywhere, so
// overlapping releases and transfers cannot deadlock.
type PostgresLedger struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgres builds a ledger over the shared pool. lockTimeout becomes the
// transaction-local lock_timeout, turning a wedged lock wait into a
// retryable error instead of a hung request.
func NewPostgres(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresLedger {
	return &PostgresLedger{db: db, lockTimeout: lockTimeout}
}

func (l *PostgresLedger) Admit(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	var created domain.Registration
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		capacity, registered, err := l.lockEvent(ctx, tx, reg.EventID)
		if err != nil {
			return err
		}

		var dup bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM registrations
			   WHERE user_id = $1 AND event_id = $2 AND status IN ($3, $4))`,
			reg.UserID, reg.EventID, domain.StatusRegistered, domain.StatusWaitlisted,
		).Scan(&dup)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if dup {
			return fmt.Errorf("user already registered: %w", sentinel.ErrConflict)
		}

		if registered < capacity {
			reg.Status = domain.StatusRegistered
			if _, err := tx.Exec(ctx,
				`UPDATE events SET registered_count = registered_count + 1 WHERE id = $1`,
				reg.EventID,
			); err != nil {
				return fmt.Errorf("increment registered_count: %w", err)
			}
		} else {
			reg.Status = domain.StatusWaitlisted
		}

		created, err = insertRegistration(ctx, tx, reg)
		return err
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return created, nil
}

func (l *PostgresLedger) Release(ctx context.Context, regID uuid.UUID) (domain.Registration, *Promotion, error) {
	var cancelled domain.Registration
	var promotion *Promotion
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		// Learn the event id first; locks are taken event-first.
		var eventID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT event_id FROM registrations WHERE id = $1`, regID,
		).Scan(&eventID)
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load registration event: %w", err)
		}
		if _, _, err := l.lockEvent(ctx, tx, eventID); err != nil {
			return err
		}

		reg, err := store.ScanRegistrationRow(tx.QueryRow(ctx,
			`SELECT id, user_id, event_id, status, notes, final_price,
			        checkin_token, registered_at, check_in_time
			 FROM registrations WHERE id = $1 FOR UPDATE`, regID))
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock registration: %w", err)
		}
		if !reg.Active() {
			return sentinel.ErrInvalidState
		}

		wasRegistered := reg.Status == domain.StatusRegistered
		reg.Status = domain.StatusCancelled
		if _, err := tx.Exec(ctx,
			`UPDATE registrations SET status = $2 WHERE id = $1`,
			reg.ID, domain.StatusCancelled,
		); err != nil {
			return fmt.Errorf("cancel registration: %w", err)
		}
		cancelled = reg
		if !wasRegistered {
			return nil
		}

		promotion, err = promoteOrDecrement(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return domain.Registration{}, nil, err
	}
	return cancelled, promotion, nil
}

func (l *PostgresLedger) Transfer(ctx context.Context, target domain.Registration, cancelEventIDs []uuid.UUID) (domain.Registration, []Promotion, error) {
	var created domain.Registration
	var promotions []Promotion
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		var capacity, registered int
		for _, eventID := range dedupeSorted(append([]uuid.UUID{target.EventID}, cancelEventIDs...)) {
			c, r, err := l.lockEvent(ctx, tx, eventID)
			if err != nil {
				return err
			}
			if eventID == target.EventID {
				capacity, registered = c, r
			}
		}

		// Capacity can change between conflict detection and this override;
		// abort before any cancellation commits.
		if registered >= capacity {
			return ErrSoldOut
		}

		var dup bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM registrations
			   WHERE user_id = $1 AND event_id = $2 AND status IN ($3, $4))`,
			target.UserID, target.EventID, domain.StatusRegistered, domain.StatusWaitlisted,
		).Scan(&dup)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if dup {
			return fmt.Errorf("user already registered: %w", sentinel.ErrConflict)
		}

		for _, eventID := range cancelEventIDs {
			if eventID == target.EventID {
				continue
			}
			tag, err := tx.Exec(ctx,
				`UPDATE registrations SET status = $3
				 WHERE user_id = $1 AND event_id = $2 AND status = $4`,
				target.UserID, eventID, domain.StatusCancelled, domain.StatusRegistered,
			)
			if err != nil {
				return fmt.Errorf("cancel conflicting registration: %w", err)
			}
			if tag.RowsAffected() == 0 {
				// Stale conflict list; nothing held there.
				continue
			}
			promotion, err := promoteOrDecrement(ctx, tx, eventID)
			if err != nil {
				return err
			}
			if promotion != nil {
				promotions = append(promotions, *promotion)
			}
		}

		target.Status = domain.StatusRegistered
		if _, err := tx.Exec(ctx,
			`UPDATE events SET registered_count = registered_count + 1 WHERE id = $1`,
			target.EventID,
		); err != nil {
			return fmt.Errorf("increment registered_count: %w", err)
		}
		created, err = insertRegistration(ctx, tx, target)
		return err
	})
	if err != nil {
		return domain.Registration{}, nil, err
	}
	return created, promotions, nil
}

// inTx runs fn inside a transaction with the ledger's lock_timeout applied,
// translating Postgres lock and uniqueness failures into sentinel errors.
func (l *PostgresLedger) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`SELECT set_config('lock_timeout', $1, true)`,
		strconv.FormatInt(l.lockTimeout.Milliseconds(), 10)+"ms",
	); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	if err := fn(tx); err != nil {
		return translatePgErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translatePgErr(fmt.Errorf("commit ledger tx: %w", err))
	}
	return nil
}

// lockEvent acquires the row-level lock that serializes all seat accounting
// for one event, returning its counters.
func (l *PostgresLedger) lockEvent(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (capacity, registered int, err error) {
	err = tx.QueryRow(ctx,
		`SELECT capacity, registered_count FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&capacity, &registered)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock event row: %w", err)
	}
	return capacity, registered, nil
}

// promoteOrDecrement settles the books after a REGISTERED entry left the
// event. Caller must hold the event row lock.
func promoteOrDecrement(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (*Promotion, error) {
	head, err := store.ScanRegistrationRow(tx.QueryRow(ctx,
		`SELECT id, user_id, event_id, status, notes, final_price,
		        checkin_token, registered_at, check_in_time
		 FROM registrations
		 WHERE event_id = $1 AND status = $2
		 ORDER BY registered_at, seq
		 LIMIT 1
		 FOR UPDATE`,
		eventID, domain.StatusWaitlisted))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx,
			`UPDATE events
			 SET registered_count = GREATEST(registered_count - 1, 0)
			 WHERE id = $1`,
			eventID,
		); err != nil {
			return nil, fmt.Errorf("decrement registered_count: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop waitlist head: %w", err)
	}

	head.Status = domain.StatusRegistered
	if _, err := tx.Exec(ctx,
		`UPDATE registrations SET status = $2 WHERE id = $1`,
		head.ID, domain.StatusRegistered,
	); err != nil {
		return nil, fmt.Errorf("promote waitlist head: %w", err)
	}
	return &Promotion{Registration: head}, nil
}

func insertRegistration(ctx context.Context, tx pgx.Tx, reg domain.Registration) (domain.Registration, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO registrations (id, user_id, event_id, status, notes, final_price, checkin_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING registered_at`,
		reg.ID, reg.UserID, reg.EventID, reg.Status, reg.Notes, reg.FinalPrice, reg.CheckInToken,
	).Scan(&reg.RegisteredAt)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func translatePgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return fmt.Errorf("event lock timeout: %w", sentinel.ErrUnavailable)
		case pgUniqueViolation:
			return fmt.Errorf("duplicate registration: %w", sentinel.ErrConflict)
		}
	}
	return err
}
