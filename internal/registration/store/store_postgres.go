package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campushub/internal/domain"
	"campushub/pkg/platform/sentinel"
)

// Schema creates the tables this package reads and writes. The integration
// test harness applies it to a fresh database.
//
//go:embed schema.sql
var Schema string

const eventColumns = `id, title, category_id, organizer_id, venue, start_time, end_time,
	capacity, registered_count, price, status`

const registrationColumns = `id, user_id, event_id, status, notes, final_price,
	checkin_token, registered_at, check_in_time`

// PostgresEventStore persists events with pgx.
type PostgresEventStore struct {
	db *pgxpool.Pool
}

func NewPostgresEventStore(db *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) Create(ctx context.Context, event domain.Event) error {
	var endTime *time.Time
	if !event.EndTime.IsZero() {
		endTime = &event.EndTime
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.Title, event.CategoryID, event.OrganizerID, event.Venue,
		event.StartTime, endTime, event.Capacity, event.RegisteredCount,
		event.Price, event.Status,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	row := s.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, sentinel.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *PostgresEventStore) SetRegisteredCount(ctx context.Context, id uuid.UUID, count int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events SET registered_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("set registered_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresEventStore) ListAlternatives(ctx context.Context, categoryID uuid.UUID, exclude []uuid.UUID, after time.Time, limit int) ([]domain.Event, error) {
	if exclude == nil {
		// A nil slice would encode as SQL NULL and `!= ALL(NULL)` filters
		// every row; send an empty array instead.
		exclude = []uuid.UUID{}
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE category_id = $1
		   AND id != ALL($2)
		   AND status = $3
		   AND start_time > $4
		   AND registered_count < capacity
		 ORDER BY start_time
		 LIMIT $5`,
		categoryID, exclude, domain.EventPublished, after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list alternatives: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *PostgresEventStore) ListStartingBetween(ctx context.Context, from, to time.Time) ([]domain.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = $1 AND start_time >= $2 AND start_time < $3
		 ORDER BY start_time`,
		domain.EventPublished, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list events starting between: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// PostgresRegistrationStore persists registrations with pgx.
type PostgresRegistrationStore struct {
	db *pgxpool.Pool
}

func NewPostgresRegistrationStore(db *pgxpool.Pool) *PostgresRegistrationStore {
	return &PostgresRegistrationStore{db: db}
}

func (s *PostgresRegistrationStore) Create(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO registrations (id, user_id, event_id, status, notes, final_price, checkin_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING registered_at`,
		reg.ID, reg.UserID, reg.EventID, reg.Status, reg.Notes, reg.FinalPrice, reg.CheckInToken,
	)
	if err := row.Scan(&reg.RegisteredAt); err != nil {
		return domain.Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Registration{}, sentinel.ErrNotFound
		}
		return domain.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) Update(ctx context.Context, reg domain.Registration) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE registrations
		 SET status = $2, notes = $3, final_price = $4, checkin_token = $5, check_in_time = $6
		 WHERE id = $1`,
		reg.ID, reg.Status, reg.Notes, reg.FinalPrice, reg.CheckInToken, reg.CheckInTime,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRegistrationStore) FindActiveByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (domain.Registration, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE user_id = $1 AND event_id = $2 AND status IN ($3, $4)`,
		userID, eventID, domain.StatusRegistered, domain.StatusWaitlisted,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Registration{}, sentinel.ErrNotFound
		}
		return domain.Registration{}, fmt.Errorf("find active registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) ListActiveOverlapping(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]RegistrationWithEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+prefixed("r", registrationColumns)+`, `+prefixed("e", eventColumns)+`
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.user_id = $1
		   AND r.status = $2
		   AND e.start_time < $4
		   AND COALESCE(e.end_time, e.start_time + make_interval(mins => $5)) > $3
		 ORDER BY e.start_time`,
		userID, domain.StatusRegistered, from, to,
		int(domain.DefaultEventDuration.Minutes()),
	)
	if err != nil {
		return nil, fmt.Errorf("list overlapping registrations: %w", err)
	}
	defer rows.Close()
	return collectJoined(rows)
}

func (s *PostgresRegistrationStore) NextWaitlisted(ctx context.Context, eventID uuid.UUID) (domain.Registration, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status = $2
		 ORDER BY registered_at, seq
		 LIMIT 1`,
		eventID, domain.StatusWaitlisted,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Registration{}, sentinel.ErrNotFound
		}
		return domain.Registration{}, fmt.Errorf("next waitlisted: %w", err)
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) CountWaitlisted(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`,
		eventID, domain.StatusWaitlisted,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count waitlisted: %w", err)
	}
	return count, nil
}

func (s *PostgresRegistrationStore) WaitlistPosition(ctx context.Context, id uuid.UUID) (int, error) {
	var status domain.RegistrationStatus
	var position int
	err := s.db.QueryRow(ctx,
		`SELECT r.status,
		        (SELECT COUNT(*) FROM registrations w
		         WHERE w.event_id = r.event_id
		           AND w.status = $2
		           AND (w.registered_at, w.seq) <= (r.registered_at, r.seq))
		 FROM registrations r
		 WHERE r.id = $1`,
		id, domain.StatusWaitlisted,
	).Scan(&status, &position)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("waitlist position: %w", err)
	}
	if status != domain.StatusWaitlisted {
		return 0, sentinel.ErrInvalidState
	}
	return position, nil
}

func (s *PostgresRegistrationStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]RegistrationWithEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+prefixed("r", registrationColumns)+`, `+prefixed("e", eventColumns)+`
		 FROM registrations r
		 JOIN events e ON e.id = r.event_id
		 WHERE r.user_id = $1
		 ORDER BY r.registered_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by user: %w", err)
	}
	defer rows.Close()
	return collectJoined(rows)
}

func (s *PostgresRegistrationStore) ListByEventAndStatus(ctx context.Context, eventID uuid.UUID, status domain.RegistrationStatus) ([]domain.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status = $2
		 ORDER BY registered_at, seq`,
		eventID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by event: %w", err)
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (s *PostgresRegistrationStore) MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE registrations
		 SET status = $2, check_in_time = $3
		 WHERE id = $1 AND status = $4 AND check_in_time IS NULL`,
		id, domain.StatusAttended, at, domain.StatusRegistered,
	)
	if err != nil {
		return fmt.Errorf("mark attended: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing matched: distinguish missing rows from wrong-state ones.
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("mark attended lookup: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

// PostgresPromoStore redeems promo codes with an atomic conditional update.
type PostgresPromoStore struct {
	db *pgxpool.Pool
}

func NewPostgresPromoStore(db *pgxpool.Pool) *PostgresPromoStore {
	return &PostgresPromoStore{db: db}
}

func (s *PostgresPromoStore) Create(ctx context.Context, promo domain.PromoCode) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO promo_codes (code, discount_type, discount_value, max_uses, current_uses, valid_from, valid_until, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		promo.Code, promo.DiscountType, promo.DiscountValue, promo.MaxUses,
		promo.CurrentUses, promo.ValidFrom, promo.ValidUntil, promo.Active,
	)
	if err != nil {
		return fmt.Errorf("insert promo code: %w", err)
	}
	return nil
}

func (s *PostgresPromoStore) Redeem(ctx context.Context, code string, at time.Time) (domain.PromoCode, error) {
	// The conditional update is the atomic check-and-increment; the follow-up
	// read only classifies a miss for the caller's log line.
	row := s.db.QueryRow(ctx,
		`UPDATE promo_codes
		 SET current_uses = current_uses + 1
		 WHERE code = $1
		   AND active
		   AND valid_from <= $2 AND valid_until >= $2
		   AND (max_uses = 0 OR current_uses < max_uses)
		 RETURNING code, discount_type, discount_value, max_uses, current_uses, valid_from, valid_until, active`,
		code, at,
	)
	var promo domain.PromoCode
	err := row.Scan(&promo.Code, &promo.DiscountType, &promo.DiscountValue,
		&promo.MaxUses, &promo.CurrentUses, &promo.ValidFrom, &promo.ValidUntil, &promo.Active)
	if err == nil {
		return promo, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.PromoCode{}, fmt.Errorf("redeem promo code: %w", err)
	}

	var active bool
	var validFrom, validUntil time.Time
	err = s.db.QueryRow(ctx,
		`SELECT active, valid_from, valid_until FROM promo_codes WHERE code = $1`, code,
	).Scan(&active, &validFrom, &validUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PromoCode{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.PromoCode{}, fmt.Errorf("classify promo miss: %w", err)
	}
	if !active || at.Before(validFrom) || at.After(validUntil) {
		return domain.PromoCode{}, sentinel.ErrExpired
	}
	return domain.PromoCode{}, sentinel.ErrAlreadyUsed
}

func (s *PostgresPromoStore) Release(ctx context.Context, code string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE promo_codes
		 SET current_uses = current_uses - 1
		 WHERE code = $1 AND current_uses > 0`,
		code,
	)
	if err != nil {
		return fmt.Errorf("release promo code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// scan helpers shared with the ledger package, which reads the same rows
// inside its transactions.

func scanEvent(row pgx.Row) (domain.Event, error) {
	var event domain.Event
	var endTime *time.Time
	err := row.Scan(&event.ID, &event.Title, &event.CategoryID, &event.OrganizerID,
		&event.Venue, &event.StartTime, &endTime, &event.Capacity,
		&event.RegisteredCount, &event.Price, &event.Status)
	if err != nil {
		return domain.Event{}, err
	}
	if endTime != nil {
		event.EndTime = *endTime
	}
	return event, nil
}

func scanRegistration(row pgx.Row) (domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.Notes,
		&reg.FinalPrice, &reg.CheckInToken, &reg.RegisteredAt, &reg.CheckInTime)
	if err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// ScanRegistrationRow exposes registration scanning for the ledger package.
func ScanRegistrationRow(row pgx.Row) (domain.Registration, error) {
	return scanRegistration(row)
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var out []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func collectJoined(rows pgx.Rows) ([]RegistrationWithEvent, error) {
	var out []RegistrationWithEvent
	for rows.Next() {
		var reg domain.Registration
		var event domain.Event
		var endTime *time.Time
		err := rows.Scan(
			&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.Notes,
			&reg.FinalPrice, &reg.CheckInToken, &reg.RegisteredAt, &reg.CheckInTime,
			&event.ID, &event.Title, &event.CategoryID, &event.OrganizerID,
			&event.Venue, &event.StartTime, &endTime, &event.Capacity,
			&event.RegisteredCount, &event.Price, &event.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan joined row: %w", err)
		}
		if endTime != nil {
			event.EndTime = *endTime
		}
		out = append(out, RegistrationWithEvent{Registration: reg, Event: event})
	}
	return out, rows.Err()
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := ""
	for i, col := range splitColumns(columns) {
		if i > 0 {
			parts += ", "
		}
		parts += alias + "." + col
	}
	return parts
}

func splitColumns(columns string) []string {
	var out []string
	field := ""
	for _, r := range columns {
		switch r {
		case ',':
			out = append(out, field)
			field = ""
		case ' ', '\n', '\t':
		default:
			field += string(r)
		}
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}
