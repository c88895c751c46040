package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mbellec/diocese-newsletter/internal/subscriber"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// SubscriberStore implements subscriber.Store on PostgreSQL.
type SubscriberStore struct {
	db *DB
}

// NewSubscriberStore creates a SubscriberStore backed by the given pool.
func NewSubscriberStore(db *DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

const subscriberColumns = `id, email, first_name, language, state,
	confirmation_token, token_expires_at, created_at, confirmed_at, unsubscribed_at`

// Insert stores a new subscriber. The email must already be normalized.
// Returns subscriber.ErrDuplicateEmail if the address exists.
func (s *SubscriberStore) Insert(ctx context.Context, sub *subscriber.Subscriber) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO subscribers
			(id, email, first_name, language, state, confirmation_token,
			 token_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.Email, sub.FirstName, sub.Language, string(sub.State),
		sub.ConfirmationToken, nullableTime(sub.TokenExpiresAt), sub.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return subscriber.ErrDuplicateEmail
		}
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// FindByEmail looks up a subscriber by normalized email.
func (s *SubscriberStore) FindByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email)
	return scanSubscriber(row)
}

// FindByID looks up a subscriber by ID.
func (s *SubscriberStore) FindByID(ctx context.Context, id uuid.UUID) (*subscriber.Subscriber, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	return scanSubscriber(row)
}

// FindByToken resolves the subscriber holding an outstanding confirmation
// token. Cleared (empty) tokens never match.
func (s *SubscriberStore) FindByToken(ctx context.Context, tok string) (*subscriber.Subscriber, error) {
	if tok == "" {
		return nil, subscriber.ErrNotFound
	}
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE confirmation_token = $1`, tok)
	return scanSubscriber(row)
}

// CompareAndSwapState atomically applies upd to the record iff its current
// state equals expected. A single UPDATE carries the state predicate, so two
// racing transitions cannot both win; the loser gets ErrStateConflict.
func (s *SubscriberStore) CompareAndSwapState(
	ctx context.Context,
	id uuid.UUID,
	expected subscriber.State,
	upd subscriber.Update,
) (*subscriber.Subscriber, error) {
	row := s.db.Pool.QueryRow(ctx, `
		UPDATE subscribers SET
			state              = $3,
			confirmation_token = COALESCE($4, confirmation_token),
			token_expires_at   = COALESCE($5, token_expires_at),
			confirmed_at       = COALESCE($6, confirmed_at),
			unsubscribed_at    = COALESCE($7, unsubscribed_at)
		WHERE id = $1 AND state = $2
		RETURNING `+subscriberColumns,
		id, string(expected), string(upd.State),
		upd.ConfirmationToken, upd.TokenExpiresAt,
		upd.ConfirmedAt, upd.UnsubscribedAt,
	)

	sub, err := scanSubscriber(row)
	if errors.Is(err, subscriber.ErrNotFound) {
		// Distinguish a missing record from a lost CAS race.
		if _, findErr := s.FindByID(ctx, id); findErr == nil {
			return nil, subscriber.ErrStateConflict
		}
		return nil, subscriber.ErrNotFound
	}
	return sub, err
}

// ListActiveByLanguages snapshots all active subscribers for the given
// languages. An empty languages slice matches all languages.
func (s *SubscriberStore) ListActiveByLanguages(ctx context.Context, languages []string) ([]subscriber.Subscriber, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(languages) == 0 {
		rows, err = s.db.Pool.Query(ctx,
			`SELECT `+subscriberColumns+` FROM subscribers
			 WHERE state = $1 ORDER BY created_at`,
			string(subscriber.StateActive))
	} else {
		rows, err = s.db.Pool.Query(ctx,
			`SELECT `+subscriberColumns+` FROM subscribers
			 WHERE state = $1 AND language = ANY($2) ORDER BY created_at`,
			string(subscriber.StateActive), languages)
	}
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []subscriber.Subscriber
	for rows.Next() {
		sub, err := scanSubscriberRow(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row pgx.Row) (*subscriber.Subscriber, error) {
	sub, err := scanSubscriberRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subscriber.ErrNotFound
	}
	return sub, err
}

func scanSubscriberRow(row rowScanner) (*subscriber.Subscriber, error) {
	var (
		sub            subscriber.Subscriber
		state          string
		tokenExpiresAt *time.Time
	)
	err := row.Scan(
		&sub.ID, &sub.Email, &sub.FirstName, &sub.Language, &state,
		&sub.ConfirmationToken, &tokenExpiresAt, &sub.CreatedAt,
		&sub.ConfirmedAt, &sub.UnsubscribedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	sub.State = subscriber.State(state)
	if !sub.State.Valid() {
		return nil, fmt.Errorf("subscriber %s has unknown state %q", sub.ID, state)
	}
	if tokenExpiresAt != nil {
		sub.TokenExpiresAt = *tokenExpiresAt
	}
	return &sub, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
