package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/ports"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresSubscribers persists subscribers in Postgres. Rows are only ever
// soft-deactivated.
type PostgresSubscribers struct {
	db *sql.DB
}

var _ ports.SubscriberStore = (*PostgresSubscribers)(nil)

// NewPostgresSubscribers wires a sql.DB implementation.
func NewPostgresSubscribers(db *sql.DB) *PostgresSubscribers {
	return &PostgresSubscribers{db: db}
}

// Create inserts a new active subscriber. A duplicate email, active or not,
// is rejected with ErrDuplicateEmail.
func (r *PostgresSubscribers) Create(ctx context.Context, email string, interests []string) (domain.Subscriber, error) {
	query, args, err := psql.Insert("subscribers").
		Columns("email", "interests", "active").
		Values(email, joinInterests(interests), true).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("build insert: %w", err)
	}

	sub := domain.Subscriber{Email: email, Interests: splitInterests(joinInterests(interests)), Active: true}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.Subscriber{}, ErrDuplicateEmail
		}
		return domain.Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}

	return sub, nil
}

// GetByEmail fetches one subscriber regardless of active flag.
func (r *PostgresSubscribers) GetByEmail(ctx context.Context, email string) (domain.Subscriber, error) {
	query, args, err := psql.Select("id", "email", "interests", "active", "created_at").
		From("subscribers").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("build select: %w", err)
	}

	return scanSubscriberRow(r.db.QueryRowContext(ctx, query, args...))
}

// ListActive returns every subscriber with the active flag set, in insertion
// order.
func (r *PostgresSubscribers) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	query, args, err := psql.Select("id", "email", "interests", "active", "created_at").
		From("subscribers").
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		subscriber, err := scanSubscriberRow(rows)
		if err != nil {
			return nil, err
		}
		subscribers = append(subscribers, subscriber)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return subscribers, nil
}

// Deactivate flips the active flag off. Unknown email yields ErrNotFound;
// repeating the call on an inactive subscriber still succeeds.
func (r *PostgresSubscribers) Deactivate(ctx context.Context, email string) error {
	query, args, err := psql.Update("subscribers").
		Set("active", false).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriberRow(row rowScanner) (domain.Subscriber, error) {
	var (
		sub          domain.Subscriber
		rawInterests string
	)
	if err := row.Scan(&sub.ID, &sub.Email, &rawInterests, &sub.Active, &sub.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subscriber{}, ErrNotFound
		}
		return domain.Subscriber{}, fmt.Errorf("scan subscriber: %w", err)
	}
	sub.Interests = splitInterests(rawInterests)
	return sub, nil
}
