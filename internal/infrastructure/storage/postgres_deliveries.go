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

// PostgresDeliveries persists delivery records. Tracking mutations are single
// UPDATE statements, so concurrent hits on one newsletter id never lose
// increments.
type PostgresDeliveries struct {
	db *sql.DB
}

var _ ports.DeliveryStore = (*PostgresDeliveries)(nil)

// NewPostgresDeliveries wires a sql.DB implementation.
func NewPostgresDeliveries(db *sql.DB) *PostgresDeliveries {
	return &PostgresDeliveries{db: db}
}

// Create inserts one delivery record for a send attempt.
func (r *PostgresDeliveries) Create(ctx context.Context, d domain.Delivery) error {
	query, args, err := psql.Insert("deliveries").
		Columns("newsletter_id", "email", "sent_at").
		Values(d.NewsletterID, d.Email, d.SentAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	return nil
}

// Get fetches one delivery record by newsletter id.
func (r *PostgresDeliveries) Get(ctx context.Context, newsletterID string) (domain.Delivery, error) {
	query, args, err := deliverySelect().
		Where(sq.Eq{"newsletter_id": newsletterID}).
		ToSql()
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("build select: %w", err)
	}

	return scanDelivery(r.db.QueryRowContext(ctx, query, args...))
}

// List returns all delivery records in send order.
func (r *PostgresDeliveries) List(ctx context.Context) ([]domain.Delivery, error) {
	query, args, err := deliverySelect().OrderBy("sent_at").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return deliveries, nil
}

// RecordOpen applies one open event. The first hit sets the first-opened
// timestamp, every hit increments the counter. Unknown ids update zero rows
// and return nil.
func (r *PostgresDeliveries) RecordOpen(ctx context.Context, newsletterID string) error {
	query, args, err := psql.Update("deliveries").
		Set("opened", true).
		Set("open_count", sq.Expr("open_count + 1")).
		Set("first_opened_at", sq.Expr("COALESCE(first_opened_at, NOW())")).
		Where(sq.Eq{"newsletter_id": newsletterID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record open: %w", err)
	}

	return nil
}

// RecordClick applies one click event for an article position. The clicked
// set gains the position at most once; the counter always increments.
func (r *PostgresDeliveries) RecordClick(ctx context.Context, newsletterID string, position int) error {
	query, args, err := psql.Update("deliveries").
		Set("clicked", true).
		Set("click_count", sq.Expr("click_count + 1")).
		Set("last_clicked_at", sq.Expr("NOW()")).
		Set("clicked_articles", sq.Expr(
			"CASE WHEN ? = ANY(clicked_articles) THEN clicked_articles ELSE array_append(clicked_articles, ?) END",
			position, position)).
		Where(sq.Eq{"newsletter_id": newsletterID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record click: %w", err)
	}

	return nil
}

func deliverySelect() sq.SelectBuilder {
	return psql.Select(
		"newsletter_id", "email", "sent_at",
		"opened", "open_count", "first_opened_at",
		"clicked", "click_count", "last_clicked_at",
		"clicked_articles",
	).From("deliveries")
}

func scanDelivery(row rowScanner) (domain.Delivery, error) {
	var (
		d           domain.Delivery
		firstOpened sql.NullTime
		lastClicked sql.NullTime
		clicked     pq.Int64Array
	)

	err := row.Scan(
		&d.NewsletterID, &d.Email, &d.SentAt,
		&d.Opened, &d.OpenCount, &firstOpened,
		&d.Clicked, &d.ClickCount, &lastClicked,
		&clicked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Delivery{}, ErrNotFound
		}
		return domain.Delivery{}, fmt.Errorf("scan delivery: %w", err)
	}

	if firstOpened.Valid {
		t := firstOpened.Time
		d.FirstOpenedAt = &t
	}
	if lastClicked.Valid {
		t := lastClicked.Time
		d.LastClickedAt = &t
	}

	d.ClickedArticles = make([]int, 0, len(clicked))
	for _, pos := range clicked {
		d.ClickedArticles = append(d.ClickedArticles, int(pos))
	}

	return d, nil
}
