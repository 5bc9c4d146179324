package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
)

// AddCartLine creates the IN_CART purchase record, snapshotting the book's
// current cost. The partial unique index on (user_id, book_id) for IN_CART
// rows rejects a duplicate cart line for the same book.
func (r *Repository) AddCartLine(ctx context.Context, userID int64, book *domain.Book) (*domain.Purchase, error) {
	line := &domain.Purchase{
		UserID:         userID,
		BookID:         book.ID,
		CostAtPurchase: book.Cost,
		Status:         domain.PurchaseStatusInCart,
		Book:           book,
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO purchases (user_id, book_id, status, cost_at_purchase)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, purchase_date`,
		userID, book.ID, line.Status, line.CostAtPurchase,
	).Scan(&line.ID, &line.PurchaseDate)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyInCart
		}
		return nil, fmt.Errorf("insert cart line: %w", err)
	}
	return line, nil
}

// ListCartLines returns the user's IN_CART lines with book detail joined,
// oldest add first.
func (r *Repository) ListCartLines(ctx context.Context, userID int64) ([]domain.Purchase, error) {
	return r.listPurchases(ctx,
		`WHERE p.user_id = $1 AND p.status = $2 ORDER BY p.purchase_date ASC`,
		userID, domain.PurchaseStatusInCart)
}

func (r *Repository) GetCartLine(ctx context.Context, userID, lineID int64) (*domain.Purchase, error) {
	lines, err := r.listPurchases(ctx,
		`WHERE p.user_id = $1 AND p.id = $2 AND p.status = $3`,
		userID, lineID, domain.PurchaseStatusInCart)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrCartLineNotFound
	}
	return &lines[0], nil
}

// DeleteCartLine removes a line that is still IN_CART and owned by the user.
// Completed purchases are history and can never be deleted through here.
func (r *Repository) DeleteCartLine(ctx context.Context, userID, lineID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM purchases WHERE id = $1 AND user_id = $2 AND status = $3`,
		lineID, userID, domain.PurchaseStatusInCart)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart line rows affected: %w", err)
	}
	if n == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (r *Repository) ClearCart(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM purchases WHERE user_id = $1 AND status = $2`,
		userID, domain.PurchaseStatusInCart)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cart rows affected: %w", err)
	}
	return n, nil
}

// CompleteCheckout is the checkout unit of work. In one transaction it
// transitions the given lines IN_CART -> COMPLETED, debits the balance with
// the conditional write, and records the outbox event. Both updates verify
// their affected-row counts; a shortfall means a concurrent checkout,
// removal or debit raced this one, and the whole transaction rolls back
// with ErrConcurrentModification. Nothing partial is ever observable.
func (r *Repository) CompleteCheckout(ctx context.Context, userID int64, lineIDs []int64, total decimal.Decimal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = $1, purchase_date = NOW()
		 WHERE id = ANY($2) AND user_id = $3 AND status = $4`,
		domain.PurchaseStatusCompleted, pq.Array(lineIDs), userID, domain.PurchaseStatusInCart)
	if err != nil {
		return fmt.Errorf("complete cart lines: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete cart lines rows affected: %w", err)
	}
	if n != int64(len(lineIDs)) {
		// Some line was removed or already checked out concurrently.
		return ErrConcurrentModification
	}

	if err := r.debitBalance(ctx, tx, userID, total); err != nil {
		return err
	}

	if err := insertOutboxEvent(ctx, tx, userID, lineIDs, total); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}
	return nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, userID int64, lineIDs []int64, total decimal.Decimal) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id":      userID,
		"purchase_ids": lineIDs,
		"total_cost":   total,
		"completed_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO purchase_outbox (id, aggregate_id, event_type, payload)
		 VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), fmt.Sprint(userID), "purchase.completed", payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ListPurchasesByIDs reloads the given lines with book detail, regardless of
// status. Used to return the now-COMPLETED lines after a checkout commit.
func (r *Repository) ListPurchasesByIDs(ctx context.Context, ids []int64) ([]domain.Purchase, error) {
	return r.listPurchases(ctx, `WHERE p.id = ANY($1) ORDER BY p.id`, pq.Array(ids))
}

func (r *Repository) ListCompletedPurchases(ctx context.Context, userID int64, skip, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.listPurchases(ctx,
		`WHERE p.user_id = $1 AND p.status = $2 ORDER BY p.purchase_date DESC OFFSET $3 LIMIT $4`,
		userID, domain.PurchaseStatusCompleted, skip, limit)
}

func (r *Repository) GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	stats := &domain.UserStats{
		TotalSpent:       decimal.Zero,
		GenresPreference: map[string]int64{},
	}

	var spent decimal.NullDecimal
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(cost_at_purchase), COUNT(*) FROM purchases WHERE user_id = $1 AND status = $2`,
		userID, domain.PurchaseStatusCompleted,
	).Scan(&spent, &stats.BooksBoughtCount)
	if err != nil {
		return nil, fmt.Errorf("query user stats: %w", err)
	}
	if spent.Valid {
		stats.TotalSpent = spent.Decimal
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT b.genre, COUNT(p.id)
		 FROM purchases p JOIN books b ON b.id = p.book_id
		 WHERE p.user_id = $1 AND p.status = $2 AND b.genre IS NOT NULL
		 GROUP BY b.genre
		 ORDER BY COUNT(p.id) DESC`,
		userID, domain.PurchaseStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("query genre preference: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var genre string
		var count int64
		if err := rows.Scan(&genre, &count); err != nil {
			return nil, fmt.Errorf("scan genre row: %w", err)
		}
		stats.GenresPreference[genre] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stats, nil
}

func (r *Repository) listPurchases(ctx context.Context, tail string, args ...interface{}) ([]domain.Purchase, error) {
	query := `SELECT p.id, p.user_id, p.book_id, p.cost_at_purchase, p.status, p.purchase_date, ` +
		prefixedBookColumns("b") +
		` FROM purchases p JOIN books b ON b.id = p.book_id ` + tail

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return purchases, nil
}

func scanPurchase(rows *sql.Rows) (*domain.Purchase, error) {
	var p domain.Purchase
	var book domain.Book
	var genre, description, language sql.NullString
	var pubDate, updatedAt sql.NullTime

	err := rows.Scan(
		&p.ID,
		&p.UserID,
		&p.BookID,
		&p.CostAtPurchase,
		&p.Status,
		&p.PurchaseDate,
		&book.ID,
		&book.Title,
		&book.Author,
		&genre,
		&book.Pages,
		&description,
		&book.Cost,
		&language,
		&book.BookCount,
		&book.Availability,
		&pubDate,
		&book.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	book.Genre = genre.String
	book.Description = description.String
	book.Language = language.String
	if pubDate.Valid {
		book.PublicationDate = &pubDate.Time
	}
	if updatedAt.Valid {
		book.UpdatedAt = &updatedAt.Time
	}
	p.Book = &book
	return &p, nil
}
