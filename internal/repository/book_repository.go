package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
)

const bookColumns = `id, title, author, genre, pages, description, cost, language,
	book_count, availability_status, publication_date, created_at, updated_at`

// deriveAvailability keeps the availability flag consistent with the stock
/// count on every write: zero stock is never AVAILABLE, positive stock lifts a
// NOT_AVAILABLE book back to AVAILABLE without overriding IN_PROGRESS.
func deriveAvailability(book *domain.Book) {
	if book.BookCount <= 0 {
		book.Availability = domain.BookNotAvailable
		return
	}
	if book.Availability == domain.BookNotAvailable || book.Availability == "" {
		book.Availability = domain.BookAvailable
	}
}

func (r *Repository) CreateBook(ctx context.Context, book *domain.Book) error {
	deriveAvailability(book)

	query := `INSERT INTO books (title, author, genre, pages, description, cost, language, book_count, availability_status, publication_date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		book.Title,
		book.Author,
		nullString(book.Genre),
		book.Pages,
		nullString(book.Description),
		book.Cost,
		nullString(book.Language),
		book.BookCount,
		book.Availability,
		book.PublicationDate,
	).Scan(&book.ID, &book.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

func (r *Repository) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, int64, error) {
	var conds []string
	var args []interface{}

	addCond := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Author != "" {
		addCond("author ILIKE '%%' || $%d || '%%'", filter.Author)
	}
	if filter.Genre != "" {
		addCond("genre ILIKE '%%' || $%d || '%%'", filter.Genre)
	}
	if filter.Language != "" {
		addCond("language ILIKE '%%' || $%d || '%%'", filter.Language)
	}
	if filter.Availability != "" {
		addCond("availability_status = $%d", filter.Availability)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM books%s ORDER BY title OFFSET $%d LIMIT $%d`,
		bookColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Skip, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan book row: %w", err)
		}
		books = append(books, *book)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	return books, total, nil
}

func (r *Repository) GetBookDetail(ctx context.Context, id int64) (*domain.BookDetail, error) {
	book, err := r.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.BookDetail{Book: *book}

	var avg sql.NullFloat64
	err = r.db.QueryRowContext(ctx, `SELECT AVG(score) FROM ratings WHERE book_id = $1`, id).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("query average rating: %w", err)
	}
	if avg.Valid {
		detail.AverageRating = &avg.Float64
	}

	detail.Comments, err = r.ListComments(ctx, id, 0, 100)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, score, user_id, book_id, created_at FROM ratings WHERE book_id = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.ID, &rt.Score, &rt.UserID, &rt.BookID, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		detail.Ratings = append(detail.Ratings, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return detail, nil
}

func (r *Repository) UpdateBook(ctx context.Context, book *domain.Book) error {
	deriveAvailability(book)

	query := `UPDATE books
	          SET title = $1, author = $2, genre = $3, pages = $4, description = $5,
	              cost = $6, language = $7, book_count = $8, availability_status = $9,
	              publication_date = $10, updated_at = NOW()
	          WHERE id = $11`

	res, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Author,
		nullString(book.Genre),
		book.Pages,
		nullString(book.Description),
		book.Cost,
		nullString(book.Language),
		book.BookCount,
		book.Availability,
		book.PublicationDate,
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book rows affected: %w", err)
	}
	if n == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (r *Repository) DeleteBook(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book rows affected: %w", err)
	}
	if n == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (r *Repository) AddComment(ctx context.Context, comment *domain.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (text, user_id, book_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
		comment.Text, comment.UserID, comment.BookID,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *Repository) ListComments(ctx context.Context, bookID int64, skip, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.text, c.user_id, c.book_id, u.username, c.created_at
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.book_id = $1
		 ORDER BY c.created_at DESC
		 OFFSET $2 LIMIT $3`,
		bookID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.Text, &c.UserID, &c.BookID, &c.Username, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return comments, nil
}

// UpsertRating keeps the one-rating-per-user-per-book constraint by replacing
// the score on conflict.
func (r *Repository) UpsertRating(ctx context.Context, rating *domain.Rating) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO ratings (score, user_id, book_id) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, book_id) DO UPDATE SET score = EXCLUDED.score
		 RETURNING id, created_at`,
		rating.Score, rating.UserID, rating.BookID,
	).Scan(&rating.ID, &rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (r *Repository) AddFavorite(ctx context.Context, userID, bookID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_favorite_books (user_id, book_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, bookID)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (r *Repository) RemoveFavorite(ctx context.Context, userID, bookID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_favorite_books WHERE user_id = $1 AND book_id = $2`,
		userID, bookID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

func (r *Repository) ListFavorites(ctx context.Context, userID int64) ([]domain.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+prefixedBookColumns("b")+`
		 FROM books b JOIN user_favorite_books f ON f.book_id = b.id
		 WHERE f.user_id = $1
		 ORDER BY b.title`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite row: %w", err)
		}
		books = append(books, *book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return books, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row rowScanner) (*domain.Book, error) {
	var book domain.Book
	var genre, description, language sql.NullString
	var pubDate, updatedAt sql.NullTime

	err := row.Scan(
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
	return &book, nil
}

func prefixedBookColumns(alias string) string {
	cols := strings.Split(bookColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
