package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookAvailability string

const (
	BookAvailable    BookAvailability = "AVAILABLE"
	BookInProgress   BookAvailability = "IN_PROGRESS"
	BookNotAvailable BookAvailability = "NOT_AVAILABLE"
)

type Book struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Author          string           `json:"author"`
	Genre           string           `json:"genre,omitempty"`
	Pages           int32            `json:"pages,omitempty"`
	Description     string           `json:"description,omitempty"`
	Cost            decimal.Decimal  `json:"cost"`
	Language        string           `json:"language,omitempty"`
	BookCount       int32            `json:"book_count"`
	Availability    BookAvailability `json:"availability_status"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       *time.Time       `json:"updated_at,omitempty"`
}

// BookDetail carries the extra read-model attached to a single-book view.
type BookDetail struct {
	Book
	AverageRating *float64  `json:"average_rating"`
	Comments      []Comment `json:"comments"`
	Ratings       []Rating  `json:"ratings"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Rating struct {
	ID        int64     `json:"id"`
	Score     int32     `json:"score"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BookFilter narrows catalog listings. Zero values mean "no filter".
type BookFilter struct {
	Author       string
	Genre        string
	Language     string
	Availability BookAvailability
	Skip         int
	Limit        int
}
