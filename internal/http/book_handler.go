package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/service"
)

type BookHandler struct {
	catalog *service.CatalogService
}

func NewBookHandler(catalog *service.CatalogService) *BookHandler {
	return &BookHandler{catalog: catalog}
}

type BookListResponse struct {
	Books []domain.Book `json:"books"`
	Total int64         `json:"total"`
}

func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.BookFilter{
		Author:       q.Get("author"),
		Genre:        q.Get("genre"),
		Language:     q.Get("language"),
		Availability: domain.BookAvailability(q.Get("availability")),
		Skip:         queryInt(q.Get("skip"), 0),
		Limit:        queryInt(q.Get("limit"), 100),
	}

	books, total, err := h.catalog.ListBooks(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, BookListResponse{Books: books, Total: total})
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	detail, err := h.catalog.GetBookDetail(r.Context(), bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

type BookRequestDTO struct {
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Genre           string          `json:"genre"`
	Pages           int32           `json:"pages"`
	Description     string          `json:"description"`
	Cost            decimal.Decimal `json:"cost"`
	Language        string          `json:"language"`
	BookCount       int32           `json:"book_count"`
	PublicationDate *time.Time      `json:"publication_date"`
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	if !requireBookManager(w, r) {
		return
	}

	req, ok := decodeBookRequest(w, r)
	if !ok {
		return
	}

	book := bookFromRequest(req)
	if err := h.catalog.CreateBook(r.Context(), book); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	if !requireBookManager(w, r) {
		return
	}

	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	req, ok := decodeBookRequest(w, r)
	if !ok {
		return
	}

	book := bookFromRequest(req)
	book.ID = bookID
	if err := h.catalog.UpdateBook(r.Context(), book); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, book)
}

func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if !requireBookManager(w, r) {
		return
	}

	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteBook(r.Context(), bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

type CommentRequestDTO struct {
	Text string `json:"text"`
}

func (h *BookHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	var req CommentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "comment text is required")
		return
	}

	comment, err := h.catalog.AddComment(r.Context(), userID, bookID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, comment)
}

func (h *BookHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	q := r.URL.Query()
	comments, err := h.catalog.ListComments(r.Context(), bookID, queryInt(q.Get("skip"), 0), queryInt(q.Get("limit"), 100))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, comments)
}

type RatingRequestDTO struct {
	Score int32 `json:"score"`
}

func (h *BookHandler) RateBook(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	var req RatingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Score < 1 || req.Score > 5 {
		respondError(w, http.StatusBadRequest, "invalid_score", "score must be between 1 and 5")
		return
	}

	rating, err := h.catalog.RateBook(r.Context(), userID, bookID, req.Score)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rating)
}

func (h *BookHandler) MarkFavorite(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	if err := h.catalog.MarkFavorite(r.Context(), userID, bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"message": "book added to favorites"})
}

func (h *BookHandler) UnmarkFavorite(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	bookID, ok := pathID(w, r, "book_id")
	if !ok {
		return
	}

	if err := h.catalog.UnmarkFavorite(r.Context(), userID, bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "book removed from favorites"})
}

func decodeBookRequest(w http.ResponseWriter, r *http.Request) (*BookRequestDTO, bool) {
	var req BookRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return nil, false
	}
	if req.Title == "" || req.Author == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "title and author are required")
		return nil, false
	}
	if !req.Cost.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_cost", "cost must be positive")
		return nil, false
	}
	return &req, true
}

func bookFromRequest(req *BookRequestDTO) *domain.Book {
	return &domain.Book{
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		Pages:           req.Pages,
		Description:     req.Description,
		Cost:            req.Cost,
		Language:        req.Language,
		BookCount:       req.BookCount,
		PublicationDate: req.PublicationDate,
	}
}

func requireBookManager(w http.ResponseWriter, r *http.Request) bool {
	user := getUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return false
	}
	if !user.IsBookManager && !user.IsSuperuser {
		respondError(w, http.StatusForbidden, "permission_denied", "book manager role required")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
