package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/auth"
)

type RouterDeps struct {
	Users    *UserHandler
	Books    *BookHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Tokens   *auth.TokenManager
	Loader   UserLoader
	Timeout  time.Duration
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(deps.Timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authRequired := AuthMiddleware(deps.Tokens, deps.Loader)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", deps.Users.Register)
		r.Post("/login", deps.Users.Login)

		r.Get("/books", deps.Books.ListBooks)
		r.Get("/books/{book_id}", deps.Books.GetBook)
		r.Get("/books/{book_id}/comments", deps.Books.ListComments)

		r.Group(func(r chi.Router) {
			r.Use(authRequired)

			r.Get("/users/me", deps.Users.Me)
			r.Put("/users/me", deps.Users.UpdateMe)
			r.Post("/users/me/balance", deps.Users.TopUpBalance)
			r.Get("/users/me/purchases", deps.Users.MyPurchases)
			r.Get("/users/me/stats", deps.Users.MyStats)

			r.Post("/books", deps.Books.CreateBook)
			r.Put("/books/{book_id}", deps.Books.UpdateBook)
			r.Delete("/books/{book_id}", deps.Books.DeleteBook)
			r.Post("/books/{book_id}/comments", deps.Books.AddComment)
			r.Post("/books/{book_id}/rate", deps.Books.RateBook)
			r.Post("/books/{book_id}/favorite", deps.Books.MarkFavorite)
			r.Delete("/books/{book_id}/favorite", deps.Books.UnmarkFavorite)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", deps.Cart.GetCart)
				r.Post("/items", deps.Cart.AddItem)
				r.Delete("/items/{item_id}", deps.Cart.RemoveItem)
				r.Delete("/", deps.Cart.ClearCart)
			})

			r.Post("/checkout", deps.Checkout.Checkout)
		})
	})

	return r
}
