package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/bookshelf-be/internal/auth"
	"github.com/isdelr/bookshelf-be/internal/services"
)

// BookHandler handles HTTP requests for book entries.
type BookHandler struct {
	books services.BookServiceProvider
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(books services.BookServiceProvider) *BookHandler {
	return &BookHandler{books: books}
}

// CreateBookPayload defines the structure for book creation requests. Image
// is the base64-encoded cover, raw or as a data URI.
type CreateBookPayload struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Rating  int    `json:"rating"`
	Image   string `json:"image"`
}

// Create handles the request to create a new book.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "No token provided, authorization denied")
		return
	}

	var payload CreateBookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	book, err := h.books.Create(r.Context(), user.ID, payload.Title, payload.Caption, payload.Rating, payload.Image)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			respondMessage(w, http.StatusBadRequest, "All fields are required")
		case errors.Is(err, services.ErrInvalidImage):
			respondMessage(w, http.StatusBadRequest, "Invalid image data")
		default:
			log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create book")
			respondMessage(w, http.StatusInternalServerError, "Error creating book")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Book added successfully",
		"book":    book,
	})
}

// List handles the paginated book listing.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	// Absent or malformed values parse to zero and fall back to defaults.
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.books.List(r.Context(), page, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list books")
		respondMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Delete handles the request to delete a book owned by the caller.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respondMessage(w, http.StatusUnauthorized, "No token provided, authorization denied")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.books.Delete(r.Context(), user.ID, id); err != nil {
		switch {
		case errors.Is(err, services.ErrBookNotFound):
			respondMessage(w, http.StatusNotFound, "Book not found")
		case errors.Is(err, services.ErrNotOwner):
			respondMessage(w, http.StatusUnauthorized, "You are not authorized to delete this book")
		case errors.Is(err, services.ErrAssetDelete):
			log.Error().Err(err).Str("book_id", id).Msg("Failed to delete cover image")
			respondMessage(w, http.StatusInternalServerError, "Error deleting image from storage")
		default:
			log.Error().Err(err).Str("book_id", id).Msg("Failed to delete book")
			respondMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondMessage(w, http.StatusOK, "Book deleted successfully")
}
