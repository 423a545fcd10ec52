package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/bookshelf-be/internal/models"
	"github.com/isdelr/bookshelf-be/internal/storage"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrNotOwner     = errors.New("not the owner of this book")
	ErrInvalidImage = errors.New("invalid image data")
	ErrAssetUpload  = errors.New("image upload failed")
	ErrAssetDelete  = errors.New("image deletion failed")
)

const (
	defaultPage  = 1
	defaultLimit = 5
)

// BookServiceProvider defines the interface for book services.
type BookServiceProvider interface {
	Create(ctx context.Context, userID, title, caption string, rating int, imageData string) (models.Book, error)
	List(ctx context.Context, page, limit int) (models.BookPage, error)
	Delete(ctx context.Context, userID, bookID string) error
}

// BookService provides business logic for book entries. Cover images live in
// the external image store; only their URLs are persisted.
type BookService struct {
	db     *sqlx.DB
	images storage.ImageStore
}

// NewBookService creates a new BookService.
func NewBookService(db *sqlx.DB, images storage.ImageStore) *BookService {
	return &BookService{db: db, images: images}
}

// Create uploads the cover image and persists a book owned by userID. The
// record is only written once the upload has produced a durable URL, so no
// book ever exists without an image.
func (s *BookService) Create(ctx context.Context, userID, title, caption string, rating int, imageData string) (models.Book, error) {
	if title == "" || caption == "" || rating == 0 || imageData == "" {
		return models.Book{}, ErrMissingFields
	}

	data, contentType, err := decodeImage(imageData)
	if err != nil {
		return models.Book{}, ErrInvalidImage
	}

	imageURL, err := s.images.Upload(ctx, data, contentType)
	if err != nil {
		return models.Book{}, fmt.Errorf("%w: %v", ErrAssetUpload, err)
	}

	book := models.Book{
		ID:        uuid.New().String(),
		Title:     title,
		Caption:   caption,
		Rating:    rating,
		Image:     imageURL,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO books (id, title, caption, rating, image, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title, book.Caption, book.Rating, book.Image, book.UserID, book.CreatedAt)
	if err != nil {
		// The upload already happened; clean it up so the store does not
		// accumulate covers no record points at.
		if removeErr := s.images.Remove(ctx, assetIDFromURL(book.Image)); removeErr != nil {
			log.Warn().Err(removeErr).Str("image", book.Image).Msg("Failed to clean up cover after insert failure")
		}
		return models.Book{}, fmt.Errorf("failed to insert book: %w", err)
	}

	return book, nil
}

// bookRow carries one listing row with its owner columns.
type bookRow struct {
	models.Book
	OwnerUsername string `db:"owner_username"`
	OwnerImage    string `db:"owner_profile_image"`
}

// List returns one page of books, newest first, with owners expanded for
// display. Non-positive page and limit fall back to defaults; a page past the
// end yields an empty page, not an error.
func (s *BookService) List(ctx context.Context, page, limit int) (models.BookPage, error) {
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := (page - 1) * limit

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM books`); err != nil {
		return models.BookPage{}, fmt.Errorf("failed to count books: %w", err)
	}

	var rows []bookRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT b.id, b.title, b.caption, b.rating, b.image, b.user_id, b.created_at,
		       u.username AS owner_username, u.profile_image AS owner_profile_image
		FROM books b
		JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return models.BookPage{}, fmt.Errorf("failed to list books: %w", err)
	}

	books := make([]models.Book, 0, len(rows))
	for _, row := range rows {
		book := row.Book
		book.User = &models.BookOwner{
			ID:           row.UserID,
			Username:     row.OwnerUsername,
			ProfileImage: row.OwnerImage,
		}
		books = append(books, book)
	}

	return models.BookPage{
		Books:       books,
		CurrentPage: page,
		TotalBooks:  total,
		TotalPages:  (total + limit - 1) / limit,
	}, nil
}

// Delete removes a book after verifying ownership. The ownership check runs
// before any mutation or external call. If the cover lives in the image store
// and its deletion fails, the record is kept (fail closed) so no local state
// silently outlives or orphans its asset; the client may retry.
func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	var book models.Book
	err := s.db.GetContext(ctx, &book,
		`SELECT id, title, caption, rating, image, user_id, created_at FROM books WHERE id = ?`, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookNotFound
		}
		return fmt.Errorf("failed to query book: %w", err)
	}

	if book.UserID != userID {
		return ErrNotOwner
	}

	if s.images.Managed(book.Image) {
		if err := s.images.Remove(ctx, assetIDFromURL(book.Image)); err != nil {
			return fmt.Errorf("%w: %v", ErrAssetDelete, err)
		}
	}

	// Concurrent deletes race here; the row arbitrates. Exactly one caller
	// observes an affected row, the rest see the book as already gone.
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// assetIDFromURL derives the image store asset ID from a stored URL: the last
// path segment with its extension stripped.
func assetIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// decodeImage accepts a base64 cover payload, either raw or as a data URI,
// and returns the bytes plus a content type.
func decodeImage(imageData string) ([]byte, string, error) {
	contentType := ""
	payload := imageData

	if strings.HasPrefix(imageData, "data:") {
		rest := strings.TrimPrefix(imageData, "data:")
		meta, encoded, ok := strings.Cut(rest, ",")
		if !ok {
			return nil, "", errors.New("malformed data URI")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		payload = encoded
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image payload")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
