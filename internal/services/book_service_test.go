package services_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/bookshelf-be/internal/models"
	"github.com/isdelr/bookshelf-be/internal/services"
)

const stubBaseURL = "http://assets.test/book-covers"

// stubImageStore records upload/remove calls in place of MinIO.
type stubImageStore struct {
	uploads   int
	removed   []string
	uploadErr error
	removeErr error
}

func (s *stubImageStore) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads++
	return fmt.Sprintf("%s/covers/asset-%d.png", stubBaseURL, s.uploads), nil
}

func (s *stubImageStore) Remove(_ context.Context, assetID string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, assetID)
	return nil
}

func (s *stubImageStore) Managed(rawURL string) bool {
	return strings.HasPrefix(rawURL, stubBaseURL+"/")
}

func testImage(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
}

func countBooks(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM books`))
	return n
}

func TestBookService_Create(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()

	book, err := svc.Create(ctx, owner.ID, "Dune", "A classic", 5, testImage(t))
	require.NoError(t, err)

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, owner.ID, book.UserID)
	assert.Equal(t, stubBaseURL+"/covers/asset-1.png", book.Image)
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, 1, countBooks(t, db))
}

func TestBookService_Create_Validation(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()
	image := testImage(t)

	tests := []struct {
		name    string
		title   string
		caption string
		rating  int
		image   string
	}{
		{name: "missing title", caption: "c", rating: 4, image: image},
		{name: "missing caption", title: "t", rating: 4, image: image},
		{name: "missing rating", title: "t", caption: "c", image: image},
		{name: "missing image", title: "t", caption: "c", rating: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner.ID, tt.title, tt.caption, tt.rating, tt.image)
			require.ErrorIs(t, err, services.ErrMissingFields)
		})
	}

	// Nothing may reach the store or the database on validation failure.
	assert.Zero(t, store.uploads)
	assert.Zero(t, countBooks(t, db))
}

func TestBookService_Create_InvalidImage(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")

	_, err := svc.Create(context.Background(), owner.ID, "t", "c", 4, "%%% not base64 %%%")
	require.ErrorIs(t, err, services.ErrInvalidImage)
	assert.Zero(t, store.uploads)
}

func TestBookService_Create_UploadFailure(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{uploadErr: errors.New("store unavailable")}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")

	_, err := svc.Create(context.Background(), owner.ID, "t", "c", 4, testImage(t))
	require.ErrorIs(t, err, services.ErrAssetUpload)

	// No record without an image URL.
	assert.Zero(t, countBooks(t, db))
}

func TestBookService_List_Pagination(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		_, err := svc.Create(ctx, owner.ID, fmt.Sprintf("book-%d", i), "caption", 3, testImage(t))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 2, 5)
	require.NoError(t, err)

	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 7, page.TotalBooks)
	assert.Equal(t, 2, page.TotalPages)

	// Newest first: page two of five holds the two oldest entries.
	require.Len(t, page.Books, 2)
	assert.Equal(t, "book-2", page.Books[0].Title)
	assert.Equal(t, "book-1", page.Books[1].Title)

	// Owners are expanded for display.
	require.NotNil(t, page.Books[0].User)
	assert.Equal(t, "alice", page.Books[0].User.Username)
	assert.Equal(t, owner.ProfileImage, page.Books[0].User.ProfileImage)
}

func TestBookService_List_Defaults(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewBookService(db, &stubImageStore{})
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		_, err := svc.Create(ctx, owner.ID, fmt.Sprintf("book-%d", i), "caption", 3, testImage(t))
		require.NoError(t, err)
	}

	// Zero and negative inputs fall back to page 1, limit 5.
	page, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Len(t, page.Books, 5)
	assert.Equal(t, 2, page.TotalPages)

	page, err = svc.List(ctx, -2, -7)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Len(t, page.Books, 5)
}

func TestBookService_List_PastEnd(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewBookService(db, &stubImageStore{})
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()

	_, err := svc.Create(ctx, owner.ID, "only", "caption", 3, testImage(t))
	require.NoError(t, err)

	page, err := svc.List(ctx, 10, 5)
	require.NoError(t, err)
	require.NotNil(t, page.Books)
	assert.Empty(t, page.Books)
	assert.Equal(t, 1, page.TotalBooks)
}

func TestBookService_Delete(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")
	other := registerTestUser(t, db, "bob", "b@x.com")
	ctx := context.Background()

	book, err := svc.Create(ctx, owner.ID, "Dune", "A classic", 5, testImage(t))
	require.NoError(t, err)

	t.Run("unknown book", func(t *testing.T) {
		err := svc.Delete(ctx, owner.ID, "no-such-id")
		require.ErrorIs(t, err, services.ErrBookNotFound)
	})

	t.Run("non-owner is rejected before any mutation", func(t *testing.T) {
		err := svc.Delete(ctx, other.ID, book.ID)
		require.ErrorIs(t, err, services.ErrNotOwner)
		assert.Equal(t, 1, countBooks(t, db))
		assert.Empty(t, store.removed)
	})

	t.Run("owner delete removes record and asset once", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, owner.ID, book.ID))
		assert.Zero(t, countBooks(t, db))
		assert.Equal(t, []string{"asset-1"}, store.removed)
	})

	t.Run("second delete observes the book as gone", func(t *testing.T) {
		err := svc.Delete(ctx, owner.ID, book.ID)
		require.ErrorIs(t, err, services.ErrBookNotFound)
	})
}

func TestBookService_Delete_AssetFailureKeepsRecord(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()

	book, err := svc.Create(ctx, owner.ID, "Dune", "A classic", 5, testImage(t))
	require.NoError(t, err)

	// Fail closed: a failed remote delete leaves the record in place.
	store.removeErr = errors.New("store unavailable")
	err = svc.Delete(ctx, owner.ID, book.ID)
	require.ErrorIs(t, err, services.ErrAssetDelete)
	assert.Equal(t, 1, countBooks(t, db))

	store.removeErr = nil
	require.NoError(t, svc.Delete(ctx, owner.ID, book.ID))
	assert.Zero(t, countBooks(t, db))
}

func TestBookService_Delete_UnmanagedImageSkipsStore(t *testing.T) {
	db := newTestDB(t)
	store := &stubImageStore{}
	svc := services.NewBookService(db, store)
	owner := registerTestUser(t, db, "alice", "a@x.com")
	ctx := context.Background()

	// A book whose image never came from the store, e.g. seeded data.
	book := models.Book{ID: "seeded", Title: "t", Caption: "c", Rating: 1,
		Image: "https://elsewhere.example/cover.png", UserID: owner.ID}
	_, err := db.Exec(`INSERT INTO books (id, title, caption, rating, image, user_id) VALUES (?, ?, ?, ?, ?, ?)`,
		book.ID, book.Title, book.Caption, book.Rating, book.Image, book.UserID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner.ID, book.ID))
	assert.Empty(t, store.removed)
	assert.Zero(t, countBooks(t, db))
}
