package models

import "time"

// Book represents a shared book entry referencing an externally hosted cover image.
type Book struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Caption   string    `db:"caption" json:"caption"`
	Rating    int       `db:"rating" json:"rating"`
	Image     string    `db:"image" json:"image"`
	UserID    string    `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// User is populated on listing so clients can render the owner
	// without a second request.
	User *BookOwner `db:"-" json:"user,omitempty"`
}

// BookOwner is the subset of the owning user exposed alongside a book.
type BookOwner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// BookPage is one page of the paginated book listing.
type BookPage struct {
	Books       []Book `json:"books"`
	CurrentPage int    `json:"currentPage"`
	TotalBooks  int    `json:"totalBooks"`
	TotalPages  int    `json:"totalPages"`
}
