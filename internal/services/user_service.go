package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/bookshelf-be/internal/models"
)

// Sentinel errors the handlers translate into status codes and messages.
var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters long")
	ErrUsernameTooShort   = errors.New("username must be at least 3 characters long")
	ErrEmailTaken         = errors.New("email already exists")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	minPasswordLen = 6
	minUsernameLen = 3
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, username, email, password string) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// UserService provides business logic for user accounts and credentials.
type UserService struct {
	db *sqlx.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{db: db}
}

// Register validates the submitted fields, hashes the password, and persists
// a new user. The password is hashed exactly once, here; no other code path
// writes password_hash.
func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	if username == "" || email == "" || password == "" {
		return models.User{}, ErrMissingFields
	}
	if len(password) < minPasswordLen {
		return models.User{}, ErrPasswordTooShort
	}
	if len(username) < minUsernameLen {
		return models.User{}, ErrUsernameTooShort
	}

	// Early-exit duplicate checks, email first. The UNIQUE constraints on
	// the users table remain the source of truth.
	if _, err := s.GetUserByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}
	if _, err := s.GetUserByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		ProfileImage: avatarURL(username),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, profile_image) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.ProfileImage)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return models.User{}, conflict
		}
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	return s.GetUserByID(ctx, user.ID)
}

// Authenticate verifies a user's credentials. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail retrieves a single user by their email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByUsername retrieves a single user by their username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *UserService) getUser(ctx context.Context, column, value string) (models.User, error) {
	var user models.User
	query := fmt.Sprintf(
		`SELECT id, username, email, password_hash, profile_image, created_at FROM users WHERE %s = ?`, column)
	err := s.db.GetContext(ctx, &user, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// avatarURL builds the deterministic default avatar for a username.
func avatarURL(username string) string {
	return "https://api.dicebear.com/5.x/initials/svg?seed=" + url.QueryEscape(username)
}

// uniqueViolation maps a UNIQUE constraint failure on the users table to the
// matching conflict sentinel, or returns nil for unrelated errors.
func uniqueViolation(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return ErrEmailTaken
	case strings.Contains(msg, "users.username"):
		return ErrUsernameTaken
	default:
		return nil
	}
}
