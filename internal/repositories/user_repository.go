package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-app/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash, fullName, bio string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID int) (models.User, error)
	UpdateProfile(ctx context.Context, userID int, fullName, bio, profilePic string) (models.User, error)
	ListOthers(ctx context.Context, viewerID int) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, password_hash, full_name, bio, profile_pic, created_at`

// Create inserts a new user. A duplicate email maps to ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, fullName, bio string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (email, password_hash, full_name, bio) VALUES ($1, $2, $3, $4)
         RETURNING `+userColumns, email, passwordHash, fullName, bio).StructScan(&user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return user, nil
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile updates mutable profile fields. An empty profilePic leaves the
// stored picture untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int, fullName, bio, profilePic string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx,
		`UPDATE users SET full_name=$2, bio=$3,
            profile_pic = CASE WHEN $4 = '' THEN profile_pic ELSE $4 END
         WHERE id=$1 RETURNING `+userColumns, userID, fullName, bio, profilePic).StructScan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListOthers returns every user except the viewer.
func (r *UserRepo) ListOthers(ctx context.Context, viewerID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY full_name ASC`, viewerID)
	return users, err
}
