package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-chat/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserRepository abstracts account persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsersExcept(ctx context.Context, userID string) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, full_name, password_hash, avatar_url, bio, created_at`

const (
	pqUniqueViolation           = "23505"
	pqInvalidTextRepresentation = "22P02"
)

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

// CreateUser inserts a new account. A duplicate email yields ErrEmailTaken.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	var out models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (id, email, full_name, password_hash, avatar_url, bio) VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+userColumns,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.AvatarURL, user.Bio).StructScan(&out)
	if hasPQCode(err, pqUniqueViolation) {
		return models.User{}, ErrEmailTaken
	}
	return out, err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	// a malformed id cannot name a row
	if errors.Is(err, sql.ErrNoRows) || hasPQCode(err, pqInvalidTextRepresentation) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches a user by normalized email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsersExcept returns every user other than userID.
func (r *UserRepo) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id<>$1 ORDER BY created_at DESC`, userID)
	return users, err
}

// UpdateProfile applies the non-nil fields of update.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx, `UPDATE users SET
            full_name = COALESCE($2, full_name),
            bio = COALESCE($3, bio),
            avatar_url = COALESCE($4, avatar_url)
        WHERE id=$1 RETURNING `+userColumns,
		userID, update.FullName, update.Bio, update.AvatarURL).StructScan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
