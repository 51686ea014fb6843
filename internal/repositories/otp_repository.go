package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"realtime-chat/internal/models"
)

var ErrChallengeNotFound = errors.New("otp challenge not found")

// OTPRepository stores at most one challenge per email.
type OTPRepository interface {
	UpsertChallenge(ctx context.Context, challenge models.OTPChallenge) error
	GetChallenge(ctx context.Context, email string) (models.OTPChallenge, error)
	MarkVerified(ctx context.Context, email string) error
	IncrementAttempts(ctx context.Context, email string) (int, error)
	DeleteChallenge(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OTPRepo is a sqlx implementation of OTPRepository.
type OTPRepo struct {
	db *sqlx.DB
}

// NewOTPRepo constructs an OTPRepo.
func NewOTPRepo(db *sqlx.DB) *OTPRepo {
	return &OTPRepo{db: db}
}

// UpsertChallenge creates or replaces the challenge for the email, clearing any prior verification and attempts.
func (r *OTPRepo) UpsertChallenge(ctx context.Context, challenge models.OTPChallenge) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO otp_challenges (email, hashed_code, expires_at, verified, attempts) VALUES ($1, $2, $3, FALSE, 0)
        ON CONFLICT (email) DO UPDATE SET hashed_code = EXCLUDED.hashed_code, expires_at = EXCLUDED.expires_at, verified = FALSE, attempts = 0, created_at = NOW()`,
		challenge.Email, challenge.HashedCode, challenge.ExpiresAt)
	return err
}

// GetChallenge fetches the challenge for the email.
func (r *OTPRepo) GetChallenge(ctx context.Context, email string) (models.OTPChallenge, error) {
	var challenge models.OTPChallenge
	err := r.db.GetContext(ctx, &challenge, `SELECT email, hashed_code, expires_at, verified, attempts, created_at FROM otp_challenges WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OTPChallenge{}, ErrChallengeNotFound
	}
	return challenge, err
}

// MarkVerified flags the challenge as consumed by a successful verification.
func (r *OTPRepo) MarkVerified(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE otp_challenges SET verified = TRUE WHERE email=$1`, email)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

// IncrementAttempts records one failed guess and returns the new total.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, email string) (int, error) {
	var attempts int
	err := r.db.GetContext(ctx, &attempts, `UPDATE otp_challenges SET attempts = attempts + 1 WHERE email=$1 RETURNING attempts`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrChallengeNotFound
	}
	return attempts, err
}

// DeleteChallenge removes the challenge; deleting an absent one is a no-op.
func (r *OTPRepo) DeleteChallenge(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email=$1`, email)
	return err
}

// DeleteExpired removes challenges whose expiry is not after now.
func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
