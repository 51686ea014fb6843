package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"realtime-chat/internal/apperr"
	"realtime-chat/internal/auth"
	"realtime-chat/internal/mailer"
	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/storage"
)

const (
	minPasswordLen = 6
	maxOTPAttempts = 5
)

// TokenIssuer issues session tokens.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// Auditor records account lifecycle events.
type Auditor interface {
	Emit(ctx context.Context, level, text string, userID *string)
}

type SignupInput struct {
	FullName string
	Email    string
	Password string
	Bio      *string
}

// ProfileInput carries optional profile changes. ProfilePic is a base64 image.
type ProfileInput struct {
	FullName   *string
	Bio        *string
	ProfilePic *string
}

type AuthResult struct {
	User  models.User
	Token string
}

// AuthService drives email OTP verification, signup, login and profile updates.
type AuthService struct {
	users    repositories.UserRepository
	otps     repositories.OTPRepository
	mail     mailer.Sender
	uploader storage.Uploader
	tokens   TokenIssuer
	audit    Auditor
	otpTTL   time.Duration
	log      *zap.Logger

	maxAttempts int
	now         func() time.Time
	generateOTP func() (string, error)
}

func NewAuthService(users repositories.UserRepository, otps repositories.OTPRepository, mail mailer.Sender, uploader storage.Uploader, tokens TokenIssuer, audit Auditor, otpTTL time.Duration, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:       users,
		otps:        otps,
		mail:        mail,
		uploader:    uploader,
		tokens:      tokens,
		audit:       audit,
		otpTTL:      otpTTL,
		log:         log,
		maxAttempts: maxOTPAttempts,
		now:         time.Now,
		generateOTP: auth.GenerateOTP,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Validation("invalid email address")
	}
	return nil
}

// SendOTP writes a fresh challenge for email and mails the code. A previous
// unconsumed code for the same email stops working.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict("email already registered")
	case !errors.Is(err, repositories.ErrUserNotFound):
		return storeError(err)
	}

	code, err := s.generateOTP()
	if err != nil {
		return apperr.Internal("failed to generate otp", err)
	}
	hashed, err := auth.HashSecret(code)
	if err != nil {
		return apperr.Internal("failed to hash otp", err)
	}

	challenge := models.OTPChallenge{
		Email:      email,
		HashedCode: hashed,
		ExpiresAt:  s.now().Add(s.otpTTL),
	}
	if err := s.otps.UpsertChallenge(ctx, challenge); err != nil {
		return storeError(err)
	}

	if err := s.mail.Send(ctx, email, mailer.OTPSubject, mailer.OTPBody(code, s.otpTTL)); err != nil {
		observability.IncOTPSent("mail_failed")
		if delErr := s.otps.DeleteChallenge(ctx, email); delErr != nil {
			s.log.Error("failed to void otp challenge after mail failure", zap.String("email", email), zap.Error(delErr))
		}
		return apperr.Upstream("failed to send verification email", err)
	}

	observability.IncOTPSent("sent")
	s.log.Info("otp sent", zap.String("email", email))
	return nil
}

// VerifyOTP checks code against the live challenge and marks it verified.
// The verified challenge stays valid for signup until its own expiry.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return apperr.Validation("email and otp are required")
	}
	if err := auth.ValidateOTPFormat(code); err != nil {
		return apperr.Validation("invalid otp")
	}

	challenge, err := s.otps.GetChallenge(ctx, email)
	if errors.Is(err, repositories.ErrChallengeNotFound) || (err == nil && challenge.Verified) {
		return apperr.Conflict("no challenge found")
	}
	if err != nil {
		return storeError(err)
	}

	if challenge.Expired(s.now()) {
		if err := s.otps.DeleteChallenge(ctx, email); err != nil {
			s.log.Warn("failed to delete expired challenge", zap.String("email", email), zap.Error(err))
		}
		return apperr.Conflict("otp expired")
	}
	if challenge.Attempts >= s.maxAttempts {
		return s.voidChallenge(ctx, email)
	}
	if !auth.CompareSecret(code, challenge.HashedCode) {
		attempts, err := s.otps.IncrementAttempts(ctx, email)
		if err != nil && !errors.Is(err, repositories.ErrChallengeNotFound) {
			return storeError(err)
		}
		if attempts >= s.maxAttempts {
			return s.voidChallenge(ctx, email)
		}
		return apperr.Validation("invalid otp")
	}

	if err := s.otps.MarkVerified(ctx, email); err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return apperr.Conflict("no challenge found")
		}
		return storeError(err)
	}
	return nil
}

// voidChallenge drops a challenge that has run out of guesses.
func (s *AuthService) voidChallenge(ctx context.Context, email string) error {
	if err := s.otps.DeleteChallenge(ctx, email); err != nil {
		s.log.Warn("failed to void challenge", zap.String("email", email), zap.Error(err))
	}
	s.log.Info("otp challenge voided after too many attempts", zap.String("email", email))
	return apperr.Conflict("too many invalid otp attempts")
}

// Signup creates the account for a verified email and consumes its challenge.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.FullName == "" || in.Email == "" || in.Password == "" {
		return AuthResult{}, apperr.Validation("missing details")
	}
	if err := validateEmail(in.Email); err != nil {
		return AuthResult{}, err
	}
	if len(in.Password) < minPasswordLen {
		return AuthResult{}, apperr.Validation("password must be at least 6 characters")
	}

	challenge, err := s.otps.GetChallenge(ctx, in.Email)
	if errors.Is(err, repositories.ErrChallengeNotFound) || (err == nil && !challenge.Verified) {
		return AuthResult{}, apperr.Conflict("email not verified")
	}
	if err != nil {
		return AuthResult{}, storeError(err)
	}
	if challenge.Expired(s.now()) {
		_ = s.otps.DeleteChallenge(ctx, in.Email)
		return AuthResult{}, apperr.Conflict("email verification expired")
	}

	hashed, err := auth.HashSecret(in.Password)
	if err != nil {
		return AuthResult{}, apperr.Internal("failed to hash password", err)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: &hashed,
		Bio:          emptyToNil(in.Bio),
	})
	if errors.Is(err, repositories.ErrEmailTaken) {
		return AuthResult{}, apperr.Conflict("email already registered")
	}
	if err != nil {
		return AuthResult{}, storeError(err)
	}

	if err := s.otps.DeleteChallenge(ctx, in.Email); err != nil {
		s.log.Warn("failed to consume otp challenge", zap.String("email", in.Email), zap.Error(err))
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return AuthResult{}, apperr.Internal("failed to issue token", err)
	}
	s.emit(ctx, "INFO", "user signed up", user.ID)
	return AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, apperr.Validation("email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return AuthResult{}, apperr.Auth("invalid credentials")
	}
	if err != nil {
		return AuthResult{}, storeError(err)
	}
	if user.PasswordHash == nil || !auth.CompareSecret(password, *user.PasswordHash) {
		s.emit(ctx, "WARN", "failed login", user.ID)
		return AuthResult{}, apperr.Auth("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return AuthResult{}, apperr.Internal("failed to issue token", err)
	}
	s.emit(ctx, "INFO", "user logged in", user.ID)
	return AuthResult{User: user, Token: token}, nil
}

// Check resolves the authenticated user.
func (s *AuthService) Check(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, apperr.Auth("user not found")
	}
	if err != nil {
		return models.User{}, storeError(err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (models.User, error) {
	if in.FullName == nil && in.Bio == nil && (in.ProfilePic == nil || *in.ProfilePic == "") {
		return models.User{}, apperr.Validation("nothing to update")
	}

	var update models.ProfileUpdate
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return models.User{}, apperr.Validation("full name cannot be empty")
		}
		update.FullName = &name
	}
	update.Bio = in.Bio

	if in.ProfilePic != nil && *in.ProfilePic != "" {
		url, err := uploadImage(ctx, s.uploader, *in.ProfilePic)
		if err != nil {
			return models.User{}, err
		}
		update.AvatarURL = &url
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, storeError(err)
	}
	s.emit(ctx, "INFO", "profile updated", userID)
	return user, nil
}

// Logout only records the event; tokens are stateless and dropped by the client.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.emit(ctx, "INFO", "user logged out", userID)
}

func (s *AuthService) emit(ctx context.Context, level, text, userID string) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, level, text, &userID)
}

func uploadImage(ctx context.Context, uploader storage.Uploader, data string) (string, error) {
	url, err := uploader.Upload(ctx, data)
	if errors.Is(err, storage.ErrInvalidImage) {
		return "", apperr.Validation("invalid image")
	}
	if err != nil {
		return "", apperr.Upstream("failed to upload image", err)
	}
	return url, nil
}

func storeError(err error) error {
	return apperr.Store("storage unavailable", err)
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
