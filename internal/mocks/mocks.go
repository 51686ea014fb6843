package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"
)

var (
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
	_ repositories.OTPRepository     = (*OTPRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	args := m.Called(ctx, userID)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.User, error) {
	args := m.Called(ctx, userID, update)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

type OTPRepositoryMock struct {
	mock.Mock
}

func (m *OTPRepositoryMock) UpsertChallenge(ctx context.Context, challenge models.OTPChallenge) error {
	args := m.Called(ctx, challenge)
	return args.Error(0)
}

func (m *OTPRepositoryMock) GetChallenge(ctx context.Context, email string) (models.OTPChallenge, error) {
	args := m.Called(ctx, email)
	var out models.OTPChallenge
	if val := args.Get(0); val != nil {
		out = val.(models.OTPChallenge)
	}
	return out, args.Error(1)
}

func (m *OTPRepositoryMock) MarkVerified(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *OTPRepositoryMock) IncrementAttempts(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

func (m *OTPRepositoryMock) DeleteChallenge(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *OTPRepositoryMock) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	args := m.Called(ctx, userID, otherID)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationSeen(ctx context.Context, receiverID, senderID string) (int64, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, messageID, receiverID string) error {
	args := m.Called(ctx, messageID, receiverID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	args := m.Called(ctx, receiverID)
	var out map[string]int
	if val := args.Get(0); val != nil {
		out = val.(map[string]int)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) LastMessages(ctx context.Context, userID string) (map[string]models.Message, error) {
	args := m.Called(ctx, userID)
	var out map[string]models.Message
	if val := args.Get(0); val != nil {
		out = val.(map[string]models.Message)
	}
	return out, args.Error(1)
}
