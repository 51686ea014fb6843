package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-chat/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

var messageCols = []string{"id", "sender_id", "receiver_id", "text", "image_url", "seen", "created_at"}

func TestMessageRepoCreateMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), "a", "b", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow("m1", "a", "b", nil, "https://img/x.png", false, now))

	image := "https://img/x.png"
	msg, err := repo.CreateMessage(context.Background(), models.Message{SenderID: "a", ReceiverID: "b", ImageURL: &image})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Nil(t, msg.Text)
	require.NotNil(t, msg.ImageURL)
	assert.Equal(t, image, *msg.ImageURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoGetMessageNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(`FROM messages WHERE id`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(messageCols))

	_, err := repo.GetMessage(context.Background(), "missing")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	users := NewUserRepo(db)
	messages := NewMessageRepo(db)
	badID := &pq.Error{Code: pqInvalidTextRepresentation, Message: `invalid input syntax for type uuid: "abc"`}

	mock.ExpectQuery(`FROM users WHERE id`).WithArgs("abc").WillReturnError(badID)
	mock.ExpectQuery(`FROM messages WHERE id`).WithArgs("abc").WillReturnError(badID)
	mock.ExpectExec(`UPDATE messages SET seen = TRUE WHERE id`).WithArgs("abc", "me").WillReturnError(badID)

	_, err := users.GetUser(context.Background(), "abc")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = messages.GetMessage(context.Background(), "abc")
	require.ErrorIs(t, err, ErrMessageNotFound)
	err = messages.MarkSeen(context.Background(), "abc", "me")
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoMarkConversationSeen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(`UPDATE messages SET seen = TRUE`).WithArgs("me", "them").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkConversationSeen(context.Background(), "me", "them")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoMarkSeenWrongReceiver(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(`UPDATE messages SET seen = TRUE WHERE id`).WithArgs("m1", "intruder").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSeen(context.Background(), "m1", "intruder")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageRepoUnseenCounts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(`GROUP BY sender_id`).WithArgs("me").
		WillReturnRows(sqlmock.NewRows([]string{"sender_id", "count"}).AddRow("a", 2).AddRow("b", 5))

	counts, err := repo.UnseenCounts(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 5}, counts)
}

func TestMessageRepoLastMessagesKeyedByCounterpart(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectQuery(`DISTINCT ON \(counterpart\)`).WithArgs("me").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "me", "a", "hi", nil, false, now).
			AddRow("m2", "b", "me", "yo", nil, true, now.Add(-time.Minute)))

	last, err := repo.LastMessages(context.Background(), "me")
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "m1", last["a"].ID)
	assert.Equal(t, "m2", last["b"].ID)
}

var userCols = []string{"id", "email", "full_name", "password_hash", "avatar_url", "bio", "created_at"}

func TestUserRepoCreateUserDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.CreateUser(context.Background(), models.User{Email: "a@x.com", FullName: "A"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserRepoGetUserByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE email`).WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "a@x.com", "Alice", "hash", nil, nil, time.Now()))

	user, err := repo.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	require.NotNil(t, user.PasswordHash)
	assert.Nil(t, user.AvatarURL)
}

func TestUserRepoGetUserNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(`FROM users WHERE id`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetUser(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestOTPRepoMarkVerifiedMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepo(db)

	mock.ExpectExec(`UPDATE otp_challenges SET verified = TRUE`).WithArgs("a@x.com").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkVerified(context.Background(), "a@x.com")
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestOTPRepoIncrementAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepo(db)

	mock.ExpectQuery(`UPDATE otp_challenges SET attempts`).WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))
	mock.ExpectQuery(`UPDATE otp_challenges SET attempts`).WithArgs("b@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}))

	n, err := repo.IncrementAttempts(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = repo.IncrementAttempts(context.Background(), "b@x.com")
	require.ErrorIs(t, err, ErrChallengeNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepoDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOTPRepo(db)
	now := time.Now()

	mock.ExpectExec(`DELETE FROM otp_challenges WHERE expires_at`).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}
