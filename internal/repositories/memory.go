package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"realtime-chat/internal/models"
)

// MemoryStore keeps users, challenges and messages in process memory.
// It backs STORE_DRIVER=memory and service tests.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]models.User
	challenges map[string]models.OTPChallenge
	messages   []models.Message
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]models.User),
		challenges: make(map[string]models.OTPChallenge),
		now:        time.Now,
	}
}

// SetClock overrides the timestamp source used for created_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.User{}, ErrEmailTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (s *MemoryStore) ListUsersExcept(ctx context.Context, userID string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for id, u := range s.users {
		if id != userID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.Bio != nil {
		user.Bio = update.Bio
	}
	if update.AvatarURL != nil {
		user.AvatarURL = update.AvatarURL
	}
	s.users[userID] = user
	return user, nil
}

func (s *MemoryStore) UpsertChallenge(ctx context.Context, challenge models.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge.Verified = false
	challenge.Attempts = 0
	challenge.CreatedAt = s.now()
	s.challenges[challenge.Email] = challenge
	return nil
}

func (s *MemoryStore) GetChallenge(ctx context.Context, email string) (models.OTPChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.challenges[email]
	if !ok {
		return models.OTPChallenge{}, ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *MemoryStore) MarkVerified(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[email]
	if !ok {
		return ErrChallengeNotFound
	}
	challenge.Verified = true
	s.challenges[email] = challenge
	return nil
}

func (s *MemoryStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[email]
	if !ok {
		return 0, ErrChallengeNotFound
	}
	challenge.Attempts++
	s.challenges[email] = challenge
	return challenge.Attempts, nil
}

func (s *MemoryStore) DeleteChallenge(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, email)
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for email, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, email)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Seen = false
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == messageID {
			return m, nil
		}
	}
	return models.Message{}, ErrMessageNotFound
}

func (s *MemoryStore) GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := []models.Message{}
	for _, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == otherID) || (m.SenderID == otherID && m.ReceiverID == userID) {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (s *MemoryStore) MarkConversationSeen(ctx context.Context, receiverID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkSeen(ctx context.Context, messageID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == messageID && s.messages[i].ReceiverID == receiverID {
			s.messages[i].Seen = true
			return nil
		}
	}
	return ErrMessageNotFound
}

func (s *MemoryStore) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && !m.Seen {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) LastMessages(ctx context.Context, userID string) (map[string]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := make(map[string]models.Message)
	for _, m := range s.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		other := m.Counterpart(userID)
		if prev, ok := last[other]; !ok || !m.CreatedAt.Before(prev.CreatedAt) {
			last[other] = m
		}
	}
	return last, nil
}

var (
	_ UserRepository    = (*MemoryStore)(nil)
	_ OTPRepository     = (*MemoryStore)(nil)
	_ MessageRepository = (*MemoryStore)(nil)
	_ UserRepository    = (*UserRepo)(nil)
	_ OTPRepository     = (*OTPRepo)(nil)
	_ MessageRepository = (*MessageRepo)(nil)
)
