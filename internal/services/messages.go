package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"realtime-chat/internal/apperr"
	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/storage"
)

// Notifier pushes persisted messages and read receipts to online users.
type Notifier interface {
	NotifyNewMessage(msg models.Message) bool
	NotifyMessagesSeen(senderID string, receipt models.SeenReceipt) bool
}

// SendInput is a message body. Image is base64 and uploaded before persisting.
type SendInput struct {
	Text  *string
	Image *string
}

// Sidebar is every other user ranked by recent activity plus non-zero unseen counts.
type Sidebar struct {
	Users  []models.User
	Unseen map[string]int
}

type MessageService struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
	uploader storage.Uploader
	notifier Notifier
	log      *zap.Logger
}

func NewMessageService(users repositories.UserRepository, messages repositories.MessageRepository, uploader storage.Uploader, notifier Notifier, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{users: users, messages: messages, uploader: uploader, notifier: notifier, log: log}
}

// Send persists a message and then offers it to the receiver's live connection.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID string, in SendInput) (models.Message, error) {
	if receiverID == "" {
		return models.Message{}, apperr.Validation("receiver is required")
	}
	if receiverID == senderID {
		return models.Message{}, apperr.Validation("cannot send a message to yourself")
	}
	text := emptyToNil(in.Text)
	hasImage := in.Image != nil && strings.TrimSpace(*in.Image) != ""
	if text == nil && !hasImage {
		return models.Message{}, apperr.Validation("message text or image is required")
	}

	if err := s.ensureUser(ctx, receiverID, "receiver not found"); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{SenderID: senderID, ReceiverID: receiverID, Text: text}
	if hasImage {
		url, err := uploadImage(ctx, s.uploader, *in.Image)
		if err != nil {
			return models.Message{}, err
		}
		msg.ImageURL = &url
	}

	saved, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, storeError(err)
	}
	observability.IncMessageSent(contentKind(saved))

	delivered := s.notifier.NotifyNewMessage(saved)
	s.log.Debug("message sent", zap.String("message_id", saved.ID), zap.Bool("delivered", delivered))
	s.publishSent(ctx, saved, delivered)
	return saved, nil
}

// Conversation returns both directions with otherID, oldest first, after marking
// everything otherID sent to userID as seen.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	if err := s.ensureUser(ctx, otherID, "user not found"); err != nil {
		return nil, err
	}
	marked, err := s.messages.MarkConversationSeen(ctx, userID, otherID)
	if err != nil {
		return nil, storeError(err)
	}
	if marked > 0 {
		s.notifier.NotifyMessagesSeen(otherID, models.SeenReceipt{ByUserID: userID, Count: marked})
	}
	msgs, err := s.messages.GetConversation(ctx, userID, otherID)
	if err != nil {
		return nil, storeError(err)
	}
	return msgs, nil
}

// MarkOneSeen flags a single message. Only its receiver may do so; to anyone
// else the message does not exist.
func (s *MessageService) MarkOneSeen(ctx context.Context, userID, messageID string) error {
	if messageID == "" {
		return apperr.Validation("message id is required")
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) || (err == nil && msg.ReceiverID != userID) {
		return apperr.NotFound("message not found")
	}
	if err != nil {
		return storeError(err)
	}
	if msg.Seen {
		return nil
	}

	err = s.messages.MarkSeen(ctx, messageID, userID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return apperr.NotFound("message not found")
	}
	if err != nil {
		return storeError(err)
	}
	s.notifier.NotifyMessagesSeen(msg.SenderID, models.SeenReceipt{ByUserID: userID, MessageIDs: []string{msg.ID}, Count: 1})
	return nil
}

// UnseenCounts maps each sender to the number of their unseen messages. Zero counts are omitted.
func (s *MessageService) UnseenCounts(ctx context.Context, userID string) (map[string]int, error) {
	counts, err := s.messages.UnseenCounts(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	for id, n := range counts {
		if n == 0 {
			delete(counts, id)
		}
	}
	return counts, nil
}

func (s *MessageService) Sidebar(ctx context.Context, userID string) (Sidebar, error) {
	contacts, unseen, err := s.rank(ctx, userID)
	if err != nil {
		return Sidebar{}, err
	}
	users := make([]models.User, 0, len(contacts))
	for _, c := range contacts {
		users = append(users, c.User)
	}
	return Sidebar{Users: users, Unseen: unseen}, nil
}

// RankedContacts lists only users who have exchanged at least one message with userID.
func (s *MessageService) RankedContacts(ctx context.Context, userID string) ([]models.Contact, error) {
	contacts, _, err := s.rank(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := contacts[:0]
	for _, c := range contacts {
		if c.LastMessage != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MessageService) rank(ctx context.Context, userID string) ([]models.Contact, map[string]int, error) {
	users, err := s.users.ListUsersExcept(ctx, userID)
	if err != nil {
		return nil, nil, storeError(err)
	}
	last, err := s.messages.LastMessages(ctx, userID)
	if err != nil {
		return nil, nil, storeError(err)
	}
	unseen, err := s.UnseenCounts(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return RankContacts(users, last, unseen), unseen, nil
}

func (s *MessageService) ensureUser(ctx context.Context, userID, notFound string) error {
	_, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return apperr.NotFound(notFound)
	}
	if err != nil {
		return storeError(err)
	}
	return nil
}

func (s *MessageService) publishSent(ctx context.Context, msg models.Message, delivered bool) {
	payload := map[string]interface{}{
		"message_id":  msg.ID,
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
		"kind":        contentKind(msg),
		"delivered":   delivered,
	}
	headers := observability.BuildHeaders(observability.RequestIDFromContext(ctx), "")
	if err := observability.PublishEvent(ctx, observability.RoutingKeyMessageEvents,
		observability.NewEnvelope("message_events", "message_sent", payload), headers); err != nil {
		s.log.Warn("message event publish failed", zap.Error(err))
	}
}

func contentKind(msg models.Message) string {
	switch {
	case msg.Text != nil && msg.ImageURL != nil:
		return "text_image"
	case msg.ImageURL != nil:
		return "image"
	default:
		return "text"
	}
}
