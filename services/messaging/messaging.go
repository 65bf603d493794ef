package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	leadRepo "autodiag/database/repository/lead"
	messagingRepo "autodiag/database/repository/messaging"
	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxBodyLength  = 4000
	previewLength  = 120
	defaultPageLen = 50
)

type SendRequest struct {
	Body          string `json:"body" binding:"required_without=AttachmentURL"`
	AttachmentURL string `json:"attachmentUrl" binding:"omitempty,url"`
}

type ReadReceipt struct {
	ConversationID string    `json:"conversationId"`
	ReaderID       string    `json:"readerId"`
	ReadAt         time.Time `json:"readAt"`
	Count          int64     `json:"count"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// OpenRequest names the other side of a conversation. Drivers pass the
// expert, experts pass the driver.
type OpenRequest struct {
	CounterpartID string `json:"counterpartId" binding:"required"`
}

// MessagingService covers driver/expert conversations. Every call is scoped to
// a participant; other callers see ErrNotFound.
type MessagingService interface {
	ListConversations(ctx context.Context, userID string, page models.PageRequest) ([]models.Conversation, error)
	Open(ctx context.Context, userID string, role models.Role, req OpenRequest) (*models.Conversation, error)
	ListMessages(ctx context.Context, userID, conversationID string, before time.Time, limit int) ([]models.Message, error)
	Send(ctx context.Context, userID, conversationID string, req SendRequest) (*models.Message, error)
	MarkRead(ctx context.Context, userID, conversationID string) (int64, error)
	// Typing is broadcast to the conversation only, nothing is stored.
	Typing(ctx context.Context, userID, conversationID string) error
}

type DefaultMessagingService struct {
	Conversations messagingRepo.ConversationRepository
	Messages      messagingRepo.MessageRepository
	Leads         leadRepo.LeadRepository
	Events        broadcast.Publisher
	Now           func() time.Time
}

var _ MessagingService = (*DefaultMessagingService)(nil)

func (s *DefaultMessagingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DefaultMessagingService) participant(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := s.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, utils.ErrNotFound)
	}
	return conv, nil
}

func (s *DefaultMessagingService) ListConversations(ctx context.Context, userID string, page models.PageRequest) ([]models.Conversation, error) {
	return s.Conversations.ListByUser(ctx, userID, page)
}

func (s *DefaultMessagingService) Open(ctx context.Context, userID string, role models.Role, req OpenRequest) (*models.Conversation, error) {
	other := strings.TrimSpace(req.CounterpartID)
	if other == userID {
		return nil, utils.FieldError("counterpartId", "cannot open a conversation with yourself")
	}

	var driverID, expertID string
	switch role {
	case models.RoleDriver:
		driverID, expertID = userID, other
	case models.RoleExpert:
		driverID, expertID = other, userID
	default:
		return nil, fmt.Errorf("role %q cannot open conversations: %w", role, utils.ErrForbidden)
	}

	lead, err := s.Leads.SharedLead(ctx, driverID, expertID)
	if err != nil {
		return nil, fmt.Errorf("no lead links these users: %w", utils.ErrForbidden)
	}

	now := s.now()
	return s.Conversations.FindOrCreate(ctx, &models.Conversation{
		ID:            uuid.New().String(),
		DriverID:      driverID,
		ExpertID:      expertID,
		LeadID:        lead.ID,
		LastMessageAt: now,
		CreatedAt:     now,
	})
}

func (s *DefaultMessagingService) ListMessages(ctx context.Context, userID, conversationID string, before time.Time, limit int) ([]models.Message, error) {
	if _, err := s.participant(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageLen
	}
	return s.Messages.List(ctx, conversationID, before, limit)
}

func (s *DefaultMessagingService) Send(ctx context.Context, userID, conversationID string, req SendRequest) (*models.Message, error) {
	body := strings.TrimSpace(req.Body)
	attachment := strings.TrimSpace(req.AttachmentURL)
	switch {
	case body == "" && attachment == "":
		return nil, utils.FieldError("body", "message needs a body or an attachment")
	case utf8.RuneCountInString(body) > maxBodyLength:
		return nil, utils.FieldError("body", fmt.Sprintf("must be at most %d characters", maxBodyLength))
	}

	conv, err := s.participant(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       userID,
		Body:           body,
		AttachmentURL:  attachment,
		CreatedAt:      s.now(),
	}
	if err := s.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	logger := utils.GetLogger()
	if err := s.Conversations.Touch(ctx, conv.ID, preview(msg), msg.CreatedAt); err != nil {
		logger.Warn("failed to update conversation preview", zap.String("conversationId", conv.ID), zap.Error(err))
	}
	broadcast.Emit(ctx, s.Events, logger, broadcast.ConversationChannel(conv.ID), broadcast.EventMessageCreated, msg)
	broadcast.Emit(ctx, s.Events, logger, broadcast.UserChannel(conv.Counterpart(userID)), broadcast.EventMessageCreated, msg)
	return msg, nil
}

func (s *DefaultMessagingService) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	conv, err := s.participant(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	at := s.now()
	n, err := s.Messages.MarkRead(ctx, conv.ID, userID, at)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		broadcast.Emit(ctx, s.Events, utils.GetLogger(), broadcast.ConversationChannel(conv.ID), broadcast.EventMessagesRead, ReadReceipt{
			ConversationID: conv.ID,
			ReaderID:       userID,
			ReadAt:         at,
			Count:          n,
		})
	}
	return n, nil
}

func (s *DefaultMessagingService) Typing(ctx context.Context, userID, conversationID string) error {
	conv, err := s.participant(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if s.Events == nil {
		return nil
	}
	return s.Events.Publish(ctx, broadcast.ConversationChannel(conv.ID), broadcast.EventTyping, TypingEvent{
		ConversationID: conv.ID,
		UserID:         userID,
	})
}

func preview(m *models.Message) string {
	if m.Body == "" {
		return "Attachment"
	}
	if utf8.RuneCountInString(m.Body) <= previewLength {
		return m.Body
	}
	return string([]rune(m.Body)[:previewLength]) + "…"
}
