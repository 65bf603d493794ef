package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autodiag/models"
	"autodiag/utils"
)

type ConversationRepo struct {
	mu    sync.Mutex
	convs map[string]models.Conversation
}

func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{convs: make(map[string]models.Conversation)}
}

func (r *ConversationRepo) FindOrCreate(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.DriverID == conv.DriverID && c.ExpertID == conv.ExpertID && c.LeadID == conv.LeadID {
			return &c, nil
		}
	}
	r.convs[conv.ID] = *conv
	out := *conv
	return &out, nil
}

func (r *ConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, utils.ErrNotFound)
	}
	return &c, nil
}

func (r *ConversationRepo) ListByUser(_ context.Context, userID string, page models.PageRequest) ([]models.Conversation, error) {
	r.mu.Lock()
	var out []models.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return paginate(out, page), nil
}

func (r *ConversationRepo) Touch(_ context.Context, id, preview string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, utils.ErrNotFound)
	}
	c.LastMessageAt = at
	c.LastMessagePreview = preview
	r.convs[id] = c
	return nil
}

type MessageRepo struct {
	mu       sync.Mutex
	messages []models.Message
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{}
}

func (r *MessageRepo) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *MessageRepo) List(_ context.Context, conversationID string, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	r.mu.Lock()
	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID && (before.IsZero() || m.CreatedAt.Before(before)) {
			out = append(out, m)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MessageRepo) MarkRead(_ context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i, m := range r.messages {
		if m.ConversationID == conversationID && m.SenderID != readerID && m.ReadAt == nil {
			stamp := at
			r.messages[i].ReadAt = &stamp
			n++
		}
	}
	return n, nil
}
