package lead

import (
	"context"
	"errors"
	"fmt"
	"time"

	diagnosisRepo "autodiag/database/repository/diagnosis"
	leadRepo "autodiag/database/repository/lead"
	messagingRepo "autodiag/database/repository/messaging"
	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const expireBatchSize = 200

// ContactResult is the lead after contact plus the conversation opened with
// the driver. Conversation is nil for guest diagnoses.
type ContactResult struct {
	Lead         *models.Lead         `json:"lead"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// LeadService covers the expert side of the lead lifecycle.
type LeadService interface {
	List(ctx context.Context, expertID string, status models.LeadStatus, page models.PageRequest) ([]models.Lead, error)
	// Get returns the lead with its diagnosis and marks a new lead viewed.
	Get(ctx context.Context, expertID, id string) (*models.LeadDetail, error)
	Contact(ctx context.Context, expertID, id string) (*ContactResult, error)
	Convert(ctx context.Context, expertID, id string) (*models.Lead, error)
	Close(ctx context.Context, expertID, id string) (*models.Lead, error)
	// ExpireStale expires untouched leads older than the TTL and returns how many moved.
	ExpireStale(ctx context.Context) (int, error)
}

type DefaultLeadService struct {
	Leads         leadRepo.LeadRepository
	Diagnoses     diagnosisRepo.DiagnosisRepository
	Conversations messagingRepo.ConversationRepository
	Events        broadcast.Publisher
	TTL           time.Duration
	Now           func() time.Time
}

var _ LeadService = (*DefaultLeadService)(nil)

func (s *DefaultLeadService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *DefaultLeadService) ttl() time.Duration {
	if s.TTL <= 0 {
		return 72 * time.Hour
	}
	return s.TTL
}

func (s *DefaultLeadService) List(ctx context.Context, expertID string, status models.LeadStatus, page models.PageRequest) ([]models.Lead, error) {
	if status != "" && !status.Valid() {
		return nil, utils.FieldError("status", "unknown lead status")
	}
	return s.Leads.List(ctx, models.LeadFilter{ExpertID: expertID, Status: status}, page)
}

// own loads a lead held by expertID; other experts' leads look missing.
func (s *DefaultLeadService) own(ctx context.Context, expertID, id string) (*models.Lead, error) {
	l, err := s.Leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.ExpertID != expertID {
		return nil, fmt.Errorf("lead %s: %w", id, utils.ErrNotFound)
	}
	return l, nil
}

func (s *DefaultLeadService) Get(ctx context.Context, expertID, id string) (*models.LeadDetail, error) {
	l, err := s.own(ctx, expertID, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LeadNew {
		viewed, err := s.transition(ctx, l, models.LeadViewed)
		switch {
		case err == nil:
			l = viewed
		case errors.Is(err, utils.ErrInvalidTransition):
			// Moved on concurrently; show what is stored now.
			if l, err = s.Leads.GetByID(ctx, id); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	detail := &models.LeadDetail{Lead: *l}
	d, err := s.Diagnoses.GetByID(ctx, l.DiagnosisID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}
	detail.Diagnosis = d
	return detail, nil
}

func (s *DefaultLeadService) Contact(ctx context.Context, expertID, id string) (*ContactResult, error) {
	l, err := s.own(ctx, expertID, id)
	if err != nil {
		return nil, err
	}
	// Contacting again reopens the same conversation.
	if l.Status != models.LeadContacted {
		if l, err = s.transition(ctx, l, models.LeadContacted); err != nil {
			return nil, err
		}
	}

	out := &ContactResult{Lead: l}
	if l.DriverID == "" {
		return out, nil
	}
	now := s.now()
	conv, err := s.Conversations.FindOrCreate(ctx, &models.Conversation{
		ID:            uuid.New().String(),
		DriverID:      l.DriverID,
		ExpertID:      l.ExpertID,
		LeadID:        l.ID,
		LastMessageAt: now,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	out.Conversation = conv
	return out, nil
}

func (s *DefaultLeadService) Convert(ctx context.Context, expertID, id string) (*models.Lead, error) {
	l, err := s.own(ctx, expertID, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, l, models.LeadConverted)
}

func (s *DefaultLeadService) Close(ctx context.Context, expertID, id string) (*models.Lead, error) {
	l, err := s.own(ctx, expertID, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, l, models.LeadClosed)
}

func (s *DefaultLeadService) ExpireStale(ctx context.Context) (int, error) {
	logger := utils.GetLogger()
	cutoff := s.now().Add(-s.ttl())
	expired := 0
	for {
		stale, err := s.Leads.ListStale(ctx, cutoff, expireBatchSize)
		if err != nil {
			return expired, err
		}
		moved := 0
		for i := range stale {
			if _, err := s.transition(ctx, &stale[i], models.LeadExpired); err != nil {
				if errors.Is(err, utils.ErrInvalidTransition) {
					continue
				}
				return expired, err
			}
			moved++
		}
		expired += moved
		// A short batch means the backlog is drained; a batch where nothing
		// moved would loop forever on the same rows.
		if len(stale) < expireBatchSize || moved == 0 {
			break
		}
	}
	if expired > 0 {
		logger.Info("expired stale leads", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

func (s *DefaultLeadService) transition(ctx context.Context, l *models.Lead, to models.LeadStatus) (*models.Lead, error) {
	updated, err := s.Leads.Transition(ctx, l.ID, to, s.now())
	if err != nil {
		return nil, err
	}
	logger := utils.GetLogger()
	broadcast.Emit(ctx, s.Events, logger, broadcast.LeadChannel(updated.ID), broadcast.EventLeadUpdated, updated)
	if updated.DriverID != "" {
		broadcast.Emit(ctx, s.Events, logger, broadcast.UserChannel(updated.DriverID), broadcast.EventLeadUpdated, updated)
	}
	return updated, nil
}
