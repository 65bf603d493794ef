package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	diagnosisRepo "autodiag/database/repository/diagnosis"
	leadRepo "autodiag/database/repository/lead"
	messagingRepo "autodiag/database/repository/messaging"
	"autodiag/models"
	"autodiag/utils"
)

// ChannelAuthorizer decides whether a user may subscribe to a channel.
type ChannelAuthorizer struct {
	Conversations messagingRepo.ConversationRepository
	Diagnoses     diagnosisRepo.DiagnosisRepository
	Leads         leadRepo.LeadRepository
}

// Authorize returns nil when userID may read channel and utils.ErrForbidden
// otherwise. Missing resources are reported as forbidden too.
func (a *ChannelAuthorizer) Authorize(ctx context.Context, userID, channel string) error {
	if userID == "" {
		return utils.ErrUnauthorized
	}
	allowed, err := a.allowed(ctx, userID, channel)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return err
	}
	if !allowed {
		return fmt.Errorf("channel %s: %w", channel, utils.ErrForbidden)
	}
	return nil
}

// AuthorizeAll checks every channel and stops at the first refusal.
func (a *ChannelAuthorizer) AuthorizeAll(ctx context.Context, userID string, channels []string) error {
	if len(channels) == 0 {
		return utils.FieldError("channels", "at least one channel is required")
	}
	for _, ch := range channels {
		if err := a.Authorize(ctx, userID, ch); err != nil {
			return err
		}
	}
	return nil
}

func (a *ChannelAuthorizer) allowed(ctx context.Context, userID, channel string) (bool, error) {
	switch {
	case channel == PresenceOnline:
		return true, nil

	case strings.HasPrefix(channel, PrefixUser):
		return strings.TrimPrefix(channel, PrefixUser) == userID, nil

	case strings.HasPrefix(channel, PrefixExpert):
		return strings.TrimPrefix(channel, PrefixExpert) == userID, nil

	case strings.HasPrefix(channel, PrefixConversation):
		conv, err := a.Conversations.GetByID(ctx, strings.TrimPrefix(channel, PrefixConversation))
		if err != nil {
			return false, err
		}
		return conv.HasParticipant(userID), nil

	case strings.HasPrefix(channel, PrefixLead):
		lead, err := a.Leads.GetByID(ctx, strings.TrimPrefix(channel, PrefixLead))
		if err != nil {
			return false, err
		}
		return lead.ExpertID == userID || lead.DriverID == userID, nil

	case strings.HasPrefix(channel, PrefixDiagnosis):
		return a.diagnosisAllowed(ctx, userID, strings.TrimPrefix(channel, PrefixDiagnosis))
	}
	return false, nil
}

func (a *ChannelAuthorizer) diagnosisAllowed(ctx context.Context, userID, diagnosisID string) (bool, error) {
	d, err := a.Diagnoses.GetByID(ctx, diagnosisID)
	if err != nil {
		return false, err
	}
	if d.DriverID != "" && d.DriverID == userID {
		return true, nil
	}
	return a.Leads.ExistsForExpert(ctx, diagnosisID, userID)
}

// GuestDiagnosisChannel reports whether a guest device may follow channel.
func GuestDiagnosisChannel(d *models.Diagnosis, deviceID, channel string) bool {
	return d != nil && d.IsGuest() && d.DeviceID == deviceID && channel == DiagnosisChannel(d.ID)
}
