// Package broadcast delivers real-time events over named channels.
package broadcast

import (
	"context"
	"strings"

	"autodiag/models"

	"go.uber.org/zap"
)

const (
	PrefixUser         = "private-user."
	PrefixConversation = "private-conversation."
	PrefixExpert       = "private-expert."
	PrefixDiagnosis    = "private-diagnosis."
	PrefixLead         = "private-lead."
	PresenceOnline     = "presence-online"
)

// Event types.
const (
	EventDiagnosisCreated = "diagnosis.created"
	EventDiagnosisUpdated = "diagnosis.updated"
	EventLeadCreated      = "lead.created"
	EventLeadUpdated      = "lead.updated"
	EventMessageCreated   = "message.created"
	EventMessagesRead     = "messages.read"
	EventTyping           = "typing"
	EventPresenceJoined   = "presence.joined"
	EventPresenceLeft     = "presence.left"
)

func UserChannel(id string) string         { return PrefixUser + id }
func ConversationChannel(id string) string { return PrefixConversation + id }
func ExpertChannel(id string) string       { return PrefixExpert + id }
func DiagnosisChannel(id string) string    { return PrefixDiagnosis + id }
func LeadChannel(id string) string         { return PrefixLead + id }

// Publisher sends an event to every subscriber of channel.
type Publisher interface {
	Publish(ctx context.Context, channel, eventType string, data any) error
}

// Subscription is an open stream of events for a set of channels.
type Subscription interface {
	Events() <-chan models.Event
	Close() error
}

// Presence tracks which users currently hold an open stream.
type Presence interface {
	Join(ctx context.Context, userID string) error
	Leave(ctx context.Context, userID string) error
	Online(ctx context.Context) ([]string, error)
}

// Broadcaster is the full real-time surface used by the stream endpoint.
type Broadcaster interface {
	Publisher
	Presence
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

// Emit publishes and logs failures. Events are sent after the state change
// they describe has been committed, so a failed publish never fails the request.
func Emit(ctx context.Context, pub Publisher, logger *zap.Logger, channel, eventType string, data any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, channel, eventType, data); err != nil && logger != nil {
		logger.Warn("broadcast publish failed",
			zap.String("channel", channel),
			zap.String("event", eventType),
			zap.Error(err))
	}
}

// ParseChannels splits a comma separated channel list, dropping blanks and duplicates.
func ParseChannels(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
