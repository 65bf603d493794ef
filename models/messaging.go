package models

import "time"

type Conversation struct {
	ID                 string    `bson:"id" json:"id"`
	DriverID           string    `bson:"driverId" json:"driverId"`
	ExpertID           string    `bson:"expertId" json:"expertId"`
	LeadID             string    `bson:"leadId" json:"leadId,omitempty"`
	LastMessageAt      time.Time `bson:"lastMessageAt" json:"lastMessageAt"`
	LastMessagePreview string    `bson:"lastMessagePreview" json:"lastMessagePreview"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether userID is one side of the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.DriverID == userID || c.ExpertID == userID)
}

// Counterpart returns the other participant.
func (c Conversation) Counterpart(userID string) string {
	if c.DriverID == userID {
		return c.ExpertID
	}
	return c.DriverID
}

type Message struct {
	ID             string     `bson:"id" json:"id"`
	ConversationID string     `bson:"conversationId" json:"conversationId"`
	SenderID       string     `bson:"senderId" json:"senderId"`
	Body           string     `bson:"body" json:"body"`
	AttachmentURL  string     `bson:"attachmentUrl,omitempty" json:"attachmentUrl,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	ReadAt         *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
}

// Event is a real-time message published on a broadcast channel.
type Event struct {
	Channel string    `json:"channel"`
	Type    string    `json:"type"`
	Data    any       `json:"data"`
	SentAt  time.Time `json:"sentAt"`
}
