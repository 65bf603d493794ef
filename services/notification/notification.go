package notification

import (
	"context"
	"errors"
	"fmt"

	userRepo "autodiag/database/repository/user"
	"autodiag/models"
	"autodiag/utils"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// NotificationService sends FCM pushes to users.
type NotificationService interface {
	// Send delivers payload to its user. Users without an FCM token, or with
	// push disabled in settings, are skipped without error.
	Send(ctx context.Context, payload models.PushPayload) error
}

// MessageSender is the subset of *messaging.Client used here.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// NewFCMClient initializes the Firebase app and returns its messaging client.
func NewFCMClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: error initializing app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: error getting Messaging client: %w", err)
	}
	return client, nil
}

type DefaultNotificationService struct {
	Users  userRepo.UserRepository
	Sender MessageSender
}

func NewDefaultNotificationService(users userRepo.UserRepository, sender MessageSender) (*DefaultNotificationService, error) {
	if users == nil {
		return nil, errors.New("notification service initialization error: user repository is nil")
	}
	return &DefaultNotificationService{Users: users, Sender: sender}, nil
}

func (s *DefaultNotificationService) Send(ctx context.Context, payload models.PushPayload) error {
	logger := utils.GetLogger().With(zap.String("userId", payload.UserID), zap.String("title", payload.Title))
	if s.Sender == nil {
		logger.Debug("push disabled, no FCM client configured")
		return nil
	}

	u, err := s.Users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			logger.Warn("push target no longer exists")
			return nil
		}
		return fmt.Errorf("load push target: %w", err)
	}
	if u.FCMToken == "" || !u.Settings.PushEnabled {
		logger.Debug("skipping push, no token or push disabled")
		return nil
	}

	data := make(map[string]string, len(payload.Data)+1)
	for k, v := range payload.Data {
		data[k] = v
	}
	if _, ok := data["role"]; !ok {
		data["role"] = string(u.Role)
	}

	msg := &messaging.Message{
		Token: u.FCMToken,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := s.Sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	logger.Info("push sent", zap.String("messageId", id))
	return nil
}
