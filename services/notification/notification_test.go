package notification

import (
	"context"
	"testing"

	"autodiag/database/repository/memory"
	"autodiag/models"
	"autodiag/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	utils.Logger = zap.NewNop()
}

type fakeSender struct {
	sent []*messaging.Message
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "msg-1", nil
}

func TestSendSkipsUsersWithoutToken(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepo()
	settings := models.DefaultSettings()
	require.NoError(t, users.Create(ctx, &models.User{ID: "u1", Role: models.RoleExpert, Email: "a@x.io", PhoneNumber: "1", Settings: settings}))
	require.NoError(t, users.Create(ctx, &models.User{ID: "u2", Role: models.RoleExpert, Email: "b@x.io", PhoneNumber: "2", Settings: settings, FCMToken: "tok"}))

	sender := &fakeSender{}
	svc, err := NewDefaultNotificationService(users, sender)
	require.NoError(t, err)

	require.NoError(t, svc.Send(ctx, models.PushPayload{UserID: "u1", Title: "New lead"}))
	require.NoError(t, svc.Send(ctx, models.PushPayload{UserID: "missing", Title: "New lead"}))
	require.NoError(t, svc.Send(ctx, models.PushPayload{UserID: "u2", Title: "New lead", Data: map[string]string{"leadId": "l1"}}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "tok", sender.sent[0].Token)
	assert.Equal(t, "expert", sender.sent[0].Data["role"])
	assert.Equal(t, "l1", sender.sent[0].Data["leadId"])
}

func TestSendHonoursPushSetting(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepo()
	settings := models.DefaultSettings()
	settings.PushEnabled = false
	require.NoError(t, users.Create(ctx, &models.User{ID: "u1", Role: models.RoleDriver, Email: "a@x.io", PhoneNumber: "1", Settings: settings, FCMToken: "tok"}))

	sender := &fakeSender{}
	svc, err := NewDefaultNotificationService(users, sender)
	require.NoError(t, err)
	require.NoError(t, svc.Send(ctx, models.PushPayload{UserID: "u1"}))
	assert.Empty(t, sender.sent)
}
