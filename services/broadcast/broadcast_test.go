package broadcast

import (
	"context"
	"os"
	"testing"
	"time"

	"autodiag/database/repository/memory"
	"autodiag/models"
	"autodiag/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseChannels(t *testing.T) {
	got := ParseChannels(" private-user.u1, ,presence-online,private-user.u1")
	assert.Equal(t, []string{"private-user.u1", "presence-online"}, got)
}

func TestMemoryBroadcasterDeliversToMatchingSubscribers(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroadcaster()

	sub, err := b.Subscribe(ctx, UserChannel("u1"))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, UserChannel("u2"), EventLeadUpdated, nil))
	require.NoError(t, b.Publish(ctx, UserChannel("u1"), EventDiagnosisCreated, map[string]string{"id": "d1"}))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventDiagnosisCreated, ev.Type)
		assert.Equal(t, UserChannel("u1"), ev.Channel)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	assert.Len(t, b.Sent(""), 2)
}

// checkPresence runs the same stream counting against any Presence.
func checkPresence(t *testing.T, p Presence) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.Join(ctx, "u1"))
	require.NoError(t, p.Join(ctx, "u1"))
	require.NoError(t, p.Join(ctx, "u2"))
	require.NoError(t, p.Leave(ctx, "u1"))

	online, err := p.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, online, "u1 still has a stream open")

	require.NoError(t, p.Leave(ctx, "u1"))
	online, err = p.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, online)

	require.NoError(t, p.Leave(ctx, "u2"))
	require.NoError(t, p.Leave(ctx, "u2"), "a late leave does not go negative")
	require.NoError(t, p.Join(ctx, "u2"))
	online, err = p.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, online)
}

func TestMemoryPresence(t *testing.T) {
	checkPresence(t, NewMemoryBroadcaster())
}

// TestRedisPresence needs a disposable Redis at REDIS_TEST_ADDR.
func TestRedisPresence(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	b := NewRedisBroadcaster(client)
	b.presenceKey = "test:presence:" + uuid.New().String()
	defer client.Del(context.Background(), b.presenceKey)

	checkPresence(t, b)
}

func newAuthorizer(t *testing.T) *ChannelAuthorizer {
	t.Helper()
	ctx := context.Background()
	convs := memory.NewConversationRepo()
	diags := memory.NewDiagnosisRepo()
	leads := memory.NewLeadRepo()

	_, err := convs.FindOrCreate(ctx, &models.Conversation{ID: "c1", DriverID: "driver", ExpertID: "expert"})
	require.NoError(t, err)
	require.NoError(t, diags.Create(ctx, &models.Diagnosis{ID: "d1", DriverID: "driver", Status: models.DiagnosisPending}))
	require.NoError(t, leads.Create(ctx, &models.Lead{ID: "l1", DiagnosisID: "d1", ExpertID: "expert", DriverID: "driver", Status: models.LeadNew}))

	return &ChannelAuthorizer{Conversations: convs, Diagnoses: diags, Leads: leads}
}

func TestChannelAuthorizer(t *testing.T) {
	a := newAuthorizer(t)
	ctx := context.Background()

	cases := []struct {
		user    string
		channel string
		allowed bool
	}{
		{"driver", UserChannel("driver"), true},
		{"driver", UserChannel("expert"), false},
		{"expert", ExpertChannel("expert"), true},
		{"driver", ExpertChannel("expert"), false},
		{"driver", ConversationChannel("c1"), true},
		{"expert", ConversationChannel("c1"), true},
		{"stranger", ConversationChannel("c1"), false},
		{"driver", ConversationChannel("missing"), false},
		{"driver", DiagnosisChannel("d1"), true},
		{"expert", DiagnosisChannel("d1"), true},
		{"stranger", DiagnosisChannel("d1"), false},
		{"expert", LeadChannel("l1"), true},
		{"driver", LeadChannel("l1"), true},
		{"stranger", LeadChannel("l1"), false},
		{"stranger", PresenceOnline, true},
		{"driver", "private-unknown.x", false},
	}
	for _, tc := range cases {
		err := a.Authorize(ctx, tc.user, tc.channel)
		if tc.allowed {
			assert.NoError(t, err, "%s on %s", tc.user, tc.channel)
		} else {
			assert.ErrorIs(t, err, utils.ErrForbidden, "%s on %s", tc.user, tc.channel)
		}
	}
}

func TestAuthorizeAllFailsOnAnyChannel(t *testing.T) {
	a := newAuthorizer(t)
	err := a.AuthorizeAll(context.Background(), "driver", []string{UserChannel("driver"), ExpertChannel("expert")})
	assert.ErrorIs(t, err, utils.ErrForbidden)

	var verr *utils.ValidationError
	assert.ErrorAs(t, a.AuthorizeAll(context.Background(), "driver", nil), &verr)
}
