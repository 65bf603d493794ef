package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

// ChannelAuthorizer checks stream subscriptions.
type ChannelAuthorizer interface {
	AuthorizeAll(ctx context.Context, userID string, channels []string) error
}

// GuestDiagnoses resolves the diagnosis a guest device follows.
type GuestDiagnoses interface {
	GetGuest(ctx context.Context, deviceID, id string) (*models.Diagnosis, error)
}

type RealtimeHandler struct {
	Broadcaster broadcast.Broadcaster
	Authorizer  ChannelAuthorizer
	Guests      GuestDiagnoses
	Heartbeat   time.Duration
}

func NewRealtimeHandler(b broadcast.Broadcaster, auth ChannelAuthorizer, guests GuestDiagnoses) *RealtimeHandler {
	return &RealtimeHandler{Broadcaster: b, Authorizer: auth, Guests: guests, Heartbeat: heartbeatInterval}
}

// Stream serves GET /realtime/stream?channels=a,b as server-sent events.
// Every channel is authorized before anything is streamed.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	userID := middleware.UserID(c)
	channels := broadcast.ParseChannels(c.Query("channels"))
	if err := h.Authorizer.AuthorizeAll(c.Request.Context(), userID, channels); err != nil {
		utils.RespondError(c, err)
		return
	}

	if err := h.Broadcaster.Join(c.Request.Context(), userID); err != nil {
		getLogger(c).Warn("presence join failed", zap.Error(err))
	}
	defer func() {
		// The request context is already done here.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.Broadcaster.Leave(ctx, userID); err != nil {
			utils.GetLogger().Warn("presence leave failed", zap.String("userId", userID), zap.Error(err))
		}
	}()

	h.stream(c, channels)
}

// GuestStream serves GET /guest/realtime/stream?diagnosisId=... for the
// device that submitted the diagnosis.
func (h *RealtimeHandler) GuestStream(c *gin.Context) {
	deviceID := middleware.Device(c).DeviceID
	id := c.Query("diagnosisId")
	if id == "" {
		utils.RespondError(c, utils.FieldError("diagnosisId", "is required"))
		return
	}
	d, err := h.Guests.GetGuest(c.Request.Context(), deviceID, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	channel := broadcast.DiagnosisChannel(d.ID)
	if !broadcast.GuestDiagnosisChannel(d, deviceID, channel) {
		utils.RespondError(c, fmt.Errorf("channel %s: %w", channel, utils.ErrForbidden))
		return
	}
	h.stream(c, []string{channel})
}

func (h *RealtimeHandler) stream(c *gin.Context, channels []string) {
	ctx := c.Request.Context()
	sub, err := h.Broadcaster.Subscribe(ctx, channels...)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	defer sub.Close()

	every := h.Heartbeat
	if every <= 0 {
		every = heartbeatInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"channels": channels})
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case t := <-ticker.C:
			c.SSEvent("ping", t.UTC().Unix())
			return true
		}
	})
}
