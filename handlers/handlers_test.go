package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"autodiag/middleware"
	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/services/diagnosis"
	"autodiag/services/payment"
	"autodiag/services/storage"
	"autodiag/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDevice = "device-12345678"

func init() {
	gin.SetMode(gin.TestMode)
	utils.Logger = zap.NewNop()
}

// signedIn stands in for JWTAuthMiddleware.
func signedIn(userID string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserID, userID)
		c.Set(middleware.CtxRole, role)
		c.Next()
	}
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.DeviceMiddleware())
	r.Use(handlers...)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// stubDiagnoses implements only the calls these tests reach.
type stubDiagnoses struct {
	diagnosis.DiagnosisService
	mu        sync.Mutex
	createErr error
	inputs    []models.DiagnosisInput
	subs      []diagnosis.Submitter
	guest     *models.Diagnosis
	exhausted bool
}

func (s *stubDiagnoses) quota() *models.QuotaSummary {
	if s.exhausted {
		return &models.QuotaSummary{TotalUsed: 3}
	}
	return &models.QuotaSummary{FreeRemaining: 1}
}

func (s *stubDiagnoses) Quota(context.Context, string) (*models.QuotaSummary, error) {
	return s.quota(), nil
}

func (s *stubDiagnoses) GuestQuota(context.Context, string) (*models.QuotaSummary, error) {
	return s.quota(), nil
}

func (s *stubDiagnoses) Create(_ context.Context, sub diagnosis.Submitter, in models.DiagnosisInput) (*models.CreatedDiagnosis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.inputs = append(s.inputs, in)
	s.subs = append(s.subs, sub)
	return &models.CreatedDiagnosis{Diagnosis: &models.Diagnosis{ID: "d1", Symptoms: in.Symptoms}}, nil
}

func (s *stubDiagnoses) GetGuest(_ context.Context, deviceID, id string) (*models.Diagnosis, error) {
	if s.guest == nil || s.guest.ID != id || s.guest.DeviceID != deviceID {
		return nil, utils.ErrNotFound
	}
	return s.guest, nil
}

type recordingStorage struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (r *recordingStorage) Upload(_ context.Context, file io.Reader, folder, resourceType string) (*storage.UploadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.ReadAll(file); err != nil {
		return nil, err
	}
	r.uploads = append(r.uploads, folder+"|"+resourceType)
	id := fmt.Sprintf("p%d", len(r.uploads))
	return &storage.UploadedFile{URL: "https://media.test/" + resourceType, PublicID: id}, nil
}

func (r *recordingStorage) Delete(_ context.Context, publicID, resourceType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, publicID+"|"+resourceType)
	return nil
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderDeviceID, testDevice)
	return req
}

func TestCreateDiagnosisJSON(t *testing.T) {
	svc := &stubDiagnoses{}
	h := NewDiagnosisHandler(svc, nil)
	r := newEngine(signedIn("driver-1", models.RoleDriver))
	r.POST("/diagnoses", h.Create)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/diagnoses", `{"symptoms":"squealing brakes","latitude":-1.28,"longitude":36.82}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, svc.inputs, 1)
	assert.Equal(t, "squealing brakes", svc.inputs[0].Symptoms)
	require.NotNil(t, svc.inputs[0].Latitude)
	assert.Equal(t, "driver-1", svc.subs[0].UserID)
	assert.Equal(t, testDevice, svc.subs[0].Device.DeviceID)
}

func TestCreateDiagnosisErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"quota", utils.ErrQuotaExceeded, `{"symptoms":"x"}`, http.StatusPaymentRequired, "quota_exceeded"},
		{"validation", utils.FieldError("symptoms", "is required"), `{}`, http.StatusUnprocessableEntity, "validation_failed"},
		{"malformed", nil, `{"symptoms":`, http.StatusUnprocessableEntity, "validation_failed"},
		{"internal", assert.AnError, `{"symptoms":"x"}`, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDiagnosisHandler(&stubDiagnoses{createErr: tt.err}, nil)
			r := newEngine()
			r.POST("/guest/diagnoses", h.CreateGuest)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonRequest(http.MethodPost, "/guest/diagnoses", tt.body))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error)
		})
	}
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, names := range files {
		for _, name := range names {
			fw, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = fw.Write([]byte("fake media"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/guest/diagnoses", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.HeaderDeviceID, testDevice)
	return req
}

func TestCreateDiagnosisMultipartUploadsMedia(t *testing.T) {
	svc := &stubDiagnoses{}
	store := &recordingStorage{}
	h := NewDiagnosisHandler(svc, store)
	r := newEngine()
	r.POST("/guest/diagnoses", h.CreateGuest)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t,
		map[string]string{"symptoms": "knocking", "latitude": "-1.3", "longitude": "36.8"},
		map[string][]string{"images": {"a.jpg", "b.png"}, "voice": {"note.m4a"}}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, svc.inputs, 1)
	in := svc.inputs[0]
	assert.True(t, svc.subs[0].IsGuest())
	assert.Equal(t, "knocking", in.Symptoms)
	assert.Len(t, in.ImageURLs, 2)
	assert.Equal(t, "https://media.test/video", in.VoiceURL)
	assert.ElementsMatch(t, []string{
		storage.FolderDiagnosisImages + "|image",
		storage.FolderDiagnosisImages + "|image",
		storage.FolderDiagnosisVoice + "|video",
	}, store.uploads)
}

func TestCreateDiagnosisMultipartRejectsBadMedia(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]string
		field  string
	}{
		{"image type", nil, map[string][]string{"images": {"a.gif"}}, "images[0]"},
		{"too many images", nil, map[string][]string{"images": {"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"}}, "images"},
		{"two voice notes", nil, map[string][]string{"voice": {"a.mp3", "b.mp3"}}, "voice"},
		{"voice type", nil, map[string][]string{"voice": {"a.txt"}}, "voice"},
		{"latitude", map[string]string{"latitude": "north"}, nil, "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStorage{}
			svc := &stubDiagnoses{}
			h := NewDiagnosisHandler(svc, store)
			r := newEngine()
			r.POST("/guest/diagnoses", h.CreateGuest)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, tt.fields, tt.files))
			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Contains(t, decode(t, w).Fields, tt.field)
			assert.Empty(t, store.uploads, "nothing is stored when validation fails")
			assert.Empty(t, svc.inputs)
		})
	}
}

func TestCreateDiagnosisMultipartChecksQuotaBeforeUpload(t *testing.T) {
	store := &recordingStorage{}
	svc := &stubDiagnoses{exhausted: true}
	h := NewDiagnosisHandler(svc, store)
	r := newEngine()
	r.POST("/guest/diagnoses", h.CreateGuest)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, map[string]string{"symptoms": "rattle"}, map[string][]string{"images": {"a.jpg"}}))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "quota_exceeded", decode(t, w).Error)
	assert.Empty(t, store.uploads)
	assert.Empty(t, svc.inputs)
}

func TestCreateDiagnosisMultipartDiscardsUploadsOnFailure(t *testing.T) {
	store := &recordingStorage{}
	svc := &stubDiagnoses{createErr: fmt.Errorf("raced: %w", utils.ErrQuotaExceeded)}
	h := NewDiagnosisHandler(svc, store)
	r := newEngine()
	r.POST("/guest/diagnoses", h.CreateGuest)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t,
		map[string]string{"symptoms": "rattle"},
		map[string][]string{"images": {"a.jpg"}, "voice": {"note.m4a"}}))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Len(t, store.uploads, 2)
	assert.ElementsMatch(t, []string{"p1|image", "p2|video"}, store.deletes)
}

type stubAuthorizer struct{ err error }

func (s stubAuthorizer) AuthorizeAll(context.Context, string, []string) error { return s.err }

// streamRecorder adds the CloseNotify support gin's Stream requires.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamRejectsUnauthorizedChannels(t *testing.T) {
	b := broadcast.NewMemoryBroadcaster()
	h := NewRealtimeHandler(b, stubAuthorizer{err: utils.ErrForbidden}, &stubDiagnoses{})
	r := newEngine(signedIn("driver-1", models.RoleDriver))
	r.GET("/realtime/stream", h.Stream)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/realtime/stream?channels="+broadcast.ExpertChannel("someone"), nil)
	req.Header.Set(middleware.HeaderDeviceID, testDevice)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, b.Sent(broadcast.PresenceOnline), "no presence for refused streams")
}

func TestStreamDeliversEvents(t *testing.T) {
	b := broadcast.NewMemoryBroadcaster()
	h := NewRealtimeHandler(b, stubAuthorizer{}, &stubDiagnoses{})
	h.Heartbeat = time.Hour
	r := newEngine(signedIn("driver-1", models.RoleDriver))
	r.GET("/realtime/stream", h.Stream)

	channel := broadcast.UserChannel("driver-1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/realtime/stream?channels="+channel, nil).WithContext(ctx)
	req.Header.Set(middleware.HeaderDeviceID, testDevice)
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}

	go func() {
		defer cancel()
		deadline := time.Now().Add(2 * time.Second)
		for len(b.Sent(broadcast.PresenceOnline)) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		// The subscription opens right after presence is recorded.
		for i := 0; i < 10; i++ {
			_ = b.Publish(context.Background(), channel, broadcast.EventLeadCreated, map[string]string{"leadId": "l1"})
			time.Sleep(10 * time.Millisecond)
		}
	}()
	r.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:ready")
	assert.Contains(t, body, "event:"+broadcast.EventLeadCreated)
	assert.Contains(t, body, "l1")

	online, err := b.Online(context.Background())
	require.NoError(t, err)
	assert.Empty(t, online, "presence is released when the stream ends")
}

func TestGuestStreamChecksOwnership(t *testing.T) {
	guestDiag := &models.Diagnosis{ID: "d1", DeviceID: testDevice}
	h := NewRealtimeHandler(broadcast.NewMemoryBroadcaster(), stubAuthorizer{}, &stubDiagnoses{guest: guestDiag})
	r := newEngine()
	r.GET("/guest/realtime/stream", h.GuestStream)

	for path, status := range map[string]int{
		"/guest/realtime/stream":                  http.StatusUnprocessableEntity,
		"/guest/realtime/stream?diagnosisId=other": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(middleware.HeaderDeviceID, testDevice)
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, path)
	}
}

type stubPayments struct {
	payment.PaymentService
	payload   []byte
	signature string
	err       error
}

func (s *stubPayments) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	s.payload, s.signature = payload, signature
	return s.err
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	svc := &stubPayments{}
	h := NewPaymentHandler(svc)
	r := gin.New()
	r.POST("/payments/webhook", h.Webhook)

	body := `{"id":"evt_1","type":"payment_intent.succeeded"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, string(svc.payload))
	assert.Equal(t, "t=1,v1=abc", svc.signature)

	svc.err = fmt.Errorf("%w: %w", payment.ErrInvalidSignature, utils.ErrUnauthorized)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
