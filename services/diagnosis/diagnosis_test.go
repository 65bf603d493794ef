package diagnosis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autodiag/database/repository/memory"
	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/services/expert"
	"autodiag/services/intelligence"
	"autodiag/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	utils.Logger = zap.NewNop()
	goleak.VerifyTestMain(m)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	analyzed []string
	pushes   []models.PushPayload
}

func (r *recordingDispatcher) AnalyzeDiagnosis(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzed = append(r.analyzed, id)
	return nil
}

func (r *recordingDispatcher) SendPush(_ context.Context, p models.PushPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, p)
	return nil
}

type fixture struct {
	svc       *DefaultDiagnosisService
	drivers   *memory.DriverRepo
	experts   *memory.ExpertRepo
	devices   *memory.DeviceRepo
	diagnoses *memory.DiagnosisRepo
	leads     *memory.LeadRepo
	events    *broadcast.MemoryBroadcaster
	tasks     *recordingDispatcher
}

// Nairobi CBD.
var cbd = struct{ lat, lng float64 }{-1.2864, 36.8172}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		drivers:   memory.NewDriverRepo(),
		experts:   memory.NewExpertRepo(),
		devices:   memory.NewDeviceRepo(),
		diagnoses: memory.NewDiagnosisRepo(),
		leads:     memory.NewLeadRepo(),
		events:    broadcast.NewMemoryBroadcaster(),
		tasks:     &recordingDispatcher{},
	}
	users := memory.NewUserRepo()
	f.svc = &DefaultDiagnosisService{
		Diagnoses: f.diagnoses,
		LeadRepo:  f.leads,
		Drivers:   f.drivers,
		Experts:   f.experts,
		Devices:   f.devices,
		Vehicles:  memory.NewVehicleRepo(),
		Users:     users,
		Matcher:   expert.NewDefaultExpertService(f.experts, users, 25),
		Tx:        memory.Tx{},
		Tasks:     f.tasks,
		Events:    f.events,
		Config:    Config{GuestFreeDiagnoses: 1, MaxLeadsPerDiagnosis: 3},
	}
	return f
}

func (f *fixture) addDriver(t *testing.T, id string, free, paid int) {
	t.Helper()
	require.NoError(t, f.drivers.Create(context.Background(), &models.DriverProfile{
		UserID: id, FreeDiagnosesRemaining: free, PaidDiagnosesRemaining: paid, Region: "nairobi",
	}))
}

func (f *fixture) addExpert(t *testing.T, id string, freeLeads int, lat, lng float64) {
	t.Helper()
	require.NoError(t, f.experts.Create(context.Background(), &models.ExpertProfile{
		UserID:             id,
		Specializations:    []string{"brakes"},
		Region:             "nairobi",
		LocationGeo:        models.NewGeoPoint(lat, lng),
		Available:          true,
		FreeLeadsRemaining: freeLeads,
	}))
}

func located(symptoms string) models.DiagnosisInput {
	lat, lng := cbd.lat, cbd.lng
	return models.DiagnosisInput{Symptoms: symptoms, Latitude: &lat, Longitude: &lng}
}

func TestCreateUsesFreeBeforePaid(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 1, 1)
	ctx := context.Background()
	sub := Submitter{UserID: "d1"}

	first, err := f.svc.Create(ctx, sub, located("brakes squeal"))
	require.NoError(t, err)
	assert.Equal(t, models.QuotaFree, first.Diagnosis.QuotaSource)
	assert.Equal(t, models.DiagnosisPending, first.Diagnosis.Status)
	assert.Equal(t, "text", first.Diagnosis.InputType)
	assert.Equal(t, "nairobi", first.Diagnosis.Region, "region falls back to the driver profile")

	second, err := f.svc.Create(ctx, sub, located("still squealing"))
	require.NoError(t, err)
	assert.Equal(t, models.QuotaPaid, second.Diagnosis.QuotaSource)

	q, err := f.svc.Quota(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.QuotaSummary{FreeRemaining: 0, PaidRemaining: 0, TotalUsed: 2}, *q)
	assert.Equal(t, []string{first.Diagnosis.ID, second.Diagnosis.ID}, f.tasks.analyzed)
}

func TestCreateWithoutQuotaStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 0, 0)
	f.addExpert(t, "e1", 5, cbd.lat, cbd.lng)

	_, err := f.svc.Create(context.Background(), Submitter{UserID: "d1"}, located("engine knock"))
	require.ErrorIs(t, err, utils.ErrQuotaExceeded)
	status, code := utils.StatusFor(err)
	assert.Equal(t, 402, status)
	assert.Equal(t, "quota_exceeded", code)

	assert.Equal(t, 0, f.diagnoses.Count())
	e, err := f.experts.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 5, e.FreeLeadsRemaining)
	assert.Empty(t, f.tasks.analyzed)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 3, 0)
	lat := 10.0

	_, err := f.svc.Create(context.Background(), Submitter{UserID: "d1"}, models.DiagnosisInput{Latitude: &lat})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "symptoms")
	assert.Contains(t, verr.Fields, "location")

	_, err = f.svc.Create(context.Background(), Submitter{UserID: "d1"}, models.DiagnosisInput{Symptoms: "x", VehicleID: "nope"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "vehicleId")

	q, err := f.svc.Quota(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, q.FreeRemaining, "rejected input consumes no quota")
}

func TestLeadsUseFreeAllowanceThenChargeable(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 3, 0)
	f.addExpert(t, "near", 1, -1.2921, 36.8219)
	f.addExpert(t, "mid", 0, -1.3192, 36.9278)
	f.addExpert(t, "far", 5, -0.3031, 36.0800)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, Submitter{UserID: "d1"}, located("grinding brakes"))
	require.NoError(t, err)
	require.Len(t, res.Leads, 2, "only experts within the match radius get leads")
	assert.Equal(t, "near", res.Leads[0].ExpertID)
	assert.True(t, res.Leads[0].IsFree)
	assert.Equal(t, "mid", res.Leads[1].ExpertID)
	assert.False(t, res.Leads[1].IsFree)
	require.NotNil(t, res.Leads[0].DistanceKm)

	near, _ := f.experts.Get(ctx, "near")
	mid, _ := f.experts.Get(ctx, "mid")
	assert.Equal(t, 0, near.FreeLeadsRemaining)
	assert.Equal(t, 1, near.TotalLeadsReceived)
	assert.Equal(t, 1, mid.ChargeableLeads)
	assert.Equal(t, 1, mid.TotalLeadsReceived)

	res, err = f.svc.Create(ctx, Submitter{UserID: "d1"}, located("again"))
	require.NoError(t, err)
	assert.False(t, res.Leads[0].IsFree)
	near, _ = f.experts.Get(ctx, "near")
	assert.Equal(t, 0, near.FreeLeadsRemaining)

	assert.Len(t, f.events.Sent(broadcast.ExpertChannel("near")), 2)
	assert.Len(t, f.events.Sent(broadcast.UserChannel("d1")), 2)
	assert.Len(t, f.tasks.pushes, 4)

	leads, err := f.svc.Leads(ctx, "d1", res.Diagnosis.ID)
	require.NoError(t, err)
	assert.Len(t, leads, 2)
	_, err = f.svc.Leads(ctx, "someone-else", res.Diagnosis.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestGuestQuotaAndCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guest := Submitter{Device: models.DeviceInfo{DeviceID: "device-abc-123", Platform: "android"}}

	q, err := f.svc.GuestQuota(ctx, guest.Device.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.FreeRemaining)

	res, err := f.svc.Create(ctx, guest, models.DiagnosisInput{Symptoms: "warning light"})
	require.NoError(t, err)
	assert.Equal(t, models.QuotaGuestFree, res.Diagnosis.QuotaSource)
	assert.True(t, res.Diagnosis.IsGuest())

	_, err = f.svc.Create(ctx, guest, models.DiagnosisInput{Symptoms: "warning light again"})
	require.ErrorIs(t, err, utils.ErrQuotaExceeded)

	require.NoError(t, f.devices.AddPaidCredits(ctx, guest.Device.DeviceID, 2))
	q, err = f.svc.GuestQuota(ctx, guest.Device.DeviceID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotaSummary{FreeRemaining: 0, PaidRemaining: 2, TotalUsed: 1}, *q)

	res2, err := f.svc.Create(ctx, guest, models.DiagnosisInput{Symptoms: "warning light again"})
	require.NoError(t, err)
	assert.Equal(t, models.QuotaGuestPaid, res2.Diagnosis.QuotaSource)

	got, err := f.svc.GetGuest(ctx, guest.Device.DeviceID, res.Diagnosis.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Diagnosis.ID, got.ID)
	_, err = f.svc.GetGuest(ctx, "other-device-999", res.Diagnosis.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	fp, err := f.devices.Get(ctx, guest.Device.DeviceID)
	require.NoError(t, err)
	assert.LessOrEqual(t, fp.DiagnosesUsed, 1+fp.PaidCredits)
	assert.Len(t, f.events.Sent(broadcast.DiagnosisChannel(res.Diagnosis.ID)), 1)
}

func TestConcurrentCreatesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 3, 2)
	f.addExpert(t, "e1", 2, cbd.lat, cbd.lng)

	const attempts = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		exceeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), Submitter{UserID: "d1"}, located("rattle"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, utils.ErrQuotaExceeded):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, attempts-5, exceeded)

	p, err := f.drivers.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.FreeDiagnosesRemaining, 0)
	assert.GreaterOrEqual(t, p.PaidDiagnosesRemaining, 0)
	assert.Equal(t, 5, p.TotalDiagnosesUsed)

	e, err := f.experts.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, e.FreeLeadsRemaining)
	assert.Equal(t, 5, e.TotalLeadsReceived)
	assert.Equal(t, 3, e.ChargeableLeads)
}

func TestDeleteHidesDiagnosis(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 1, 0)
	ctx := context.Background()
	res, err := f.svc.Create(ctx, Submitter{UserID: "d1"}, models.DiagnosisInput{Symptoms: "leak"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, "d2", res.Diagnosis.ID), utils.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, "d1", res.Diagnosis.ID))
	_, err = f.svc.Get(ctx, "d1", res.Diagnosis.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	list, err := f.svc.List(ctx, "d1", models.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

type fakeAnalyzer struct {
	in  intelligence.AnalysisInput
	err error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, in intelligence.AnalysisInput) (*models.DiagnosisResult, error) {
	a.in = in
	if a.err != nil {
		return nil, a.err
	}
	return &models.DiagnosisResult{Summary: "Worn pads", Urgency: models.UrgencyHigh, Confidence: 0.8}, nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(context.Context, string, string) (string, error) {
	return "it squeals when I stop", nil
}

func TestAnalyzeCompletesAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 1, 0)
	analyzer := &fakeAnalyzer{}
	f.svc.Analyzer = analyzer
	f.svc.Transcriber = fakeTranscriber{}
	ctx := context.Background()

	res, err := f.svc.Create(ctx, Submitter{UserID: "d1"}, models.DiagnosisInput{VoiceURL: "https://cdn/voice.m4a"})
	require.NoError(t, err)
	assert.Equal(t, "voice", res.Diagnosis.InputType)

	require.NoError(t, f.svc.Analyze(ctx, res.Diagnosis.ID))
	d, err := f.svc.Get(ctx, "d1", res.Diagnosis.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DiagnosisCompleted, d.Status)
	assert.Equal(t, "Worn pads", d.Result.Summary)
	assert.Equal(t, "it squeals when I stop", d.Transcript)
	assert.Equal(t, "it squeals when I stop", analyzer.in.Transcript)

	updates := f.events.Sent(broadcast.DiagnosisChannel(d.ID))
	require.Len(t, updates, 2)
	assert.Equal(t, broadcast.EventDiagnosisUpdated, updates[1].Type)
	require.NotEmpty(t, f.tasks.pushes)
	assert.Equal(t, "d1", f.tasks.pushes[len(f.tasks.pushes)-1].UserID)

	// Re-delivery of the task is a no-op.
	require.NoError(t, f.svc.Analyze(ctx, d.ID))
	assert.Len(t, f.events.Sent(broadcast.DiagnosisChannel(d.ID)), 2)
}

func TestAnalyzeErrorLeavesDiagnosisRetryable(t *testing.T) {
	f := newFixture(t)
	f.addDriver(t, "d1", 1, 0)
	f.svc.Analyzer = &fakeAnalyzer{err: errors.New("model overloaded")}
	f.svc.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	res, err := f.svc.Create(ctx, Submitter{UserID: "d1"}, models.DiagnosisInput{Symptoms: "smoke"})
	require.NoError(t, err)

	require.Error(t, f.svc.Analyze(ctx, res.Diagnosis.ID))
	d, _ := f.svc.Get(ctx, "d1", res.Diagnosis.ID)
	assert.Equal(t, models.DiagnosisProcessing, d.Status)

	require.NoError(t, f.svc.FailAnalysis(ctx, d.ID, "model overloaded"))
	d, _ = f.svc.Get(ctx, "d1", res.Diagnosis.ID)
	assert.Equal(t, models.DiagnosisFailed, d.Status)
	assert.Equal(t, "model overloaded", d.FailureReason)
}
