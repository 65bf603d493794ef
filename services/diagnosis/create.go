package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/services/expert"
	"autodiag/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	maxSymptomsLength = 2000
	maxImages         = 4
)

func validateInput(sub Submitter, in models.DiagnosisInput) error {
	v := utils.NewValidationError()
	if in.InputType() == "" {
		v.Add("symptoms", "describe the problem, attach a voice note or add photos")
	}
	if len(in.Symptoms) > maxSymptomsLength {
		v.Add("symptoms", "must be at most 2000 characters")
	}
	if len(in.ImageURLs) > maxImages {
		v.Add("imageUrls", "at most 4 images are allowed")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		v.Add("location", "latitude and longitude must be sent together")
	} else if in.Latitude != nil && !utils.ValidCoordinates(*in.Latitude, *in.Longitude) {
		v.Add("location", "coordinates out of range")
	}
	if sub.IsGuest() {
		if sub.Device.DeviceID == "" {
			v.Add("deviceId", "is required")
		}
		if in.VehicleID != "" {
			v.Add("vehicleId", "guests cannot attach a vehicle")
		}
	}
	return v.OrNil()
}

func (s *DefaultDiagnosisService) Create(ctx context.Context, sub Submitter, in models.DiagnosisInput) (*models.CreatedDiagnosis, error) {
	in.Symptoms = strings.TrimSpace(in.Symptoms)
	in.Region = strings.TrimSpace(in.Region)
	in.Specialization = strings.ToLower(strings.TrimSpace(in.Specialization))
	if err := validateInput(sub, in); err != nil {
		return nil, err
	}

	if in.VehicleID != "" && s.Vehicles != nil {
		if _, err := s.Vehicles.Get(ctx, sub.UserID, in.VehicleID); err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return nil, utils.FieldError("vehicleId", "unknown vehicle")
			}
			return nil, err
		}
	}

	now := s.now()
	d := &models.Diagnosis{
		ID:             uuid.New().String(),
		DriverID:       sub.UserID,
		VehicleID:      in.VehicleID,
		InputType:      in.InputType(),
		Symptoms:       in.Symptoms,
		VoiceURL:       in.VoiceURL,
		ImageURLs:      in.ImageURLs,
		Region:         in.Region,
		Specialization: in.Specialization,
		Status:         models.DiagnosisPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if sub.IsGuest() {
		d.DeviceID = sub.Device.DeviceID
	}
	if in.Latitude != nil {
		geo := models.NewGeoPoint(*in.Latitude, *in.Longitude)
		d.LocationGeo = &geo
	}

	var leads []models.Lead
	err := s.withTx(ctx, func(ctx context.Context) error {
		leads = nil
		source, err := s.consumeQuota(ctx, sub)
		if err != nil {
			return err
		}
		d.QuotaSource = source

		if d.Region == "" && !sub.IsGuest() {
			if p, err := s.Drivers.Get(ctx, sub.UserID); err == nil {
				d.Region = p.Region
			}
		}
		if err := s.Diagnoses.Create(ctx, d); err != nil {
			return fmt.Errorf("store diagnosis: %w", err)
		}

		leads, err = s.allocateLeads(ctx, d)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(ctx, d, leads)
	return &models.CreatedDiagnosis{Diagnosis: d, Leads: leads}, nil
}

// consumeQuota takes one diagnosis from the submitter's allowance. Free
// diagnoses are used before paid ones.
func (s *DefaultDiagnosisService) consumeQuota(ctx context.Context, sub Submitter) (models.QuotaSource, error) {
	if sub.IsGuest() {
		if _, err := s.Devices.Touch(ctx, sub.Device); err != nil {
			return "", fmt.Errorf("register device: %w", err)
		}
		source, ok, err := s.Devices.ConsumeDiagnosis(ctx, sub.Device.DeviceID, s.guestFree())
		if err != nil {
			return "", fmt.Errorf("consume guest quota: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("device %s: %w", sub.Device.DeviceID, utils.ErrQuotaExceeded)
		}
		return source, nil
	}

	ok, err := s.Drivers.ConsumeFree(ctx, sub.UserID)
	if err != nil {
		return "", fmt.Errorf("consume free quota: %w", err)
	}
	if ok {
		return models.QuotaFree, nil
	}
	ok, err = s.Drivers.ConsumePaid(ctx, sub.UserID)
	if err != nil {
		return "", fmt.Errorf("consume paid quota: %w", err)
	}
	if ok {
		return models.QuotaPaid, nil
	}
	return "", fmt.Errorf("driver %s: %w", sub.UserID, utils.ErrQuotaExceeded)
}

// allocateLeads introduces d to up to maxLeads experts. Each lead uses one of
// the expert's free leads when any remain and is chargeable otherwise.
func (s *DefaultDiagnosisService) allocateLeads(ctx context.Context, d *models.Diagnosis) ([]models.Lead, error) {
	if s.Matcher == nil {
		return []models.Lead{}, nil
	}
	candidates, err := s.Matcher.Match(ctx, expert.MatchRequest{
		Specialization: d.Specialization,
		Region:         d.Region,
		Location:       d.LocationGeo,
		ExcludeIDs:     lo.Compact([]string{d.DriverID}),
		Limit:          s.maxLeads(),
	})
	if err != nil {
		return nil, fmt.Errorf("match experts: %w", err)
	}
	candidates = lo.UniqBy(candidates, func(c models.ExpertWithDistance) string { return c.UserID })
	if len(candidates) > s.maxLeads() {
		candidates = candidates[:s.maxLeads()]
	}

	leads := make([]models.Lead, 0, len(candidates))
	for _, c := range candidates {
		free, err := s.Experts.ConsumeFreeLead(ctx, c.UserID)
		if err != nil {
			return nil, fmt.Errorf("consume free lead: %w", err)
		}
		if !free {
			if err := s.Experts.RecordChargeableLead(ctx, c.UserID); err != nil {
				return nil, fmt.Errorf("record chargeable lead: %w", err)
			}
		}

		lead := models.Lead{
			ID:          uuid.New().String(),
			DiagnosisID: d.ID,
			ExpertID:    c.UserID,
			DriverID:    d.DriverID,
			Status:      models.LeadNew,
			IsFree:      free,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.CreatedAt,
		}
		if c.DistanceKm >= 0 {
			dist := c.DistanceKm
			lead.DistanceKm = &dist
		}
		if err := s.LeadRepo.Create(ctx, &lead); err != nil {
			return nil, fmt.Errorf("store lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// afterCreate queues analysis and notifications. Failures are logged only:
// the diagnosis is already committed.
func (s *DefaultDiagnosisService) afterCreate(ctx context.Context, d *models.Diagnosis, leads []models.Lead) {
	logger := s.logger().With(zap.String("diagnosisId", d.ID))
	logger.Info("diagnosis created",
		zap.String("quotaSource", string(d.QuotaSource)),
		zap.String("inputType", d.InputType),
		zap.Int("leads", len(leads)))

	if s.Tasks != nil {
		if err := s.Tasks.AnalyzeDiagnosis(ctx, d.ID); err != nil {
			logger.Error("failed to queue analysis", zap.Error(err))
		}
	}

	for _, l := range leads {
		if s.Tasks != nil {
			push := models.PushPayload{
				UserID: l.ExpertID,
				Title:  "New lead",
				Body:   leadTeaser(d),
				Data: map[string]string{
					"type":        broadcast.EventLeadCreated,
					"leadId":      l.ID,
					"diagnosisId": d.ID,
				},
			}
			if err := s.Tasks.SendPush(ctx, push); err != nil {
				logger.Error("failed to queue lead push", zap.String("leadId", l.ID), zap.Error(err))
			}
		}
		broadcast.Emit(ctx, s.Events, logger, broadcast.ExpertChannel(l.ExpertID), broadcast.EventLeadCreated, l)
	}

	channel := broadcast.DiagnosisChannel(d.ID)
	if !d.IsGuest() {
		channel = broadcast.UserChannel(d.DriverID)
	}
	broadcast.Emit(ctx, s.Events, logger, channel, broadcast.EventDiagnosisCreated, d)
}

func leadTeaser(d *models.Diagnosis) string {
	text := d.Symptoms
	if text == "" {
		text = "A driver needs help with their vehicle"
	}
	if d.Region != "" {
		text += " (" + d.Region + ")"
	}
	if r := []rune(text); len(r) > 120 {
		text = string(r[:117]) + "..."
	}
	return text
}
