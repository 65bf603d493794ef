package diagnosis

import (
	"context"
	"errors"
	"fmt"

	diagnosisRepo "autodiag/database/repository/diagnosis"
	"autodiag/models"
	"autodiag/services/broadcast"
	"autodiag/services/intelligence"

	"go.uber.org/zap"
)

var errNoAnalyzer = errors.New("analysis is not configured")

func (s *DefaultDiagnosisService) Analyze(ctx context.Context, id string) error {
	d, err := s.Diagnoses.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if d.Status == models.DiagnosisCompleted || d.Status == models.DiagnosisFailed {
		return nil
	}
	logger := s.logger().With(zap.String("diagnosisId", id))

	// processing → processing is allowed so a retried task can pick the work up again.
	ok, err := s.Diagnoses.UpdateStatus(ctx, id, diagnosisRepo.StatusUpdate{
		From: []models.DiagnosisStatus{models.DiagnosisPending, models.DiagnosisProcessing},
		To:   models.DiagnosisProcessing,
	})
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("diagnosis no longer pending, skipping analysis")
		return nil
	}
	d.Status = models.DiagnosisProcessing
	s.emitUpdated(ctx, d, logger)

	if s.Analyzer == nil {
		return s.FailAnalysis(ctx, id, errNoAnalyzer.Error())
	}

	in := intelligence.AnalysisInput{
		Symptoms:   d.Symptoms,
		Transcript: d.Transcript,
		ImageURLs:  d.ImageURLs,
		Language:   s.language(ctx, d),
	}
	if d.VoiceURL != "" && in.Transcript == "" && s.Transcriber != nil {
		transcript, err := s.Transcriber.Transcribe(ctx, d.VoiceURL, intelligence.SpeechLanguage(in.Language))
		if err != nil {
			return fmt.Errorf("transcribe voice note: %w", err)
		}
		in.Transcript = transcript
	}
	if d.VehicleID != "" && s.Vehicles != nil {
		if v, err := s.Vehicles.Get(ctx, d.DriverID, d.VehicleID); err == nil {
			in.Vehicle = v
		}
	}

	result, err := s.Analyzer.Analyze(ctx, in)
	if err != nil {
		return fmt.Errorf("analyze diagnosis: %w", err)
	}

	ok, err = s.Diagnoses.UpdateStatus(ctx, id, diagnosisRepo.StatusUpdate{
		From:       []models.DiagnosisStatus{models.DiagnosisProcessing},
		To:         models.DiagnosisCompleted,
		Result:     result,
		Transcript: in.Transcript,
	})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	d.Status, d.Result, d.Transcript = models.DiagnosisCompleted, result, in.Transcript
	logger.Info("diagnosis analyzed", zap.String("urgency", string(result.Urgency)), zap.Float64("confidence", result.Confidence))
	s.emitUpdated(ctx, d, logger)

	if !d.IsGuest() && s.Tasks != nil {
		push := models.PushPayload{
			UserID: d.DriverID,
			Title:  "Your diagnosis is ready",
			Body:   result.Summary,
			Data:   map[string]string{"type": broadcast.EventDiagnosisUpdated, "diagnosisId": d.ID},
		}
		if err := s.Tasks.SendPush(ctx, push); err != nil {
			logger.Error("failed to queue result push", zap.Error(err))
		}
	}
	return nil
}

func (s *DefaultDiagnosisService) FailAnalysis(ctx context.Context, id, reason string) error {
	ok, err := s.Diagnoses.UpdateStatus(ctx, id, diagnosisRepo.StatusUpdate{
		From:          []models.DiagnosisStatus{models.DiagnosisPending, models.DiagnosisProcessing},
		To:            models.DiagnosisFailed,
		FailureReason: reason,
	})
	if err != nil || !ok {
		return err
	}
	d, err := s.Diagnoses.GetByID(ctx, id)
	if err != nil {
		return err
	}
	logger := s.logger().With(zap.String("diagnosisId", id))
	logger.Warn("diagnosis analysis failed", zap.String("reason", reason))
	s.emitUpdated(ctx, d, logger)
	return nil
}

func (s *DefaultDiagnosisService) emitUpdated(ctx context.Context, d *models.Diagnosis, logger *zap.Logger) {
	broadcast.Emit(ctx, s.Events, logger, broadcast.DiagnosisChannel(d.ID), broadcast.EventDiagnosisUpdated, d)
	if !d.IsGuest() {
		broadcast.Emit(ctx, s.Events, logger, broadcast.UserChannel(d.DriverID), broadcast.EventDiagnosisUpdated, d)
	}
}

func (s *DefaultDiagnosisService) language(ctx context.Context, d *models.Diagnosis) string {
	if d.IsGuest() || s.Users == nil {
		return "en"
	}
	u, err := s.Users.GetByID(ctx, d.DriverID)
	if err != nil || u.Settings.Language == "" {
		return "en"
	}
	return u.Settings.Language
}
