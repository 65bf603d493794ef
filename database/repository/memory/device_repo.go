package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autodiag/models"
	"autodiag/utils"
)

type DeviceRepo struct {
	mu      sync.Mutex
	devices map[string]models.DeviceFingerprint
}

func NewDeviceRepo() *DeviceRepo {
	return &DeviceRepo{devices: make(map[string]models.DeviceFingerprint)}
}

func (r *DeviceRepo) Touch(_ context.Context, info models.DeviceInfo) (*models.DeviceFingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	fp, ok := r.devices[info.DeviceID]
	if !ok {
		fp = models.DeviceFingerprint{DeviceID: info.DeviceID, FirstSeenAt: now}
	}
	if info.Platform != "" {
		fp.Platform = info.Platform
	}
	if info.Model != "" {
		fp.Model = info.Model
	}
	if info.IP != "" {
		fp.IP = info.IP
	}
	fp.LastSeenAt = now
	r.devices[info.DeviceID] = fp
	return &fp, nil
}

func (r *DeviceRepo) Get(_ context.Context, deviceID string) (*models.DeviceFingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, utils.ErrNotFound)
	}
	return &fp, nil
}

func (r *DeviceRepo) ConsumeDiagnosis(_ context.Context, deviceID string, freeQuota int) (models.QuotaSource, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.devices[deviceID]
	if !ok || fp.DiagnosesUsed >= freeQuota+fp.PaidCredits {
		return "", false, nil
	}
	fp.DiagnosesUsed++
	fp.LastSeenAt = time.Now()
	r.devices[deviceID] = fp
	if fp.DiagnosesUsed <= freeQuota {
		return models.QuotaGuestFree, true, nil
	}
	return models.QuotaGuestPaid, true, nil
}

func (r *DeviceRepo) AddPaidCredits(_ context.Context, deviceID string, n int) error {
	if n <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	fp, ok := r.devices[deviceID]
	if !ok {
		fp = models.DeviceFingerprint{DeviceID: deviceID, FirstSeenAt: now}
	}
	fp.PaidCredits += n
	fp.LastSeenAt = now
	r.devices[deviceID] = fp
	return nil
}
