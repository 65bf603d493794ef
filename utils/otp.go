package utils

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	otpLength = 6
	otpTTL    = 5 * time.Minute
)

// generateSecureOTP generates a secure random OTP of the specified length.
// It returns a base32 encoded string (without padding) truncated to the desired length.
func generateSecureOTP(length int) (string, error) {
	numBytes := (length*5 + 7) / 8
	randomBytes := make([]byte, numBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	otp := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	if len(otp) > length {
		otp = otp[:length]
	}
	return otp, nil
}

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// LogSMSSender logs outgoing messages instead of delivering them.
type LogSMSSender struct{}

func (LogSMSSender) Send(_ context.Context, phoneNumber, message string) error {
	GetLogger().Sugar().Infof("Sending SMS to %s: %s", phoneNumber, message)
	return nil
}

// RedisOTPStore keeps one-time passwords in Redis keyed by subject and device.
type RedisOTPStore struct {
	Client *redis.Client
	Sender SMSSender
}

func NewRedisOTPStore(client *redis.Client, sender SMSSender) *RedisOTPStore {
	if sender == nil {
		sender = LogSMSSender{}
	}
	return &RedisOTPStore{Client: client, Sender: sender}
}

func otpKey(subject, deviceID string) string {
	return fmt.Sprintf("otp:%s:%s", subject, deviceID)
}

// Issue generates an OTP, stores it with a 5 minute TTL and sends it to phoneNumber.
func (s *RedisOTPStore) Issue(ctx context.Context, subject, deviceID, phoneNumber string) error {
	otp, err := generateSecureOTP(otpLength)
	if err != nil {
		return fmt.Errorf("failed to generate OTP: %w", err)
	}
	if err := s.Client.Set(ctx, otpKey(subject, deviceID), otp, otpTTL).Err(); err != nil {
		GetLogger().Error("Failed to cache OTP", zap.Error(err))
		return fmt.Errorf("failed to initiate device OTP: %w", err)
	}

	message := fmt.Sprintf("Your AutoDiag code is: %s. It expires in 5 minutes.", otp)
	if err := s.Sender.Send(ctx, phoneNumber, message); err != nil {
		GetLogger().Error("Failed to send OTP", zap.Error(err))
		return fmt.Errorf("failed to send OTP: %w", err)
	}
	return nil
}

// Verify compares the stored OTP with provided and consumes it on success.
func (s *RedisOTPStore) Verify(ctx context.Context, subject, deviceID, provided string) error {
	key := otpKey(subject, deviceID)
	stored, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: OTP not found or expired", ErrUnauthorized)
		}
		return fmt.Errorf("failed to retrieve OTP: %w", err)
	}
	if stored != provided {
		return fmt.Errorf("%w: OTP does not match", ErrUnauthorized)
	}
	if err := s.Client.Del(ctx, key).Err(); err != nil {
		GetLogger().Error("Failed to delete OTP after verification", zap.Error(err))
	}
	return nil
}
