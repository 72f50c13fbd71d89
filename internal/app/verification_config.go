package app

import (
	"fmt"

	"github.com/charlesng35/workpass/internal/services"
)

const minOTPSecretBytes = 16

// OTPServiceConfig decodes the OTP secret and fills in the engine defaults.
func (c VerificationConfig) OTPServiceConfig() (services.OTPConfig, error) {
	secret, err := DecodeKey(c.OTP.Secret)
	if err != nil {
		return services.OTPConfig{}, fmt.Errorf("config: verification.otp.secret: %w", err)
	}
	if len(secret) < minOTPSecretBytes {
		return services.OTPConfig{}, fmt.Errorf("config: verification.otp.secret must be at least %d bytes", minOTPSecretBytes)
	}

	cfg := services.OTPConfig{
		Secret:      secret,
		TTL:         c.OTP.TTL,
		Cooldown:    c.OTP.Cooldown,
		MaxAttempts: c.OTP.MaxAttempts,
	}
	if cfg.TTL <= 0 {
		cfg.TTL = services.DefaultOTPTTL
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = services.DefaultOTPCooldown
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = services.DefaultOTPMaxAttempts
	}
	return cfg, nil
}
