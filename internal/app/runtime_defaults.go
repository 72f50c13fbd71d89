package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ephemeralSecret describes a secret that may be generated at startup when
// the operator left it blank.
type ephemeralSecret struct {
	key    string
	bytes  int
	target func(*Config) *string
}

var ephemeralSecrets = []ephemeralSecret{
	{key: "auth.jwt.secret", bytes: 48, target: func(c *Config) *string { return &c.Auth.JWT.Secret }},
	{key: "verification.otp.secret", bytes: 32, target: func(c *Config) *string { return &c.Verification.OTP.Secret }},
}

// ApplyRuntimeDefaults fills blank secrets with random hex keys and reports
// which keys it generated. Generated secrets die with the process: session
// tokens and outstanding codes are invalidated by a restart.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)
	for _, secret := range ephemeralSecrets {
		target := secret.target(cfg)
		if strings.TrimSpace(*target) != "" {
			continue
		}
		value, err := generateHexKey(secret.bytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", secret.key, err)
		}
		*target = value
		generated[secret.key] = true
	}
	return generated, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
