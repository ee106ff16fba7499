package razorpay

import (
	"errors"
	"os"
	"strings"
)

var ErrNotConfigured = errors.New("razorpay credentials are not set")

type Mode string

const (
	ModeLive    Mode = "live"
	ModeTest    Mode = "test"
	ModeUnknown Mode = "unknown"
)

// Credentials are the merchant key pair. KeyID is public and may be handed
// to the checkout widget; KeySecret never leaves the server.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// CredentialsFromEnv reads RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET.
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		KeyID:     strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID")),
		KeySecret: strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET")),
	}
	if creds.KeyID == "" || creds.KeySecret == "" {
		return creds, ErrNotConfigured
	}
	return creds, nil
}

func (c Credentials) Mode() Mode {
	return ModeOf(c.KeyID)
}

// ModeOf reads the environment marker from a key id prefix.
func ModeOf(keyID string) Mode {
	switch {
	case strings.HasPrefix(keyID, "rzp_live_"):
		return ModeLive
	case strings.HasPrefix(keyID, "rzp_test_"):
		return ModeTest
	default:
		return ModeUnknown
	}
}

// MaskedKeyID is the key id in a form safe for logs.
func (c Credentials) MaskedKeyID() string {
	return MaskKeyID(c.KeyID)
}

func MaskKeyID(keyID string) string {
	if keyID == "" {
		return "NOT SET"
	}
	if len(keyID) <= 12 {
		return keyID[:min(4, len(keyID))] + "..."
	}
	return keyID[:8] + "..." + keyID[len(keyID)-4:]
}
