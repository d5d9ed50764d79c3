package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "tether/internal/platform/errors"
)

const minSecretLength = 6

// Credential is the owner's emergency secret, kept as a salted HMAC-SHA256.
type Credential struct {
	OwnerID string `json:"ownerId"`
	Salt    string `json:"salt"`
	Digest  string `json:"digest"`
}

func NewCredential(ownerID, secret string, salt []byte) (Credential, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLength {
		return Credential{}, apperrors.Invalid("emergency secret must be at least %d characters", minSecretLength)
	}
	if len(salt) == 0 {
		return Credential{}, apperrors.Invalid("salt is required")
	}
	return Credential{
		OwnerID: ownerID,
		Salt:    hex.EncodeToString(salt),
		Digest:  hex.EncodeToString(digest(salt, secret)),
	}, nil
}

func (c Credential) Verify(secret string) bool {
	salt, err := hex.DecodeString(c.Salt)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(c.Digest)
	if err != nil {
		return false
	}
	return hmac.Equal(digest(salt, strings.TrimSpace(secret)), want)
}

func digest(salt []byte, secret string) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(secret))
	return mac.Sum(nil)
}
