package model

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ApiKey is a caller credential. Only the SHA-256 of the key material is
// stored; lookups hash the presented token first.
type ApiKey struct {
	Id      int    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId  int    `json:"user_id" gorm:"index;not null"`
	Name    string `json:"name" gorm:"size:128"`
	KeyHash string `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Active  bool   `json:"active" gorm:"index"`
}

func (ApiKey) TableName() string {
	return "api_keys"
}

// HashKey derives the stored digest for a presented key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ValidateApiKey resolves a presented key to its owning record. Inactive and
// unknown keys both return the same error so callers cannot probe.
func ValidateApiKey(key string) (*ApiKey, error) {
	if key == "" {
		return nil, errors.New("empty api key")
	}
	var apiKey ApiKey
	err := DB.Where("key_hash = ? AND active = ?", HashKey(key), true).First(&apiKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid api key")
		}
		return nil, errors.Wrap(err, "query api key")
	}
	return &apiKey, nil
}
