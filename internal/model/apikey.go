package model

import "time"

// APIKey is an encrypted exchange credential owned by one user.
//
// EncryptedKey and EncryptedSecret hold AES-GCM ciphertext (base64), never
// plaintext. Both are tagged `json:"-"`: even the ciphertext stays inside the
// process — API responses use APIKeyInfo, which has no credential fields at all.
//
// At most one APIKey exists per (user, exchange) pair. The rule is enforced
// at write time by the service, not by a DB uniqueness constraint.
type APIKey struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Exchange        string     `json:"exchange"`
	EncryptedKey    string     `json:"-"`
	EncryptedSecret string     `json:"-"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUsed        *time.Time `json:"last_used"`
}

// APIKeyInfo is the metadata shape returned by list endpoints.
// It is a separate struct (rather than the APIKey with fields blanked) so the
// response shape physically cannot carry key material.
type APIKeyInfo struct {
	ID        string     `json:"id"`
	Exchange  string     `json:"exchange"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
}

// Info strips an APIKey down to its client-visible metadata.
func (k *APIKey) Info() APIKeyInfo {
	return APIKeyInfo{
		ID:        k.ID,
		Exchange:  k.Exchange,
		IsActive:  k.IsActive,
		CreatedAt: k.CreatedAt,
		LastUsed:  k.LastUsed,
	}
}
