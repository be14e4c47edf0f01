// Package keys builds the Redis key names every component agrees on (§6.3).
// Centralizing them here is what keeps the Scoring Engine and the Worker in
// sync on the sorted-set/metadata keyspace without importing each other.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Score returns the sorted-set key for a leaderboard (the "fingerprint").
func Score(tenantID, projectID, leaderboardID uuid.UUID) string {
	return fmt.Sprintf("l:%s:%s:%s", tenantID, projectID, leaderboardID)
}

// Meta returns the metadata hash key colocated with a leaderboard's sorted set.
func Meta(tenantID, projectID, leaderboardID uuid.UUID) string {
	return fmt.Sprintf("l:meta:%s:%s:%s", tenantID, projectID, leaderboardID)
}

// RateLimit returns the token-bucket hash key for a tenant.
func RateLimit(tenantID uuid.UUID) string {
	return fmt.Sprintf("rl:%s", tenantID)
}

// UsageTenant returns the daily usage hash key for a tenant.
func UsageTenant(tenantID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("usage:%s:%s", tenantID, date.UTC().Format("2006-01-02"))
}

// UsageProject returns the daily usage hash key for a tenant/project pair.
func UsageProject(tenantID, projectID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s", tenantID, projectID, date.UTC().Format("2006-01-02"))
}

// AuthCache returns the auth cache key for a plaintext API key: the first 16
// hex characters of its SHA-256 digest. This is a lookup fingerprint only —
// it is never used to verify the key, just to name its cache slot.
func AuthCache(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return "auth:" + hex.EncodeToString(sum[:])[:16]
}
