package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord pins a caller-supplied key to the fingerprint and result
// of its first use. The fingerprint is immutable after first write: reusing
// the same key with a different fingerprint is IDEMPOTENCY_MISMATCH, never
// an overwrite. Records are deleted only by the external expiry sweep.
type IdempotencyRecord struct {
	Scope       string    `json:"scope"`
	KeyHash     string    `json:"key_hash"`
	Fingerprint string    `json:"fingerprint"`
	Result      Result    `json:"result"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// HashKey digests a caller-supplied idempotency token so raw tokens never
// reach storage.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes the semantically relevant fields of a mutation request.
// Field order is positional (scope, from, to, amount, reason), so a
// self-transfer hashes unambiguously. The reason is whitespace-normalized
// before hashing.
func Fingerprint(scope string, from, to *uuid.UUID, amount int64, reason string) string {
	var b strings.Builder
	b.WriteString(scope)
	b.WriteByte('|')
	if from != nil {
		b.WriteString(from.String())
	}
	b.WriteByte('|')
	if to != nil {
		b.WriteString(to.String())
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(amount, 10))
	b.WriteByte('|')
	b.WriteString(NormalizeReason(reason))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizeReason trims and collapses internal whitespace so cosmetic
// differences do not change the fingerprint.
func NormalizeReason(reason string) string {
	return strings.Join(strings.Fields(reason), " ")
}

// ReplayCacheKey is the key used by the best-effort replay cache layer.
func ReplayCacheKey(scope, keyHash string) string {
	return scope + ":" + keyHash
}
