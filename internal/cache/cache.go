package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Cache stores prior AI outputs keyed by content, not identity: two hotels
// asking an identical question share the cached answer. Implementations
// degrade to no-ops when the backend is unavailable; caching is a latency
// optimization, never a correctness dependency.
type Cache interface {
	Get(ctx context.Context, operation, model, content string, params map[string]string) (string, bool)
	Set(ctx context.Context, operation, model, content string, params map[string]string, payload string)
}

// Key derives the deterministic content-addressed cache key.
func Key(operation, model, content string, params map[string]string) string {
	contentHash := sha256.Sum256([]byte(content))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	var sorted strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sorted, "%s=%s;", name, params[name])
	}
	paramsHash := sha256.Sum256([]byte(sorted.String()))

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s",
		operation, model, hex.EncodeToString(contentHash[:]), hex.EncodeToString(paramsHash[:]))))
	return hex.EncodeToString(sum[:])
}

// Entry is a stored payload with its expiry and hit counter.
type Entry struct {
	Payload   string
	CreatedAt time.Time
	ExpiresAt time.Time
	HitCount  int64
}
