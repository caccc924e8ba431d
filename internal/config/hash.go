package config

import (
	"encoding/json"
	"hash/fnv"
)

// hashBytes returns a stable 64-bit hash of bytes. Empty input returns 0.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// ScheduleHash covers the fields that require rebuilding a task: interval and
// action. Expiration is deliberately excluded so an expiry-only edit can be
// applied in place.
func ScheduleHash(tc TaskConfig) uint64 {
	b, err := json.Marshal(struct {
		Interval string       `json:"interval"`
		Action   ActionConfig `json:"action"`
	}{tc.Interval, tc.Action})
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// ExpiryHash covers the expiration fields of a task definition.
func ExpiryHash(tc TaskConfig) uint64 {
	return hashBytes([]byte(tc.ExpireAt + "\x00" + tc.ExpireIn))
}
