package archive

import (
	"path"
	"strings"
	"time"
)

// BuildKey returns the object key of a snapshot:
// <prefix>/<yyyy>/<mm>/<dd>/<sessionID>.json, dated in UTC.
func BuildKey(prefix, sessionID string, at time.Time) string {
	return path.Join(strings.Trim(prefix, "/"), at.UTC().Format("2006/01/02"), sessionID+".json")
}

// ParseKey extracts the session id and date from a key built by BuildKey.
func ParseKey(key string) (sessionID string, day time.Time, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 4 {
		return "", time.Time{}, false
	}
	n := len(parts)
	file := parts[n-1]
	if !strings.HasSuffix(file, ".json") || file == ".json" {
		return "", time.Time{}, false
	}
	day, err := time.Parse("2006/01/02", strings.Join(parts[n-4:n-1], "/"))
	if err != nil {
		return "", time.Time{}, false
	}
	return strings.TrimSuffix(file, ".json"), day, true
}
