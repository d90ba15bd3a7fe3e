package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Cache key namespaces for remote-derived resources. Keys are scoped per
// project so invalidation after a remote write only evicts that project.
const (
	commitsKeyPrefix  = "commits/"
	pendingKeyPrefix  = "pending/"
	settingsKeyPrefix = "settings/"
)

func CommitsCacheKey(projectID int64) string {
	return commitsKeyPrefix + strconv.FormatInt(projectID, 10)
}

func PendingCacheKey(projectID int64) string {
	return pendingKeyPrefix + strconv.FormatInt(projectID, 10)
}

func SettingsCacheKey(projectID int64) string {
	return settingsKeyPrefix + strconv.FormatInt(projectID, 10)
}

// ProjectIDFromCacheKey recovers the project id from any of the namespaced
// cache keys above.
func ProjectIDFromCacheKey(key string) (int64, error) {
	idx := strings.IndexByte(key, '/')
	if idx < 0 {
		return 0, fmt.Errorf("cache key %q has no namespace", key)
	}
	id, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache key %q: %w", key, err)
	}
	return id, nil
}
