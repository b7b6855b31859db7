package natsjs

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// consumerName derives a stable consumer name from the subject. Subjects
// routinely contain dots and wildcards, which are invalid in consumer
// names, so the subject is folded into an xxh3 hash instead of being
// sanitized character by character.
func consumerName(prefix, subject string) string {
	return fmt.Sprintf("%s-%016x", prefix, xxh3.HashString(subject))
}
