package probe

import (
	"strings"

	"github.com/hamed0406/dynaprobe/internal/domain"
)

// Classify maps a failure message to an ErrorKind. Only the text is looked
// at, never error types or codes, so the result does not depend on which
// client library produced the error. Message wording changes (or localised
// messages) will therefore shift failures between Timeout and Other.
func Classify(msg string) domain.ErrorKind {
	m := strings.ToLower(msg)
	if strings.Contains(m, "timeout") || strings.Contains(m, "timed out") {
		return domain.ErrorTimeout
	}
	return domain.ErrorOther
}
