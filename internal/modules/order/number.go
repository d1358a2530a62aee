package order

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"wali/internal/types"
)

const numberPrefix = "WL-"

func newID() types.ID {
	return types.ID(uuid.NewString())
}

// NewNumber builds a human-readable order number, WL-YYMMDD-XXXXXX, where the
// suffix is six upper-case hex digits of a random uuid.
func NewNumber(now time.Time) string {
	u := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")[:6])
	return numberPrefix + now.UTC().Format("060102") + "-" + suffix
}

// IsNumber reports whether ref looks like an order number rather than an id.
func IsNumber(ref string) bool {
	return strings.HasPrefix(strings.ToUpper(ref), numberPrefix)
}
