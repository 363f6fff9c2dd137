// Package plan resolves a shop's plan identifier into its base quota limits.
package plan

import (
	"strings"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

// Limits are the renewing base allowances a plan grants.
type Limits struct {
	WeeklyBroadcastBase int `json:"weekly_broadcast_base"`
	DailyPost           int `json:"daily_post"`
}

var (
	standard = Limits{WeeklyBroadcastBase: 0, DailyPost: 1}
	high     = Limits{WeeklyBroadcastBase: 1, DailyPost: 3}
	maximum  = Limits{WeeklyBroadcastBase: 3, DailyPost: 5}
)

var known = map[string]Limits{
	"estandar":           standard,
	"standard":           standard,
	"basic":              standard,
	"alta":               high,
	"alta visibilidad":   high,
	"premium":            high,
	"maxima":             maximum,
	"maxima visibilidad": maximum,
	"pro":                maximum,
}

// Resolve maps a plan string to its limits. Unknown plans fall back by substring,
// and anything unrecognized gets the standard limits.
func Resolve(plan string) Limits {
	key := Normalize(plan)
	if l, ok := known[key]; ok {
		return l
	}
	switch {
	case strings.Contains(key, "maxima") || key == "pro":
		return maximum
	case strings.Contains(key, "alta") || strings.Contains(key, "premium"):
		return high
	default:
		return standard
	}
}

// Normalize lower-cases and trims a plan identifier.
func Normalize(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// Base returns the base limit for the given resource.
func (l Limits) Base(r domain.Resource) int {
	if r == domain.ResourcePost {
		return l.DailyPost
	}
	return l.WeeklyBroadcastBase
}
