package picks

import (
	"strings"
	"time"

	"github.com/wonny/kabupicks/internal/scoring"
)

const (
	// Events older than this many days before the target date no longer
	// draw a penalty.
	penaltyWindowDays = 5

	negativeNewsPenalty = 0.2
	downgradePenalty    = 0.3

	// Disclosure titles carrying this marker announce a downward guidance
	// revision.
	downgradeKeyword = "下方"
)

// RecentNegativePenalty returns the score penalty for recent negative
// events: 0.2 for negative news, 0.3 for a downward-revision disclosure.
// When several events qualify, the largest single penalty applies; the
// penalties do not stack.
func RecentNegativePenalty(signals []scoring.EventSignal, targetStart time.Time) float64 {
	penalty := 0.0
	for _, s := range signals {
		days := daysBefore(s.OccurredAt, targetStart)
		if days < 0 || days > penaltyWindowDays {
			continue
		}
		switch {
		case s.Tag == scoring.TagNewsNeg:
			penalty = max(penalty, negativeNewsPenalty)
		case s.Tag == scoring.TagTdnet && strings.Contains(s.Title, downgradeKeyword):
			penalty = max(penalty, downgradePenalty)
		}
	}
	return penalty
}

// daysBefore returns how many whole UTC days before target the event
// occurred. Negative means the event is dated after the target.
func daysBefore(occurredAt, targetStart time.Time) int {
	eventDay := startOfUTCDay(occurredAt)
	return int(targetStart.Sub(eventDay).Hours() / 24)
}
