package scoring

// Thresholds splitting NEWS events into polarity tags. The raw score is
// clamped to [0,1] before the comparison.
const (
	newsPositiveMin  = 0.6
	newsNegativeMax  = 0.3
	newsDefaultScore = 0.4
)

// Classify maps a stored event category to its scoring tag. Events with an
// unrecognized category are excluded from scoring (ok == false).
//
// This is the single classification point: the rebuild pipeline and the
// verify command both call it, so stored tags and recomputed tags always
// agree.
func Classify(eventType EventType, scoreRaw *float64) (Tag, bool) {
	switch eventType {
	case EventTypeGuideUp:
		return TagGuideUp, true
	case EventTypeTdnet:
		return TagTdnet, true
	case EventTypeVolSpike:
		return TagVolSpike, true
	case EventTypeEarnings:
		return TagEarningsPositive, true
	case EventTypeNews:
		score := newsDefaultScore
		if scoreRaw != nil {
			score = clamp(*scoreRaw, 0, 1)
		}
		if score >= newsPositiveMin {
			return TagNewsPos, true
		}
		if score <= newsNegativeMax {
			return TagNewsNeg, true
		}
		return TagNewsNeu, true
	default:
		return "", false
	}
}
