package ingest

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/internal/store"
)

// Disclosure is one raw timely-disclosure or earnings-summary item before
// rule evaluation.
type Disclosure struct {
	Code        string
	Title       string
	Summary     string
	AnnouncedAt time.Time
	Source      string
}

// Titles announcing upward guidance revisions.
var guideUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`上方修正`),
	regexp.MustCompile(`増配`),
	regexp.MustCompile(`業績予想.*修正`),
	regexp.MustCompile(`利益予想.*上方`),
}

// Titles referencing a reporting period read as firmer earnings signals.
var earningsPeriodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`第?\d四半期`),
	regexp.MustCompile(`通期`),
	regexp.MustCompile(`上期`),
	regexp.MustCompile(`下期`),
}

const (
	guideUpScore       = 0.9
	plainDisclosure    = 0.5
	earningsBaseTone   = 0.6
	earningsPeriodTone = 0.8

	volumeSpikeThreshold = 2.0
)

var newsScores = map[Polarity]float64{
	PolarityPositive: 0.7,
	PolarityNegative: 0.3,
	PolarityNeutral:  0.4,
}

var newsTags = map[Polarity]scoring.Tag{
	PolarityPositive: scoring.TagNewsPos,
	PolarityNegative: scoring.TagNewsNeg,
	PolarityNeutral:  scoring.TagNewsNeu,
}

// eventID builds the stable identity of a detected event. Repeated detection
// of the same occurrence produces the same ID and upserts in place.
func eventID(code string, date time.Time, tag scoring.Tag, source string) string {
	return fmt.Sprintf("%s-%s-%s-%s", code, date.UTC().Format("2006-01-02"), tag, source)
}

func newEvent(code string, date time.Time, typ scoring.EventType, tag scoring.Tag, title, summary, source string, score float64) store.CorporateEvent {
	return store.CorporateEvent{
		ID:       eventID(code, date, tag, source),
		Code:     code,
		Date:     date,
		Type:     string(typ),
		Title:    title,
		Summary:  summary,
		Source:   source,
		ScoreRaw: scoring.Float(score),
	}
}

// DetectDisclosures evaluates timely disclosures: a guidance-revision title
// becomes a GUIDE_UP event, anything else a plain TDNET event.
func DetectDisclosures(items []Disclosure) []store.CorporateEvent {
	events := make([]store.CorporateEvent, 0, len(items))
	for _, item := range items {
		matched := false
		for _, pattern := range guideUpPatterns {
			if pattern.MatchString(item.Title) {
				matched = true
				break
			}
		}
		if matched {
			events = append(events, newEvent(item.Code, item.AnnouncedAt,
				scoring.EventTypeGuideUp, scoring.TagGuideUp,
				item.Title, item.Summary, item.Source, guideUpScore))
		} else {
			events = append(events, newEvent(item.Code, item.AnnouncedAt,
				scoring.EventTypeTdnet, scoring.TagTdnet,
				item.Title, item.Summary, item.Source, plainDisclosure))
		}
	}
	return events
}

// DetectEarnings turns earnings summaries into EARNINGS events. Titles
// naming a reporting period get the higher tone.
func DetectEarnings(items []Disclosure) []store.CorporateEvent {
	events := make([]store.CorporateEvent, 0, len(items))
	for _, item := range items {
		tone := earningsBaseTone
		for _, pattern := range earningsPeriodPatterns {
			if pattern.MatchString(item.Title) {
				tone = earningsPeriodTone
				break
			}
		}
		events = append(events, newEvent(item.Code, item.AnnouncedAt,
			scoring.EventTypeEarnings, scoring.TagEarningsPositive,
			item.Title, item.Summary, item.Source, tone))
	}
	return events
}

// DetectVolumeSpikes emits a synthetic VOL_SPIKE event for every feature row
// with a volume z-score at or above the threshold.
func DetectVolumeSpikes(features []store.Feature) []store.CorporateEvent {
	var events []store.CorporateEvent
	for _, f := range features {
		if f.Name != scoring.TapeTagVolumeZ || f.Value < volumeSpikeThreshold {
			continue
		}
		score := math.Min(f.Value/5, 1)
		events = append(events, newEvent(f.Code, f.Date,
			scoring.EventTypeVolSpike, scoring.TagVolSpike,
			"出来高急増", fmt.Sprintf("volume_z=%.2f", f.Value), "volume_rule", score))
	}
	return events
}

// NewsEvents maps fetched headlines to NEWS events with polarity-derived
// raw scores.
func NewsEvents(items []NewsItem) []store.CorporateEvent {
	events := make([]store.CorporateEvent, 0, len(items))
	for _, item := range items {
		events = append(events, newEvent(item.Code, item.PublishedAt,
			scoring.EventTypeNews, newsTags[item.Polarity],
			item.Title, item.Summary, "news", newsScores[item.Polarity]))
	}
	return events
}
