package picks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/kabupicks/internal/store"
	"github.com/wonny/kabupicks/pkg/logger"
)

// scoreTolerance absorbs float rounding drift between the stored score and
// a recomputed one.
const scoreTolerance = 0.01

// PickReader reads the stored pick snapshot.
type PickReader interface {
	ListByDate(ctx context.Context, date time.Time, minScore float64) ([]store.Pick, error)
}

// Verifier recomputes a stored snapshot from raw inputs and reports any
// divergence. A clean report means the snapshot can be reproduced from
// storage alone.
type Verifier struct {
	rebuilder *Rebuilder
	picks     PickReader
	log       *logger.Logger
}

// NewVerifier creates a verifier that shares the rebuilder's data access.
func NewVerifier(r *Rebuilder, picks PickReader, log *logger.Logger) *Verifier {
	return &Verifier{rebuilder: r, picks: picks, log: log}
}

// Mismatch describes one divergent instrument.
type Mismatch struct {
	Code       string   `json:"code"`
	Stored     *float64 `json:"stored"`     // nil: missing from the snapshot
	Recomputed *float64 `json:"recomputed"` // nil: no longer qualifies
}

// Report summarizes one verification run.
type Report struct {
	Date       time.Time  `json:"-"`
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether the stored snapshot matches the recomputation.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Verify recomputes every pick for date and compares scores against the
// stored snapshot within scoreTolerance.
func (v *Verifier) Verify(ctx context.Context, date time.Time) (Report, error) {
	targetStart := startOfUTCDay(date)

	stored, err := v.picks.ListByDate(ctx, targetStart, 0)
	if err != nil {
		return Report{}, fmt.Errorf("%w: load stored picks: %w", store.ErrUnavailable, err)
	}

	cfg, err := v.rebuilder.weights.Get()
	if err != nil {
		return Report{}, fmt.Errorf("load weights: %w", err)
	}

	targetEnd := targetStart.AddDate(0, 0, 1)
	lookbackStart := targetStart.AddDate(0, 0, -lookbackDays)
	win, err := v.rebuilder.fetchWindows(ctx, targetStart, targetEnd, lookbackStart)
	if err != nil {
		return Report{}, err
	}

	recomputed := v.rebuilder.scoreCandidates(ctx, cfg, win, win.candidateCodes(), targetStart)
	recomputedByCode := make(map[string]float64, len(recomputed))
	for _, p := range recomputed {
		recomputedByCode[p.Code] = p.ScoreFinal
	}

	report := Report{Date: targetStart, Checked: len(stored)}
	for _, p := range stored {
		fresh, ok := recomputedByCode[p.Code]
		if !ok {
			s := p.ScoreFinal
			report.Mismatches = append(report.Mismatches, Mismatch{Code: p.Code, Stored: &s})
			continue
		}
		delete(recomputedByCode, p.Code)
		if math.Abs(fresh-p.ScoreFinal) > scoreTolerance {
			s, f := p.ScoreFinal, fresh
			report.Mismatches = append(report.Mismatches, Mismatch{Code: p.Code, Stored: &s, Recomputed: &f})
		}
	}
	for code, fresh := range recomputedByCode {
		f := fresh
		report.Mismatches = append(report.Mismatches, Mismatch{Code: code, Recomputed: &f})
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].Code < report.Mismatches[j].Code
	})

	if report.OK() {
		v.log.WithField("date", targetStart.Format("2006-01-02")).Info("Snapshot verified")
	} else {
		v.log.WithFields(map[string]interface{}{
			"date":       targetStart.Format("2006-01-02"),
			"mismatches": len(report.Mismatches),
		}).Warn("Snapshot diverges from recomputation")
	}
	return report, nil
}
