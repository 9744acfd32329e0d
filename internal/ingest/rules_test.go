package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/internal/store"
)

func TestDetectDisclosures(t *testing.T) {
	announced := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		title     string
		wantType  string
		wantScore float64
	}{
		{"upward revision", "業績予想の上方修正に関するお知らせ", "GUIDE_UP", 0.9},
		{"dividend increase", "増配のお知らせ", "GUIDE_UP", 0.9},
		{"forecast revision", "業績予想の修正について", "GUIDE_UP", 0.9},
		{"profit upward", "利益予想の上方見直し", "GUIDE_UP", 0.9},
		{"plain disclosure", "自己株式の取得状況に関するお知らせ", "TDNET", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := DetectDisclosures([]Disclosure{{
				Code: "7203", Title: tt.title, AnnouncedAt: announced, Source: "tdnet",
			}})
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", ev.Type, tt.wantType)
			}
			if ev.ScoreRaw == nil || *ev.ScoreRaw != tt.wantScore {
				t.Errorf("ScoreRaw = %v, want %v", ev.ScoreRaw, tt.wantScore)
			}
			wantID := "7203-2026-03-10-" + tt.wantType + "-tdnet"
			if ev.ID != wantID {
				t.Errorf("ID = %q, want %q", ev.ID, wantID)
			}
		})
	}
}

func TestDetectEarnings(t *testing.T) {
	announced := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		title    string
		wantTone float64
	}{
		{"third quarter", "2026年3月期 第3四半期決算短信", 0.8},
		{"full year", "通期業績のお知らせ", 0.8},
		{"first half", "上期決算概況", 0.8},
		{"no period", "決算説明資料", 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := DetectEarnings([]Disclosure{{
				Code: "7203", Title: tt.title, AnnouncedAt: announced, Source: "earnings",
			}})
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Type != string(scoring.EventTypeEarnings) {
				t.Errorf("Type = %q, want EARNINGS", ev.Type)
			}
			if ev.ScoreRaw == nil || *ev.ScoreRaw != tt.wantTone {
				t.Errorf("ScoreRaw = %v, want %v", ev.ScoreRaw, tt.wantTone)
			}
		})
	}
}

func TestDetectVolumeSpikes(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	features := []store.Feature{
		{Code: "7203", Date: date, Name: "volume_z", Value: 2.5},
		{Code: "9984", Date: date, Name: "volume_z", Value: 1.9},
		{Code: "6758", Date: date, Name: "volume_z", Value: 8},
		{Code: "7203", Date: date, Name: "gap_pct", Value: 5},
	}

	events := DetectVolumeSpikes(features)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first := events[0]
	if first.Code != "7203" || first.Type != "VOL_SPIKE" {
		t.Errorf("unexpected event %+v", first)
	}
	if first.ScoreRaw == nil || math.Abs(*first.ScoreRaw-0.5) > 1e-9 {
		t.Errorf("ScoreRaw = %v, want 0.5", first.ScoreRaw)
	}
	if first.Title != "出来高急増" || first.Source != "volume_rule" {
		t.Errorf("unexpected title/source %q/%q", first.Title, first.Source)
	}
	if first.Summary != "volume_z=2.50" {
		t.Errorf("Summary = %q", first.Summary)
	}

	capped := events[1]
	if capped.ScoreRaw == nil || *capped.ScoreRaw != 1.0 {
		t.Errorf("score above 5 sigma must cap at 1, got %v", capped.ScoreRaw)
	}
}

func TestNewsEvents(t *testing.T) {
	published := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		polarity  Polarity
		wantScore float64
		wantTag   string
	}{
		{PolarityPositive, 0.7, "NEWS_POS"},
		{PolarityNegative, 0.3, "NEWS_NEG"},
		{PolarityNeutral, 0.4, "NEWS_NEU"},
	}

	for _, tt := range tests {
		events := NewsEvents([]NewsItem{{
			Code: "7203", Title: "headline", PublishedAt: published, Polarity: tt.polarity,
		}})
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		ev := events[0]
		if ev.Type != "NEWS" {
			t.Errorf("Type = %q, want NEWS", ev.Type)
		}
		if ev.ScoreRaw == nil || *ev.ScoreRaw != tt.wantScore {
			t.Errorf("polarity %s: ScoreRaw = %v, want %v", tt.polarity, ev.ScoreRaw, tt.wantScore)
		}
		wantID := "7203-2026-03-10-" + tt.wantTag + "-news"
		if ev.ID != wantID {
			t.Errorf("ID = %q, want %q", ev.ID, wantID)
		}
	}
}

func TestInferPolarity(t *testing.T) {
	tests := []struct {
		text string
		want Polarity
	}{
		{"業績予想を上方修正", PolarityPositive},
		{"増配を発表", PolarityPositive},
		{"最高益を更新", PolarityPositive},
		{"通期予想を下方修正", PolarityNegative},
		{"減益の見通し", PolarityNegative},
		{"赤字転落", PolarityNegative},
		{"新製品を発表", PolarityNeutral},
	}

	for _, tt := range tests {
		if got := InferPolarity(tt.text); got != tt.want {
			t.Errorf("InferPolarity(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
