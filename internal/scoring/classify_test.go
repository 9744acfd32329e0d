package scoring

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		score     *float64
		wantTag   Tag
		wantOK    bool
	}{
		{name: "guide up", eventType: EventTypeGuideUp, wantTag: TagGuideUp, wantOK: true},
		{name: "tdnet", eventType: EventTypeTdnet, wantTag: TagTdnet, wantOK: true},
		{name: "volume spike", eventType: EventTypeVolSpike, wantTag: TagVolSpike, wantOK: true},
		{name: "earnings", eventType: EventTypeEarnings, wantTag: TagEarningsPositive, wantOK: true},
		{name: "news positive", eventType: EventTypeNews, score: Float(0.7), wantTag: TagNewsPos, wantOK: true},
		{name: "news positive boundary", eventType: EventTypeNews, score: Float(0.6), wantTag: TagNewsPos, wantOK: true},
		{name: "news negative", eventType: EventTypeNews, score: Float(0.2), wantTag: TagNewsNeg, wantOK: true},
		{name: "news negative boundary", eventType: EventTypeNews, score: Float(0.3), wantTag: TagNewsNeg, wantOK: true},
		{name: "news neutral", eventType: EventTypeNews, score: Float(0.5), wantTag: TagNewsNeu, wantOK: true},
		{name: "news missing score defaults neutral", eventType: EventTypeNews, wantTag: TagNewsNeu, wantOK: true},
		{name: "news score clamped above", eventType: EventTypeNews, score: Float(3.2), wantTag: TagNewsPos, wantOK: true},
		{name: "news score clamped below", eventType: EventTypeNews, score: Float(-1), wantTag: TagNewsNeg, wantOK: true},
		{name: "unknown type excluded", eventType: EventType("DIVIDEND"), wantOK: false},
		{name: "empty type excluded", eventType: EventType(""), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := Classify(tt.eventType, tt.score)
			if ok != tt.wantOK {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && tag != tt.wantTag {
				t.Errorf("Classify() tag = %s, want %s", tag, tt.wantTag)
			}
		})
	}
}
