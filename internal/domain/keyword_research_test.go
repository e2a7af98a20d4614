package domain

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"
)

func TestAppendLogEntryPreservesOrder(t *testing.T) {
	r := &KeywordResearch{}
	now := time.Now().UTC()
	r.AppendLogEntry(ProgressEntry{Time: now, Message: "first", Indent: 0})
	r.AppendLogEntry(ProgressEntry{Time: now, Message: "second", Indent: 1})
	r.AppendLogEntry(ProgressEntry{Time: now, Message: "third", Indent: 0})

	entries := r.LogEntries()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].Message != want {
			t.Fatalf("entry %d: want=%q got=%q", i, want, entries[i].Message)
		}
	}
	if entries[1].Indent != 1 {
		t.Fatalf("indent lost: %+v", entries[1])
	}
}

func TestLogEntriesToleratesMalformedData(t *testing.T) {
	r := &KeywordResearch{ProgressLog: datatypes.JSON(`{"not":"an array"`)}
	if got := r.LogEntries(); got != nil {
		t.Fatalf("malformed log reads as empty, got %v", got)
	}
}

func TestCompetitorURLs(t *testing.T) {
	raw, _ := json.Marshal([]string{"https://a.com", "  ", "https://b.com "})
	p := &Project{Competitors: datatypes.JSON(raw)}
	urls := p.CompetitorURLs()
	if len(urls) != 2 {
		t.Fatalf("blank entries are dropped: want=2 got=%d", len(urls))
	}
	if urls[1] != "https://b.com" {
		t.Fatalf("urls should be trimmed, got %q", urls[1])
	}
	if (&Project{}).CompetitorURLs() != nil {
		t.Fatalf("no competitors decodes to nil")
	}
}
