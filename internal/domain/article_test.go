package domain

import (
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
)

func TestOutlineTargetWordCountSumsSections(t *testing.T) {
	o := &Outline{Sections: []OutlineSection{
		{Heading: "Intro", TargetWords: 300},
		{Heading: "Body", TargetWords: 1000},
		{Heading: "Conclusion", TargetWords: 500},
	}}
	if got := o.TargetWordCount(); got != 1800 {
		t.Fatalf("target word count: want=1800 got=%d", got)
	}
}

func TestOutlineTargetWordCountDefaults(t *testing.T) {
	if got := (&Outline{}).TargetWordCount(); got != 2000 {
		t.Fatalf("empty outline defaults to 2000, got %d", got)
	}
	var nilOutline *Outline
	if got := nilOutline.TargetWordCount(); got != 2000 {
		t.Fatalf("nil outline defaults to 2000, got %d", got)
	}
	o := &Outline{Sections: []OutlineSection{{Heading: "No target"}}}
	if got := o.TargetWordCount(); got != 2000 {
		t.Fatalf("sections without targets default to 2000, got %d", got)
	}
}

func TestDecodeOutlineRoundTrip(t *testing.T) {
	o := &Outline{Title: "T", MetaDescription: "M", Sections: []OutlineSection{{Heading: "H", TargetWords: 100}}}
	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	a := &Article{Outline: datatypes.JSON(raw)}
	got := a.DecodeOutline()
	if got == nil || got.Title != "T" || len(got.Sections) != 1 {
		t.Fatalf("decode mismatch: %+v", got)
	}
	if (&Article{}).DecodeOutline() != nil {
		t.Fatalf("empty outline decodes to nil")
	}
}
