package models

import (
	"strings"
	"testing"
	"time"
)

func TestFullCaption(t *testing.T) {
	p := Post{Caption: "Sunset over the bay", Hashtags: "#sunset #bay"}
	got := p.FullCaption()
	want := "Sunset over the bay\n\n#sunset #bay"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFullCaptionHashtagsOnly(t *testing.T) {
	p := Post{Hashtags: "#late"}
	if got := p.FullCaption(); got != "#late" {
		t.Errorf("Expected hashtags only, got %q", got)
	}
}

func TestFullCaptionEmpty(t *testing.T) {
	var p Post
	if got := p.FullCaption(); got != "" {
		t.Errorf("Expected empty caption, got %q", got)
	}
}

func TestTruncateErrorSummaryShort(t *testing.T) {
	if got := TruncateErrorSummary("boom"); got != "boom" {
		t.Errorf("Expected unchanged summary, got %q", got)
	}
}

func TestTruncateErrorSummaryLong(t *testing.T) {
	long := strings.Repeat("x", MaxErrorSummaryLength+17)
	got := TruncateErrorSummary(long)
	if len([]rune(got)) != MaxErrorSummaryLength {
		t.Errorf("Expected summary capped at %d, got %d", MaxErrorSummaryLength, len([]rune(got)))
	}
}

func TestTruncateErrorSummaryExactBoundary(t *testing.T) {
	exact := strings.Repeat("y", MaxErrorSummaryLength)
	if got := TruncateErrorSummary(exact); got != exact {
		t.Errorf("Expected boundary-length summary unchanged")
	}
}

func TestWireTimeIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2026, 3, 14, 10, 30, 0, 0, loc)
	got := WireTime(in)
	if got != "2026-03-14T08:30:00Z" {
		t.Errorf("Expected UTC RFC3339 timestamp, got %q", got)
	}
}

func TestSkipOutcome(t *testing.T) {
	o := Skip("token not configured")
	if o.Published {
		t.Errorf("Expected skip outcome to not be published")
	}
	if o.SkipReason != "token not configured" {
		t.Errorf("Expected skip reason to carry through, got %q", o.SkipReason)
	}
}
