package natural

import (
	"testing"
	"time"
)

func TestParseAbsoluteTime(t *testing.T) {
	p := New()
	base := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

	got, err := p.Parse("9am", base)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC).Unix()
	if got != want {
		t.Errorf("Parse(9am) = %d, want %d", got, want)
	}
}

func TestParseRelativeTime(t *testing.T) {
	p := New()
	base := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

	got, err := p.Parse("in 20 minutes", base)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := base.Add(20 * time.Minute).Unix()
	if got != want {
		t.Errorf("Parse(in 20 minutes) = %d, want %d", got, want)
	}
}

func TestParseUnrecognized(t *testing.T) {
	p := New()
	if _, err := p.Parse("not a time expression at all", time.Now()); err == nil {
		t.Error("Parse should fail on unrecognized input")
	}
}
