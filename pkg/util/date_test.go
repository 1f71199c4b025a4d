package util

import (
	"testing"
	"time"
)

func TestYearTarget(t *testing.T) {
	got := YearTarget(2005)
	want := time.Date(2005, time.January, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected target %v", got)
	}
}

func TestYears(t *testing.T) {
	ys := Years(2000, 2002)
	if len(ys) != 3 || ys[0] != 2000 || ys[2] != 2002 {
		t.Fatalf("unexpected years %v", ys)
	}
	if got := Years(2002, 2000); got != nil {
		t.Fatalf("expected nil for inverted range, got %v", got)
	}
}

func TestYearKey(t *testing.T) {
	if got := YearKey(2005); got != "2005" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestParseTime(t *testing.T) {
	if got, ok := ParseTime("2005-04-15"); !ok || got.Month() != time.April {
		t.Fatalf("date-only parse failed: %v %v", got, ok)
	}
	if got, ok := ParseTime("2005-04-15T10:30:00Z"); !ok || got.Hour() != 10 {
		t.Fatalf("rfc3339 parse failed: %v %v", got, ok)
	}
	if _, ok := ParseTime(""); ok {
		t.Fatal("empty string should not parse")
	}
	if _, ok := ParseTime("15/04/2005"); ok {
		t.Fatal("unknown layout should not parse")
	}
}
