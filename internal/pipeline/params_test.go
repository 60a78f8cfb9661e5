package pipeline

import (
	"testing"
	"time"
)

func TestResolveDateRange_Presets(t *testing.T) {
	today := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		preset    string
		wantStart string
	}{
		{"last_7_days", "2026-08-19"},
		{"last_30_days", "2026-07-27"},
		{"last_3_months", "2026-05-28"},
		{"last_6_months", "2026-02-27"},
		{"last_12_months", "2025-08-26"},
	}
	for _, tc := range cases {
		start, end, err := ResolveDateRange(tc.preset, "", "", today)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.preset, err)
		}
		if start != tc.wantStart {
			t.Errorf("%s: expected start %s, got %s", tc.preset, tc.wantStart, start)
		}
		if end != "2026-08-26" {
			t.Errorf("%s: expected end today, got %s", tc.preset, end)
		}
	}
}

func TestResolveDateRange_Custom(t *testing.T) {
	today := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	start, end, err := ResolveDateRange(PresetCustom, "2026-01-01", "2026-02-01", today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "2026-01-01" || end != "2026-02-01" {
		t.Errorf("explicit dates not honored: %s - %s", start, end)
	}

	// Custom without dates falls back to the last week.
	start, end, err = ResolveDateRange(PresetCustom, "", "", today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "2026-08-19" || end != "2026-08-26" {
		t.Errorf("expected week fallback, got %s - %s", start, end)
	}
}

func TestResolveDateRange_Errors(t *testing.T) {
	today := time.Now()

	if _, _, err := ResolveDateRange("last_fortnight", "", "", today); err == nil {
		t.Errorf("expected error for unknown preset")
	}
	if _, _, err := ResolveDateRange(PresetCustom, "not-a-date", "2026-02-01", today); err == nil {
		t.Errorf("expected error for malformed start date")
	}
	if _, _, err := ResolveDateRange(PresetCustom, "2026-03-01", "2026-02-01", today); err == nil {
		t.Errorf("expected error when start follows end")
	}
}

func TestResolveDateRange_DefaultsToWeek(t *testing.T) {
	today := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	start, end, err := ResolveDateRange("", "", "", today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "2026-08-19" || end != "2026-08-26" {
		t.Errorf("expected last 7 days by default, got %s - %s", start, end)
	}
}

func TestParseDevice(t *testing.T) {
	if d, err := ParseDevice(""); err != nil || d != "all" {
		t.Errorf("empty device should mean all, got %q (%v)", d, err)
	}
	for _, d := range []string{"all", "desktop", "mobile", "tablet"} {
		if got, err := ParseDevice(d); err != nil || got != d {
			t.Errorf("device %s rejected: %v", d, err)
		}
	}
	if _, err := ParseDevice("smartwatch"); err == nil {
		t.Errorf("expected error for unknown device")
	}
}
