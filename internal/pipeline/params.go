package pipeline

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for report dates.
const DateLayout = "2006-01-02"

// PresetCustom selects an explicit start/end pair.
const PresetCustom = "custom"

// presetDays maps named date-range presets to a day offset from today.
var presetDays = map[string]int{
	"last_7_days":    7,
	"last_30_days":   30,
	"last_3_months":  90,
	"last_6_months":  180,
	"last_12_months": 365,
}

// devices are the recognized device filters; "all" means no filter.
var devices = map[string]bool{
	"all":     true,
	"desktop": true,
	"mobile":  true,
	"tablet":  true,
}

// ResolveDateRange turns a preset or an explicit pair into concrete
// dates. An empty preset with no dates defaults to the last 7 days.
func ResolveDateRange(preset, start, end string, today time.Time) (string, string, error) {
	if preset == "" && start == "" && end == "" {
		preset = "last_7_days"
	}

	if preset != "" && preset != PresetCustom {
		days, ok := presetDays[preset]
		if !ok {
			return "", "", fmt.Errorf("unknown date range preset %q", preset)
		}
		return today.AddDate(0, 0, -days).Format(DateLayout), today.Format(DateLayout), nil
	}

	if start == "" || end == "" {
		// The custom preset without both dates falls back to a week.
		return today.AddDate(0, 0, -7).Format(DateLayout), today.Format(DateLayout), nil
	}

	startAt, err := time.Parse(DateLayout, start)
	if err != nil {
		return "", "", fmt.Errorf("invalid start date %q: %w", start, err)
	}
	endAt, err := time.Parse(DateLayout, end)
	if err != nil {
		return "", "", fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if startAt.After(endAt) {
		return "", "", fmt.Errorf("start date %s follows end date %s", start, end)
	}
	return start, end, nil
}

// ParseDevice validates a device filter, treating empty as "all".
func ParseDevice(s string) (string, error) {
	if s == "" {
		return "all", nil
	}
	if !devices[s] {
		return "", fmt.Errorf("unknown device %q (want all, desktop, mobile or tablet)", s)
	}
	return s, nil
}
