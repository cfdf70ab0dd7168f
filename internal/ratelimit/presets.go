// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package ratelimit

import (
	"fmt"
	"sort"
)

// Preset is one named limit inside an application bundle.
type Preset struct {
	Key      string
	Capacity float64
	Rate     float64
	Period   Period
}

// appPresets bundles the limits each automation app relies on. This mapping
// is pure configuration; applying a bundle just calls ConfigureLimit for
// every entry.
var appPresets = map[string][]Preset{
	"email_processor": {
		{Key: "email_send", Capacity: 10, Rate: 10, Period: PerHour},
		{Key: "sms_send", Capacity: 1, Rate: 0.2, Period: PerMinute}, // 1 per 5 minutes
		{Key: "gmail_api", Capacity: 250, Rate: 250, Period: PerSecond},
		{Key: "claude_api", Capacity: 30, Rate: 30, Period: PerMinute},
	},
	"budget_tracker": {
		{Key: "ynab_api", Capacity: 200, Rate: 200, Period: PerHour},
		{Key: "email_send", Capacity: 5, Rate: 5, Period: PerHour},
	},
	"task_sync": {
		{Key: "todoist_api", Capacity: 450, Rate: 450, Period: PerMinute},
		{Key: "toggl_api", Capacity: 60, Rate: 60, Period: PerMinute},
		{Key: "email_send", Capacity: 5, Rate: 5, Period: PerHour},
	},
}

// ApplyAppPreset configures every limit in the named application bundle and
// returns how many buckets were configured.
func ApplyAppPreset(l *Limiter, app string) (int, error) {
	presets, ok := appPresets[app]
	if !ok {
		return 0, fmt.Errorf("unknown application %q", app)
	}
	for _, p := range presets {
		if err := l.ConfigureLimit(p.Key, p.Capacity, p.Rate, p.Period); err != nil {
			return 0, fmt.Errorf("preset %s/%s: %w", app, p.Key, err)
		}
	}
	return len(presets), nil
}

// AppPresets lists the known application bundle names, sorted.
func AppPresets() []string {
	names := make([]string, 0, len(appPresets))
	for name := range appPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
