package scheduler

import (
	"testing"
	"time"
)

func TestReminderWindows(t *testing.T) {
	now := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	windows := reminderWindows(now)
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}

	day := windows[0]
	if day.Name != "24h" {
		t.Fatalf("first window = %q", day.Name)
	}
	if !day.From.Equal(now.Add(23 * time.Hour)) || !day.To.Equal(now.Add(25 * time.Hour)) {
		t.Fatalf("24h window = [%s, %s]", day.From, day.To)
	}

	hour := windows[1]
	if hour.Name != "1h" {
		t.Fatalf("second window = %q", hour.Name)
	}
	if !hour.From.Equal(now.Add(50 * time.Minute)) || !hour.To.Equal(now.Add(70 * time.Minute)) {
		t.Fatalf("1h window = [%s, %s]", hour.From, hour.To)
	}
}
