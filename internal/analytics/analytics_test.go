package analytics

import (
	"strings"
	"testing"
	"time"

	"turbolearn/internal/storage"
)

func TestAnalyzeDailyLogs(t *testing.T) {
	day := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)
	events := []storage.Event{
		{Timestamp: day.Add(2 * time.Hour), UserID: "alice", Provider: "google", UserMessage: "q1", AssistantResponse: "a1"},
		{Timestamp: day.Add(2 * time.Hour), UserID: "alice", Provider: "groq", UserMessage: "q1", AssistantResponse: "a1"},
		{Timestamp: day.Add(3 * time.Hour), UserID: "bob", Provider: "google", UserMessage: "q2", AssistantResponse: "a2"},
		// outside the target day
		{Timestamp: day.Add(25 * time.Hour), UserID: "carol", Provider: "google", UserMessage: "q3", AssistantResponse: "a3"},
		{Timestamp: day.Add(-time.Hour), UserID: "dave", Provider: "groq", UserMessage: "q4", AssistantResponse: "a4"},
		// system record without a user message does not count
		{Timestamp: day.Add(4 * time.Hour), UserID: "alice", Provider: "google"},
	}

	stats := AnalyzeDailyLogs(events, day.Add(12*time.Hour))

	if stats.Date != "2025-11-05" {
		t.Fatalf("date: %s", stats.Date)
	}
	if stats.TotalMessages != 3 {
		t.Fatalf("total: want 3, got %d", stats.TotalMessages)
	}
	if stats.UniqueUsers != 2 {
		t.Fatalf("unique users: want 2, got %d", stats.UniqueUsers)
	}
	if stats.ByProvider["google"] != 2 || stats.ByProvider["groq"] != 1 {
		t.Fatalf("provider split: %+v", stats.ByProvider)
	}
	alice := stats.UserStats["alice"]
	if alice.Messages != 2 || alice.ByProvider["google"] != 1 || alice.ByProvider["groq"] != 1 {
		t.Fatalf("alice stats: %+v", alice)
	}
}

func TestFormatReport(t *testing.T) {
	stats := &DailyStats{
		Date:          "2025-11-05",
		TotalMessages: 3,
		UniqueUsers:   2,
		ByProvider:    map[string]int{"google": 2, "groq": 1},
	}
	out := FormatReport(stats)
	for _, want := range []string{"2025-11-05", "Messages: 3", "google: 2", "groq: 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
