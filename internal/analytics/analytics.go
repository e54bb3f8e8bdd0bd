package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"turbolearn/internal/storage"
)

// DailyStats aggregates one day of interaction events.
type DailyStats struct {
	Date          string               `json:"date"`
	TotalMessages int                  `json:"total_messages"`
	UniqueUsers   int                  `json:"unique_users"`
	ByProvider    map[string]int       `json:"by_provider"`
	UserStats     map[string]UserStats `json:"user_stats"`
}

type UserStats struct {
	UserID     string         `json:"user_id"`
	Messages   int            `json:"messages"`
	ByProvider map[string]int `json:"by_provider"`
}

// AnalyzeDailyLogs computes usage stats for the given date.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:       startOfDay.Format("2006-01-02"),
		ByProvider: make(map[string]int),
		UserStats:  make(map[string]UserStats),
	}
	uniqueUsers := make(map[string]bool)

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.UserMessage == "" {
			continue
		}
		stats.TotalMessages++
		uniqueUsers[event.UserID] = true
		if event.Provider != "" {
			stats.ByProvider[event.Provider]++
		}

		userStat, ok := stats.UserStats[event.UserID]
		if !ok {
			userStat = UserStats{UserID: event.UserID, ByProvider: make(map[string]int)}
		}
		userStat.Messages++
		if event.Provider != "" {
			userStat.ByProvider[event.Provider]++
		}
		stats.UserStats[event.UserID] = userStat
	}

	stats.UniqueUsers = len(uniqueUsers)
	return stats
}

// FormatReport renders stats as a short operator-readable summary.
func FormatReport(stats *DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage report for %s\n", stats.Date)
	fmt.Fprintf(&b, "Messages: %d, unique users: %d\n", stats.TotalMessages, stats.UniqueUsers)

	providers := make([]string, 0, len(stats.ByProvider))
	for p := range stats.ByProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		fmt.Fprintf(&b, "  %s: %d\n", p, stats.ByProvider[p])
	}
	return b.String()
}
