package alpaca

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// LatestFinishedTradingDay returns the most recent trading day whose session
// has ended (after 20:05 ET, once extended-hours bars have settled). It uses
// the Alpaca trading calendar API.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	now := time.Now().In(eastern)
	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	days := make([]string, len(calendar))
	for i, d := range calendar {
		days[i] = d.Date
	}
	return latestFinished(days, now)
}

// latestFinished picks the last calendar day that is over at now.
func latestFinished(days []string, now time.Time) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}
	today := now.Format(time.DateOnly)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		day, err := time.Parse(time.DateOnly, days[i])
		if err != nil {
			continue
		}
		if days[i] == today {
			if now.After(cutoff) {
				return day, nil
			}
			continue
		}
		if days[i] < today {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
