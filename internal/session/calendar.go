package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/richgang/indice-killer/internal/models"
)

// Clock returns the current time. Calendars take one so tests can pin the wall clock.
type Clock func() time.Time

// MarketHours is an exchange's regular session in UTC, [open, close)
type MarketHours struct {
	Exchange    string
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

func (h MarketHours) openMinutes() int  { return h.OpenHour*60 + h.OpenMinute }
func (h MarketHours) closeMinutes() int { return h.CloseHour*60 + h.CloseMinute }

// Window is a trading-session window: active while the hour, shifted by
// UTCOffset, lies in [StartHour, EndHour] inclusive.
type Window struct {
	Name      string
	Label     string
	StartHour int
	EndHour   int
	UTCOffset int
}

func (w Window) contains(t time.Time) bool {
	hour := ((t.UTC().Hour()+w.UTCOffset)%24 + 24) % 24
	return hour >= w.StartHour && hour <= w.EndHour
}

// Status is one symbol's session state
type Status struct {
	Active bool   `json:"active"`
	Name   string `json:"name"`
	Window string `json:"window"`
}

// DefaultMarketHours are the cash-session hours of the underlying exchanges
func DefaultMarketHours() map[string]MarketHours {
	return map[string]MarketHours{
		models.SymbolUS30:  {Exchange: "NYSE", OpenHour: 14, OpenMinute: 30, CloseHour: 21},
		models.SymbolUS100: {Exchange: "NASDAQ", OpenHour: 14, OpenMinute: 30, CloseHour: 21},
		models.SymbolGER30: {Exchange: "XETRA", OpenHour: 8, CloseHour: 16, CloseMinute: 30},
	}
}

// DefaultWindows are the signal-generation windows per symbol
func DefaultWindows() map[string]Window {
	return map[string]Window{
		models.SymbolGER30: {Name: "Frankfurt Session", Label: "09:00-10:30 SAST", StartHour: 7, EndHour: 10, UTCOffset: 2},
		models.SymbolUS30:  {Name: "NY Session", Label: "NY Open (14:30-17:00 UTC)", StartHour: 13, EndHour: 17},
		models.SymbolUS100: {Name: "NY Session", Label: "NY Open (14:30-17:00 UTC)", StartHour: 13, EndHour: 17},
	}
}

// Calendar answers market-hours and session questions for symbols
type Calendar struct {
	clock   Clock
	hours   map[string]MarketHours
	windows map[string]Window
}

// NewCalendar creates a calendar with the default tables. A nil clock uses time.Now.
func NewCalendar(clock Clock) *Calendar {
	if clock == nil {
		clock = time.Now
	}
	return &Calendar{
		clock:   clock,
		hours:   DefaultMarketHours(),
		windows: DefaultWindows(),
	}
}

// WithWindows replaces session windows for the given symbols
func (c *Calendar) WithWindows(windows map[string]Window) *Calendar {
	for symbol, w := range windows {
		c.windows[symbol] = w
	}
	return c
}

// Now returns the calendar's current time
func (c *Calendar) Now() time.Time {
	return c.clock()
}

// IsMarketOpen reports whether symbol's exchange is open at now.
// Unknown symbols use the US30 hours.
func (c *Calendar) IsMarketOpen(symbol string, now time.Time) (bool, models.MarketStatus) {
	now = now.UTC()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, models.MarketWeekend
	}

	hours, ok := c.hours[symbol]
	if !ok {
		hours = c.hours[models.SymbolUS30]
	}

	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes < hours.openMinutes():
		return false, models.MarketPreMarket
	case minutes >= hours.closeMinutes():
		return false, models.MarketAfterHours
	default:
		return true, models.MarketOpen
	}
}

// SessionStatus returns every configured symbol's session state at now
func (c *Calendar) SessionStatus(now time.Time) map[string]Status {
	result := make(map[string]Status, len(c.windows))
	for symbol, w := range c.windows {
		result[symbol] = Status{
			Active: w.contains(now),
			Name:   w.Name,
			Window: w.Label,
		}
	}
	return result
}

// Session returns one symbol's session state. Symbols without a window are
// never active.
func (c *Calendar) Session(symbol string, now time.Time) Status {
	w, ok := c.windows[symbol]
	if !ok {
		return Status{}
	}
	return Status{Active: w.contains(now), Name: w.Name, Window: w.Label}
}

// ParseOverrides parses "SYMBOL=start-end@offset" entries into windows. The
// name and label of an existing default window are kept.
func ParseOverrides(entries []string) (map[string]Window, error) {
	defaults := DefaultWindows()
	result := make(map[string]Window, len(entries))

	for _, entry := range entries {
		symbol, hours, ok := strings.Cut(entry, "=")
		if !ok || symbol == "" {
			return nil, fmt.Errorf("session override %q: expected SYMBOL=start-end[@offset]", entry)
		}
		offset := 0
		if rng, off, hasOffset := strings.Cut(hours, "@"); hasOffset {
			v, err := strconv.Atoi(off)
			if err != nil {
				return nil, fmt.Errorf("session override %q: bad offset: %w", entry, err)
			}
			offset = v
			hours = rng
		}
		startStr, endStr, ok := strings.Cut(hours, "-")
		if !ok {
			return nil, fmt.Errorf("session override %q: expected start-end hours", entry)
		}
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, fmt.Errorf("session override %q: bad start hour: %w", entry, err)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, fmt.Errorf("session override %q: bad end hour: %w", entry, err)
		}
		if start < 0 || end > 23 || start > end {
			return nil, fmt.Errorf("session override %q: hours must satisfy 0 <= start <= end <= 23", entry)
		}

		w := defaults[symbol]
		if w.Name == "" {
			w.Name = symbol + " Session"
		}
		w.StartHour, w.EndHour, w.UTCOffset = start, end, offset
		w.Label = fmt.Sprintf("%02d:00-%02d:59 UTC%+d", start, end, offset)
		result[symbol] = w
	}
	return result, nil
}
