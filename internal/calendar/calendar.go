// Package calendar decides whether a date is a Korean exchange business day.
package calendar

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

//go:embed holidays_kr.yaml
var holidaysKR []byte

type holidayFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// KST returns the Asia/Seoul location, or a fixed UTC+9 zone when tzdata is unavailable.
func KST() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// Calendar holds the KRX closure dates.
type Calendar struct {
	loc      *time.Location
	holidays map[string]string // "2006-01-02" -> name
	lastYear int               // last year of the embedded table
}

// New loads the embedded holiday table and adds extra closure dates ("2006-01-02").
func New(extra []string) (*Calendar, error) {
	var f holidayFile
	if err := yaml.Unmarshal(holidaysKR, &f); err != nil {
		return nil, fmt.Errorf("parse embedded holidays: %w", err)
	}
	c := &Calendar{loc: KST(), holidays: make(map[string]string, len(f.Holidays)+len(extra))}
	for _, h := range f.Holidays {
		d, err := time.Parse(dateLayout, h.Date)
		if err != nil {
			return nil, fmt.Errorf("embedded holiday %q: %w", h.Date, err)
		}
		c.holidays[h.Date] = h.Name
		if d.Year() > c.lastYear {
			c.lastYear = d.Year()
		}
	}
	for _, d := range extra {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return nil, fmt.Errorf("extra holiday %q: %w", d, err)
		}
		c.holidays[d] = "configured holiday"
	}
	return c, nil
}

// CoveredThrough returns the last year the embedded holiday table knows about.
func (c *Calendar) CoveredThrough() int { return c.lastYear }

// Location returns the calendar's time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Today returns the calendar date of t in KST, at midnight.
func (c *Calendar) Today(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// IsBusinessDay reports whether t (evaluated in KST) is a weekday that is not a
// holiday. When it is not, reason says why.
func (c *Calendar) IsBusinessDay(t time.Time) (ok bool, reason string) {
	t = t.In(c.loc)
	if t.Year() > c.lastYear {
		log.Warn().
			Int("year", t.Year()).
			Int("covered_through", c.lastYear).
			Msg("holiday table does not cover this year; only weekends and EXTRA_HOLIDAYS are closed")
	}
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false, "weekend"
	}
	if name, found := c.holidays[t.Format(dateLayout)]; found {
		return false, "holiday: " + name
	}
	return true, ""
}
