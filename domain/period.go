package domain

import (
	"fmt"
	"time"
)

// Period is an optional (year, month) billing period. Bordereaux and
// snapshots may carry no period at all.
type Period struct {
	Year  int `json:"year" binding:"required,min=2000,max=2999"`
	Month int `json:"month" binding:"required,min=1,max=12"`
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Label is the human readable form used in documents and messages.
func (p Period) Label() string {
	return fmt.Sprintf("%02d/%04d", p.Month, p.Year)
}

func (p Period) Valid() bool {
	return p.Year >= 2000 && p.Year <= 2999 && p.Month >= 1 && p.Month <= 12
}

func (p Period) DaysInMonth() int {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PeriodKey renders an optional period for composite keys.
func PeriodKey(p *Period) string {
	if p == nil {
		return "-"
	}
	return p.String()
}

// PeriodOf rebuilds an optional period from nullable columns.
func PeriodOf(year, month *int) *Period {
	if year == nil || month == nil {
		return nil
	}
	return &Period{Year: *year, Month: *month}
}

// PeriodColumns splits an optional period into nullable columns.
func PeriodColumns(p *Period) (*int, *int) {
	if p == nil {
		return nil, nil
	}
	y, m := p.Year, p.Month
	return &y, &m
}
