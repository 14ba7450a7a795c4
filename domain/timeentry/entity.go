package timeentry

import (
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	TypeBO   EntryType = "BO"
	TypeSite EntryType = "SITE"
)

// TimeEntry records hours of one labour category on one day. A zero-hour row
// is kept (it records that a value was cleared); readers filter it out.
type TimeEntry struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ProjectID types.ID  `json:"projectId" gorm:"unique_index:uni_time_entry"`
	Year      int       `json:"year" gorm:"unique_index:uni_time_entry"`
	Month     int       `json:"month" gorm:"unique_index:uni_time_entry"`
	Day       int       `json:"day" gorm:"unique_index:uni_time_entry"`
	Type      EntryType `json:"type" gorm:"unique_index:uni_time_entry"`
	HourSlot  int       `json:"hourSlot" gorm:"unique_index:uni_time_entry"`

	Hours   decimal.Decimal `json:"hours" sql:"type:DECIMAL(6,2)"`
	Comment string          `json:"comment"`

	UpdatedBy  string    `json:"updatedBy"`
	UpdateTime time.Time `json:"updateTime"`
}

func (e *TimeEntry) TableName() string {
	return "time_entries"
}

func (e *TimeEntry) Key() string {
	return fmt.Sprintf("%s:%d:%d:%d:%s:%d", e.ProjectID.String(), e.Year, e.Month, e.Day, e.Type, e.HourSlot)
}

type TimeEntryUpsert struct {
	ProjectID types.ID        `json:"projectId" binding:"required"`
	Year      int             `json:"year" binding:"required,min=2000,max=2999"`
	Month     int             `json:"month" binding:"required,min=1,max=12"`
	Day       int             `json:"day" binding:"required,min=1,max=31"`
	Type      EntryType       `json:"type" binding:"required,oneof=BO SITE"`
	Hours     decimal.Decimal `json:"hours"`
	HourSlot  int             `json:"hourSlot" binding:"min=0,max=23"`
	Comment   string          `json:"comment" binding:"lte=1000"`
}

type MonthQuery struct {
	ProjectID   types.ID `form:"projectId" json:"projectId" binding:"required"`
	Year        int      `form:"year" json:"year" binding:"required,min=2000,max=2999"`
	Month       int      `form:"month" json:"month" binding:"required,min=1,max=12"`
	IncludeZero bool     `form:"includeZero" json:"includeZero"`
}

// NonZero drops cleared rows.
func NonZero(entries []TimeEntry) []TimeEntry {
	r := make([]TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Hours.IsPositive() {
			r = append(r, e)
		}
	}
	return r
}
