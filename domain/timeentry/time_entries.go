package timeentry

import (
	"errors"
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/lock"
	"pilotage/idgen"
	"pilotage/locker"
	"pilotage/persistence"
	"pilotage/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

var (
	entryIdWorker = idgen.NewWorker()

	upsertValidator = newValidator()

	MaxHoursPerEntry = decimal.NewFromInt(8)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

type TimeEntryManagerTraits interface {
	Upsert(u TimeEntryUpsert, sec *session.Context) (*TimeEntry, error)
	ListMonth(q MonthQuery, sec *session.Context) ([]TimeEntry, error)
	ListAll(projectID types.ID, sec *session.Context) ([]TimeEntry, error)
}

type TimeEntryManager struct {
	dataSource *persistence.DataSourceManager
	locker     locker.Locker
}

func NewTimeEntryManager(ds *persistence.DataSourceManager, l locker.Locker) *TimeEntryManager {
	return &TimeEntryManager{dataSource: ds, locker: l}
}

// Upsert writes the hours of one (project, day, type, slot) tuple. The lock
// gate and the write share one transaction and the period key, so a
// concurrent Lock cannot slip between them.
func (m *TimeEntryManager) Upsert(u TimeEntryUpsert, sec *session.Context) (*TimeEntry, error) {
	if err := ValidateUpsert(u); err != nil {
		return nil, err
	}
	if !sec.CanManageProject(u.ProjectID) {
		return nil, bizerror.ErrForbidden
	}

	var result *TimeEntry
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, lock.PeriodKey(u.ProjectID, u.Year, u.Month), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			if err := domain.AssertProjectExists(tx, u.ProjectID); err != nil {
				return err
			}
			if err := lock.AssertNotLocked(tx, u.ProjectID, u.Year, u.Month); err != nil {
				return err
			}

			entry, err := upsertEntry(tx, u, sec)
			if err != nil {
				return err
			}
			if _, err := rec.Write(tx, audit.Entry{
				EntityType: audit.EntityTimeEntry, EntityID: entry.ID.String(), Action: audit.ActionUpsert,
				Diff: audit.Diff{
					"projectId": u.ProjectID.String(), "year": u.Year, "month": u.Month, "day": u.Day,
					"type": string(u.Type), "hourSlot": u.HourSlot, "hours": entry.Hours.String(),
				}}, sec); err != nil {
				return err
			}
			result = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

func upsertEntry(tx *gorm.DB, u TimeEntryUpsert, sec *session.Context) (*TimeEntry, error) {
	var entry TimeEntry
	err := tx.Where("project_id = ? AND year = ? AND month = ? AND day = ? AND type = ? AND hour_slot = ?",
		u.ProjectID, u.Year, u.Month, u.Day, u.Type, u.HourSlot).First(&entry).Error
	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = TimeEntry{
			ID: idgen.NextID(entryIdWorker), ProjectID: u.ProjectID, Year: u.Year, Month: u.Month, Day: u.Day,
			Type: u.Type, HourSlot: u.HourSlot, Hours: u.Hours, Comment: u.Comment,
			UpdatedBy: sec.ActorName(), UpdateTime: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, err
		}
		return &entry, nil
	}
	if err != nil {
		return nil, err
	}

	entry.Hours = u.Hours
	entry.Comment = u.Comment
	entry.UpdatedBy = sec.ActorName()
	entry.UpdateTime = now
	if err := tx.Save(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ValidateUpsert guards the invariants the ledger depends on: hours within
// [0, 8] in hundredths, a calendar day that exists in the month.
func ValidateUpsert(u TimeEntryUpsert) error {
	if err := upsertValidator.Struct(u); err != nil {
		return &bizerror.ErrBadParam{Cause: err}
	}
	if u.Hours.IsNegative() || u.Hours.GreaterThan(MaxHoursPerEntry) {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("hours must be between 0 and %s", MaxHoursPerEntry)}
	}
	if !u.Hours.Equal(u.Hours.Round(2)) {
		return &bizerror.ErrBadParam{Cause: errors.New("hours must have at most two decimals")}
	}
	p := domain.Period{Year: u.Year, Month: u.Month}
	if u.Day > p.DaysInMonth() {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("day %d does not exist in %s", u.Day, p)}
	}
	return nil
}

func (m *TimeEntryManager) ListMonth(q MonthQuery, sec *session.Context) ([]TimeEntry, error) {
	if !sec.CanManageProject(q.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	entries, err := ListMonth(m.dataSource.GormDBWithContext(sec.TraceContext()), q.ProjectID, q.Year, q.Month)
	if err != nil {
		return nil, err
	}
	if !q.IncludeZero {
		entries = NonZero(entries)
	}
	return entries, nil
}

func (m *TimeEntryManager) ListAll(projectID types.ID, sec *session.Context) ([]TimeEntry, error) {
	if !sec.CanManageProject(projectID) {
		return nil, bizerror.ErrForbidden
	}
	return ListAll(m.dataSource.GormDBWithContext(sec.TraceContext()), projectID)
}

// ListMonth returns every row of the month, zero-hour rows included,
// ordered by (day, type, hour slot).
func ListMonth(db *gorm.DB, projectID types.ID, year, month int) ([]TimeEntry, error) {
	entries := []TimeEntry{}
	if err := db.Where("project_id = ? AND year = ? AND month = ?", projectID, year, month).
		Order("day ASC").Order("type ASC").Order("hour_slot ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListUntil returns every row up to and including the given month.
func ListUntil(db *gorm.DB, projectID types.ID, year, month int) ([]TimeEntry, error) {
	entries := []TimeEntry{}
	if err := db.Where("project_id = ? AND (year < ? OR (year = ? AND month <= ?))", projectID, year, year, month).
		Order("year ASC").Order("month ASC").Order("day ASC").Order("type ASC").Order("hour_slot ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func ListAll(db *gorm.DB, projectID types.ID) ([]TimeEntry, error) {
	entries := []TimeEntry{}
	if err := db.Where("project_id = ?", projectID).
		Order("year ASC").Order("month ASC").Order("day ASC").Order("type ASC").Order("hour_slot ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
