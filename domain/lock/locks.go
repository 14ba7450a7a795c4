package lock

import (
	"errors"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/idgen"
	"pilotage/locker"
	"pilotage/persistence"
	"pilotage/session"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var lockIdWorker = idgen.NewWorker()

type LockManagerTraits interface {
	IsLocked(projectID types.ID, year, month int) (bool, error)
	Lock(req PeriodLockRequest, sec *session.Context) (*PeriodLock, error)
	Unlock(req PeriodLockRequest, sec *session.Context) (*PeriodLock, error)
	QueryLocks(projectID types.ID, sec *session.Context) ([]PeriodLock, error)
}

type LockManager struct {
	dataSource *persistence.DataSourceManager
	locker     locker.Locker
}

func NewLockManager(ds *persistence.DataSourceManager, l locker.Locker) *LockManager {
	return &LockManager{dataSource: ds, locker: l}
}

func (m *LockManager) IsLocked(projectID types.ID, year, month int) (bool, error) {
	return IsLocked(m.dataSource.GormDB(), projectID, year, month)
}

// Lock is idempotent: each call sets locked=true and refreshes actor, time
// and reason. It writes one LOCK audit record.
func (m *LockManager) Lock(req PeriodLockRequest, sec *session.Context) (*PeriodLock, error) {
	if !sec.CanManageProject(req.ProjectID) {
		return nil, bizerror.ErrForbidden
	}

	var result *PeriodLock
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, PeriodKey(req.ProjectID, req.Year, req.Month), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			if err := domain.AssertProjectExists(tx, req.ProjectID); err != nil {
				return err
			}
			l, err := LockInTx(tx, req.ProjectID, req.Year, req.Month, sec.ActorName(), req.Reason)
			if err != nil {
				return err
			}
			if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityPeriodLock, EntityID: l.ID.String(),
				Action: audit.ActionLock, Diff: periodDiff(l)}, sec); err != nil {
				return err
			}
			result = l
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

// Unlock is an administrator action and requires a reason. It always writes
// one UNLOCK audit record.
func (m *LockManager) Unlock(req PeriodLockRequest, sec *session.Context) (*PeriodLock, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unlock reason is required")}
	}

	var result *PeriodLock
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, PeriodKey(req.ProjectID, req.Year, req.Month), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			if err := domain.AssertProjectExists(tx, req.ProjectID); err != nil {
				return err
			}
			l, err := UnlockInTx(tx, req.ProjectID, req.Year, req.Month, req.Reason, &rec, sec)
			result = l
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

func (m *LockManager) QueryLocks(projectID types.ID, sec *session.Context) ([]PeriodLock, error) {
	if !sec.CanManageProject(projectID) {
		return nil, bizerror.ErrForbidden
	}
	locks := []PeriodLock{}
	if err := m.dataSource.GormDB().Where("project_id = ?", projectID).
		Order("year ASC").Order("month ASC").Find(&locks).Error; err != nil {
		return nil, err
	}
	return locks, nil
}

func IsLocked(db *gorm.DB, projectID types.ID, year, month int) (bool, error) {
	l, err := findLock(db, projectID, year, month)
	if err != nil {
		return false, err
	}
	return l != nil && l.Locked, nil
}

// AssertNotLocked is the gate every time entry mutation passes through.
// It must run inside the transaction that performs the write.
func AssertNotLocked(tx *gorm.DB, projectID types.ID, year, month int) error {
	locked, err := IsLocked(tx, projectID, year, month)
	if err != nil {
		return err
	}
	if locked {
		return bizerror.ErrPeriodLocked
	}
	return nil
}

// LockInTx upserts the lock row without writing audit; the caller records
// the business action (LOCK or MONTH_CLOSE).
func LockInTx(tx *gorm.DB, projectID types.ID, year, month int, actorName, reason string) (*PeriodLock, error) {
	return upsertLock(tx, projectID, year, month, true, actorName, reason)
}

// UnlockInTx upserts the lock row to unlocked and writes the UNLOCK record.
func UnlockInTx(tx *gorm.DB, projectID types.ID, year, month int, reason string, rec *audit.Recorder, sec *session.Context) (*PeriodLock, error) {
	l, err := upsertLock(tx, projectID, year, month, false, sec.ActorName(), reason)
	if err != nil {
		return nil, err
	}
	if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityPeriodLock, EntityID: l.ID.String(),
		Action: audit.ActionUnlock, Diff: periodDiff(l)}, sec); err != nil {
		return nil, err
	}
	return l, nil
}

func upsertLock(tx *gorm.DB, projectID types.ID, year, month int, locked bool, actorName, reason string) (*PeriodLock, error) {
	l, err := findLock(tx, projectID, year, month)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = &PeriodLock{ID: idgen.NextID(lockIdWorker), ProjectID: projectID, Year: year, Month: month,
			Locked: locked, LockedBy: actorName, LockedAt: time.Now(), Reason: reason}
		if err := tx.Create(l).Error; err != nil {
			return nil, err
		}
		return l, nil
	}
	l.Locked = locked
	l.LockedBy = actorName
	l.LockedAt = time.Now()
	l.Reason = reason
	if err := tx.Save(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

func findLock(db *gorm.DB, projectID types.ID, year, month int) (*PeriodLock, error) {
	var l PeriodLock
	err := db.Where("project_id = ? AND year = ? AND month = ?", projectID, year, month).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func periodDiff(l *PeriodLock) audit.Diff {
	return audit.Diff{
		"projectId": l.ProjectID.String(),
		"year":      l.Year,
		"month":     l.Month,
		"locked":    l.Locked,
		"reason":    l.Reason,
	}
}
