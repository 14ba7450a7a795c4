package closure

import (
	"errors"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/lock"
	"pilotage/domain/snapshot"
	"pilotage/locker"
	"pilotage/persistence"
	"pilotage/session"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type PeriodClosing struct {
	ProjectID types.ID `json:"projectId" binding:"required"`
	Year      int      `json:"year" binding:"required,min=2000,max=2999"`
	Month     int      `json:"month" binding:"required,min=1,max=12"`
	Reason    string   `json:"reason"`
}

type CloseResult struct {
	Lock     *lock.PeriodLock   `json:"lock"`
	Snapshot *snapshot.Snapshot `json:"snapshot"`
}

type UnlockResult struct {
	Lock         *lock.PeriodLock   `json:"lock"`
	Rectificatif *snapshot.Snapshot `json:"rectificatif,omitempty"`
}

type ClosureManagerTraits interface {
	CloseMonth(c *PeriodClosing, sec *session.Context) (*CloseResult, error)
	AdminUnlock(c *PeriodClosing, sec *session.Context) (*UnlockResult, error)
}

type ClosureManager struct {
	dataSource *persistence.DataSourceManager
	locker     locker.Locker
}

func NewClosureManager(ds *persistence.DataSourceManager, l locker.Locker) *ClosureManager {
	return &ClosureManager{dataSource: ds, locker: l}
}

// CloseMonth computes the AT totals, stores them as a MONTH_END snapshot,
// then locks the period and records MONTH_CLOSE. The snapshot always exists
// before the lock does.
func (m *ClosureManager) CloseMonth(c *PeriodClosing, sec *session.Context) (*CloseResult, error) {
	if !sec.CanManageProject(c.ProjectID) {
		return nil, bizerror.ErrForbidden
	}

	var result *CloseResult
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, lock.PeriodKey(c.ProjectID, c.Year, c.Month), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			totals, err := snapshot.BuildAtPeriodTotals(tx, c.ProjectID, c.Year, c.Month)
			if err != nil {
				return err
			}
			snap, err := snapshot.CreateSnapshot(tx, snapshot.SnapshotCreation{
				ProjectID: c.ProjectID, Type: snapshot.TypeMonthEnd,
				Period:     &domain.Period{Year: c.Year, Month: c.Month},
				ComputedBy: sec.ActorName(), Payload: *totals,
			})
			if err != nil {
				return err
			}
			l, err := lock.LockInTx(tx, c.ProjectID, c.Year, c.Month, sec.ActorName(), lock.ReasonMonthClose)
			if err != nil {
				return err
			}
			if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityPeriodLock, EntityID: l.ID.String(),
				Action: audit.ActionMonthClose, Diff: audit.Diff{
					"projectId": c.ProjectID.String(), "year": c.Year, "month": c.Month,
					"snapshotId": snap.ID.String(), "exceededSold": totals.Alerts.ExceededSold,
				}}, sec); err != nil {
				return err
			}
			result = &CloseResult{Lock: l, Snapshot: snap}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

// AdminUnlock reopens a period. When a signed bordereau snapshot exists for
// it, a RECTIFICATIF snapshot superseding the latest one marks that edits
// after this point change a signed state.
func (m *ClosureManager) AdminUnlock(c *PeriodClosing, sec *session.Context) (*UnlockResult, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if strings.TrimSpace(c.Reason) == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("unlock reason is required")}
	}

	var result *UnlockResult
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, lock.PeriodKey(c.ProjectID, c.Year, c.Month), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			if err := domain.AssertProjectExists(tx, c.ProjectID); err != nil {
				return err
			}
			l, err := lock.UnlockInTx(tx, c.ProjectID, c.Year, c.Month, c.Reason, &rec, sec)
			if err != nil {
				return err
			}

			period := &domain.Period{Year: c.Year, Month: c.Month}
			signed, err := snapshot.LatestSnapshot(tx, c.ProjectID, snapshot.TypeBordereauSigned, period)
			if err != nil {
				return err
			}
			diff := audit.Diff{"projectId": c.ProjectID.String(), "year": c.Year, "month": c.Month,
				"lockId": l.ID.String(), "reason": c.Reason}

			var rect *snapshot.Snapshot
			if signed != nil {
				rect, err = snapshot.CreateSnapshot(tx, snapshot.SnapshotCreation{
					ProjectID: c.ProjectID, Type: snapshot.TypeRectificatif, Period: period,
					ComputedBy: sec.ActorName(), SupersedesSnapshotID: &signed.ID,
					Payload: snapshot.RectificatifPayload{Reason: snapshot.ReasonUnlockAfterSignature, SignedSnapshotID: &signed.ID},
				})
				if err != nil {
					return err
				}
				diff["rectificatifSnapshotId"] = rect.ID.String()
			}

			if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityPeriodLock, EntityID: l.ID.String(),
				Action: audit.ActionAdminUnlock, Diff: diff}, sec); err != nil {
				return err
			}
			result = &UnlockResult{Lock: l, Rectificatif: rect}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}
