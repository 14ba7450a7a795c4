package snapshot

import (
	"errors"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/idgen"
	"pilotage/persistence"
	"pilotage/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var snapshotIdWorker = idgen.NewWorker()

type SnapshotManagerTraits interface {
	QuerySnapshots(q SnapshotQuery, sec *session.Context) ([]Snapshot, error)
	DetailSnapshot(id types.ID, sec *session.Context) (*Snapshot, error)
	CreateManualSnapshot(c ManualSnapshotCreation, sec *session.Context) (*Snapshot, error)
}

type SnapshotManager struct {
	dataSource *persistence.DataSourceManager
}

func NewSnapshotManager(ds *persistence.DataSourceManager) *SnapshotManager {
	return &SnapshotManager{dataSource: ds}
}

// CreateSnapshot is the only write path for snapshots. It inserts the given
// tuple as is and never touches an existing row.
func CreateSnapshot(tx *gorm.DB, c SnapshotCreation) (*Snapshot, error) {
	data, err := EncodePayload(c.Payload)
	if err != nil {
		return nil, err
	}
	year, month := domain.PeriodColumns(c.Period)
	s := &Snapshot{
		ID:                   idgen.NextID(snapshotIdWorker),
		ProjectID:            c.ProjectID,
		Type:                 c.Type,
		Year:                 year,
		Month:                month,
		ComputedAt:           time.Now(),
		ComputedBy:           c.ComputedBy,
		SourceRef:            c.SourceRef,
		Data:                 data,
		SupersedesSnapshotID: c.SupersedesSnapshotID,
	}
	if err := tx.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// LatestSnapshot returns the most recent snapshot of the type for the
// project and period, nil when there is none.
func LatestSnapshot(db *gorm.DB, projectID types.ID, t SnapshotType, period *domain.Period) (*Snapshot, error) {
	q := db.Where("project_id = ? AND type = ?", projectID, t)
	if period == nil {
		q = q.Where("year IS NULL AND month IS NULL")
	} else {
		q = q.Where("year = ? AND month = ?", period.Year, period.Month)
	}
	var s Snapshot
	err := q.Order("computed_at DESC").Order("id DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *SnapshotManager) QuerySnapshots(q SnapshotQuery, sec *session.Context) ([]Snapshot, error) {
	if !sec.CanManageProject(q.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	db := m.dataSource.GormDBWithContext(sec.TraceContext()).Where("project_id = ?", q.ProjectID)
	if q.Type != "" {
		db = db.Where("type = ?", q.Type)
	}
	if q.Year > 0 {
		db = db.Where("year = ?", q.Year)
	}
	if q.Month > 0 {
		db = db.Where("month = ?", q.Month)
	}
	snapshots := []Snapshot{}
	if err := db.Order("computed_at ASC").Order("id ASC").Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (m *SnapshotManager) DetailSnapshot(id types.ID, sec *session.Context) (*Snapshot, error) {
	var s Snapshot
	if err := m.dataSource.GormDBWithContext(sec.TraceContext()).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	if !sec.CanManageProject(s.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	return &s, nil
}

// CreateManualSnapshot records the current AT totals of a period together with
// a free note, outside any closing or document flow.
func (m *SnapshotManager) CreateManualSnapshot(c ManualSnapshotCreation, sec *session.Context) (*Snapshot, error) {
	if !sec.CanManageProject(c.ProjectID) {
		return nil, bizerror.ErrForbidden
	}

	var result *Snapshot
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		totals, err := BuildAtPeriodTotals(tx, c.ProjectID, c.Year, c.Month)
		if err != nil {
			return err
		}
		s, err := CreateSnapshot(tx, SnapshotCreation{
			ProjectID: c.ProjectID, Type: TypeManual, Period: &domain.Period{Year: c.Year, Month: c.Month},
			ComputedBy: sec.ActorName(), Payload: ManualPayload{Note: c.Note, Totals: *totals},
		})
		if err != nil {
			return err
		}
		if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntitySnapshot, EntityID: s.ID.String(),
			Action: audit.ActionManualSnapshot, Diff: audit.Diff{
				"projectId": c.ProjectID.String(), "year": c.Year, "month": c.Month, "snapshotId": s.ID.String(),
			}}, sec); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}
