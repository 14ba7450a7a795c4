package snapshot

import (
	"pilotage/domain"
	"time"

	"github.com/fundwit/go-commons/types"
)

type SnapshotType string

const (
	TypeMonthEnd           SnapshotType = "MONTH_END"
	TypeBordereauGenerated SnapshotType = "BORDEREAU_GENERATED"
	TypeBordereauSigned    SnapshotType = "BORDEREAU_SIGNED"
	TypeRectificatif       SnapshotType = "RECTIFICATIF"
	TypeManual             SnapshotType = "MANUAL"
)

// Snapshot is an immutable fact about a project. Rows are only ever
// inserted; a correction is a new RECTIFICATIF row pointing back at the
// signed snapshot it supersedes.
type Snapshot struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ProjectID types.ID     `json:"projectId" gorm:"index:idx_snapshot_project"`
	Type      SnapshotType `json:"type" gorm:"index:idx_snapshot_project"`
	Year      *int         `json:"year,omitempty"`
	Month     *int         `json:"month,omitempty"`

	ComputedAt time.Time  `json:"computedAt"`
	ComputedBy string     `json:"computedBy"`
	SourceRef  string     `json:"sourceRef,omitempty"`
	Data       RawPayload `json:"data" sql:"type:TEXT"`

	SupersedesSnapshotID *types.ID `json:"supersedesSnapshotId,omitempty"`
}

func (s *Snapshot) TableName() string {
	return "project_situation_snapshots"
}

func (s *Snapshot) Period() *domain.Period {
	return domain.PeriodOf(s.Year, s.Month)
}

// Payload decodes the stored data into its typed form.
func (s *Snapshot) Payload() (Payload, error) {
	return DecodePayload(s.Data)
}

// SnapshotCreation is the full input of CreateSnapshot, stored verbatim.
type SnapshotCreation struct {
	ProjectID            types.ID
	Type                 SnapshotType
	Period               *domain.Period
	ComputedBy           string
	SourceRef            string
	Payload              Payload
	SupersedesSnapshotID *types.ID
}

type SnapshotQuery struct {
	ProjectID types.ID     `form:"projectId" json:"projectId" binding:"required"`
	Type      SnapshotType `form:"type" json:"type"`
	Year      int          `form:"year" json:"year"`
	Month     int          `form:"month" json:"month"`
}

type ManualSnapshotCreation struct {
	ProjectID types.ID `json:"projectId" binding:"required"`
	Year      int      `json:"year" binding:"required,min=2000,max=2999"`
	Month     int      `json:"month" binding:"required,min=1,max=12"`
	Note      string   `json:"note" binding:"lte=2000"`
}
