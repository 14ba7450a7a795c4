package bordereau

import (
	"fmt"
	"pilotage/domain"
	"pilotage/domain/state"
	"time"

	"github.com/fundwit/go-commons/types"
)

type BordereauType string

const (
	TypeBA           BordereauType = "BA"
	TypeBL           BordereauType = "BL"
	TypeRectificatif BordereauType = "RECTIFICATIF"
)

const (
	StatusGenerated = "GENERATED"
	StatusSigned    = "SIGNED"
)

var (
	StateGenerated = state.State{Name: StatusGenerated, Category: state.Open}
	StateSigned    = state.State{Name: StatusSigned, Category: state.Final}

	// BordereauStateMachine has no way back from SIGNED: corrections are new
	// RECTIFICATIF bordereaux.
	BordereauStateMachine = state.NewStateMachine(
		[]state.State{StateGenerated, StateSigned},
		[]state.Transition{{Name: "sign", From: StateGenerated, To: StateSigned}},
	)
)

// Bordereau is a billing document of a project for an optional period.
// BaseType is the family (BA or BL) the document belongs to, also for
// rectifications. LiveKey is set while the bordereau is the live one of its
// (project, family, period) and cleared once a rectification supersedes it.
type Bordereau struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ProjectID types.ID      `json:"projectId" gorm:"index"`
	Type      BordereauType `json:"type"`
	BaseType  BordereauType `json:"baseType"`
	Status    string        `json:"status"`
	Year      *int          `json:"periodYear,omitempty"`
	Month     *int          `json:"periodMonth,omitempty"`

	SnapshotID            types.ID  `json:"snapshotId"`
	LiveKey               *string   `json:"-" gorm:"unique_index:uni_bordereau_live"`
	SupersedesBordereauID *types.ID `json:"supersedesBordereauId,omitempty"`

	SignatureRef     string     `json:"signatureRef,omitempty"`
	SignedAt         *time.Time `json:"signedAt,omitempty"`
	SignedFileID     *types.ID  `json:"signedFileId,omitempty"`
	AuditTrailFileID *types.ID  `json:"auditTrailFileId,omitempty"`

	CreatorID   types.ID  `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
}

func (b *Bordereau) TableName() string {
	return "bordereaux"
}

func (b *Bordereau) Period() *domain.Period {
	return domain.PeriodOf(b.Year, b.Month)
}

func (b *Bordereau) IsLive() bool {
	return b.LiveKey != nil
}

// BordereauVersion is append-only; version numbers start at 1 and increase
// by one per bordereau.
type BordereauVersion struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	BordereauID   types.ID `json:"bordereauId" gorm:"unique_index:uni_bordereau_version"`
	VersionNumber int      `json:"versionNumber" gorm:"unique_index:uni_bordereau_version"`
	FileID        types.ID `json:"fileId"`
	SnapshotID    types.ID `json:"snapshotId"`

	CreatorName string    `json:"creatorName"`
	CreateTime  time.Time `json:"createTime"`
}

func (v *BordereauVersion) TableName() string {
	return "bordereau_versions"
}

type BordereauGeneration struct {
	ProjectID types.ID       `json:"projectId" binding:"required"`
	Type      BordereauType  `json:"type" binding:"required,oneof=BA BL"`
	Period    *domain.Period `json:"period"`
}

// LiveKey identifies the (project, family, period) slot a live bordereau occupies.
func LiveKey(projectID types.ID, baseType BordereauType, period *domain.Period) string {
	return fmt.Sprintf("%s|%s|%s", projectID.String(), baseType, domain.PeriodKey(period))
}

func lockKey(liveKey string) string {
	return "bordereau/" + liveKey
}

type BordereauDetail struct {
	Bordereau
	Versions []BordereauVersion `json:"versions"`
}

// GenerationResult reports what Generate created.
type GenerationResult struct {
	Bordereau     *Bordereau        `json:"bordereau"`
	Version       *BordereauVersion `json:"version"`
	SnapshotID    types.ID          `json:"snapshotId"`
	FileID        types.ID          `json:"fileId"`
	Rectification bool              `json:"rectification"`
}

// SignResult reports the state after MarkSigned. Changed is false when the
// bordereau was already signed and nothing was done.
type SignResult struct {
	Bordereau  *Bordereau `json:"bordereau"`
	SnapshotID *types.ID  `json:"snapshotId,omitempty"`
	Changed    bool       `json:"changed"`
}
