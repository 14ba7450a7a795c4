package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/shopspring/decimal"
)

type ProjectType string

const (
	ProjectTypeAT      ProjectType = "AT"
	ProjectTypeForfait ProjectType = "FORFAIT"
)

type ProjectStatus string

const (
	ProjectStatusPrevu   ProjectStatus = "PREVU"
	ProjectStatusEnCours ProjectStatus = "EN_COURS"
	ProjectStatusClos    ProjectStatus = "CLOS"
	ProjectStatusArchive ProjectStatus = "ARCHIVE"
)

// Project is the root of every billing record.
type Project struct {
	ID                  types.ID      `json:"id" gorm:"primary_key"`
	ProjectNumber       string        `json:"projectNumber" gorm:"unique_index"`
	Designation         string        `json:"designation"`
	Type                ProjectType   `json:"type"`
	Status              ProjectStatus `json:"status"`
	ProjectManager      string        `json:"projectManager"`
	ProjectManagerEmail string        `json:"projectManagerEmail"`

	// ClientID is zero for a project not yet attached to a client.
	ClientID types.ID `json:"clientId" gorm:"index"`

	// OrderAmount is the contract value of a FORFAIT project.
	OrderAmount decimal.Decimal `json:"orderAmount" sql:"type:DECIMAL(14,4)"`
	AtMetrics

	CreatorID  types.ID  `json:"creatorId"`
	CreateTime time.Time `json:"createTime"`
}

// AtMetrics holds the sold volume and daily rates of a time-and-materials project.
type AtMetrics struct {
	DaysSoldBO    decimal.Decimal `json:"daysSoldBO" sql:"type:DECIMAL(12,4)"`
	DaysSoldSite  decimal.Decimal `json:"daysSoldSite" sql:"type:DECIMAL(12,4)"`
	DailyRateBO   decimal.Decimal `json:"dailyRateBO" sql:"type:DECIMAL(14,4)"`
	DailyRateSite decimal.Decimal `json:"dailyRateSite" sql:"type:DECIMAL(14,4)"`
}

type DeliverableStatus string

const (
	DeliverableNonRemis DeliverableStatus = "NON_REMIS"
	DeliverableRemis    DeliverableStatus = "REMIS"
	DeliverableValide   DeliverableStatus = "VALIDE"
)

// Deliverable is a milestone of a FORFAIT project. A zero Amount means the
// milestone is worth Percentage of the order amount.
type Deliverable struct {
	ID             types.ID          `json:"id" gorm:"primary_key"`
	ProjectID      types.ID          `json:"projectId" gorm:"index"`
	Label          string            `json:"label"`
	Percentage     decimal.Decimal   `json:"percentage" sql:"type:DECIMAL(7,4)"`
	Amount         decimal.Decimal   `json:"amount" sql:"type:DECIMAL(14,4)"`
	TargetDate     time.Time         `json:"targetDate"`
	Status         DeliverableStatus `json:"status"`
	SubmissionDate *time.Time        `json:"submissionDate,omitempty"`
	Comment        string            `json:"comment"`
}

func (d *Deliverable) TableName() string {
	return "deliverables"
}
