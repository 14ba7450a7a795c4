package deliverable

import (
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/idgen"
	"pilotage/persistence"
	"pilotage/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

var (
	deliverableIdWorker = idgen.NewWorker()

	hundred = decimal.NewFromInt(100)
)

type DeliverableCreating struct {
	ProjectID  types.ID        `json:"projectId" binding:"required"`
	Label      string          `json:"label" binding:"required,lte=200"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	TargetDate time.Time       `json:"targetDate" binding:"required"`
	Comment    string          `json:"comment" binding:"lte=1000"`
}

type DeliverableStatusUpdating struct {
	Status domain.DeliverableStatus `json:"status" binding:"required,oneof=NON_REMIS REMIS VALIDE"`
}

// Progress summarises the delivered share of a FORFAIT project. Delivered
// means REMIS or VALIDE.
type Progress struct {
	Count           int             `json:"count"`
	Delivered       int             `json:"delivered"`
	Validated       int             `json:"validated"`
	Percentage      decimal.Decimal `json:"percentage"`
	AmountTotal     decimal.Decimal `json:"amountTotal"`
	AmountDelivered decimal.Decimal `json:"amountDelivered"`
}

type DeliverableManagerTraits interface {
	QueryDeliverables(projectID types.ID, sec *session.Context) ([]domain.Deliverable, error)
	CreateDeliverable(c *DeliverableCreating, sec *session.Context) (*domain.Deliverable, error)
	UpdateDeliverableStatus(id types.ID, u *DeliverableStatusUpdating, sec *session.Context) (*domain.Deliverable, error)
	DeleteDeliverable(id types.ID, sec *session.Context) error
	ProjectProgress(projectID types.ID, sec *session.Context) (*Progress, error)
}

type DeliverableManager struct {
	dataSource *persistence.DataSourceManager
}

func NewDeliverableManager(ds *persistence.DataSourceManager) *DeliverableManager {
	return &DeliverableManager{dataSource: ds}
}

func (m *DeliverableManager) QueryDeliverables(projectID types.ID, sec *session.Context) ([]domain.Deliverable, error) {
	if !sec.CanManageProject(projectID) {
		return nil, bizerror.ErrForbidden
	}
	return ListDeliverables(m.dataSource.GormDBWithContext(sec.TraceContext()), projectID)
}

func ListDeliverables(db *gorm.DB, projectID types.ID) ([]domain.Deliverable, error) {
	deliverables := []domain.Deliverable{}
	if err := db.Where("project_id = ?", projectID).Order("target_date ASC").Order("id ASC").
		Find(&deliverables).Error; err != nil {
		return nil, err
	}
	return deliverables, nil
}

func (m *DeliverableManager) CreateDeliverable(c *DeliverableCreating, sec *session.Context) (*domain.Deliverable, error) {
	if !sec.CanManageProject(c.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	if c.Percentage.IsNegative() || c.Percentage.GreaterThan(hundred) || c.Amount.IsNegative() {
		return nil, &bizerror.ErrBadParam{Cause: errInvalidShare}
	}

	d := domain.Deliverable{
		ID: idgen.NextID(deliverableIdWorker), ProjectID: c.ProjectID, Label: c.Label,
		Percentage: c.Percentage, Amount: c.Amount, TargetDate: c.TargetDate,
		Status: domain.DeliverableNonRemis, Comment: c.Comment,
	}
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		if err := domain.AssertProjectExists(tx, c.ProjectID); err != nil {
			return err
		}
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityDeliverable, EntityID: d.ID.String(), Action: audit.ActionCreate,
			Diff: audit.Diff{"projectId": c.ProjectID.String(), "label": c.Label, "percentage": c.Percentage.String()}}, sec)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return &d, nil
}

// UpdateDeliverableStatus stamps the submission date when the deliverable is
// handed over (REMIS) and keeps it otherwise.
func (m *DeliverableManager) UpdateDeliverableStatus(id types.ID, u *DeliverableStatusUpdating, sec *session.Context) (*domain.Deliverable, error) {
	var result *domain.Deliverable
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		d := domain.Deliverable{}
		if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
			return err
		}
		if !sec.CanManageProject(d.ProjectID) {
			return bizerror.ErrForbidden
		}
		before := d.Status
		d.Status = u.Status
		if u.Status == domain.DeliverableRemis {
			now := time.Now()
			d.SubmissionDate = &now
		}
		if err := tx.Save(&d).Error; err != nil {
			return err
		}
		if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityDeliverable, EntityID: d.ID.String(), Action: audit.ActionUpdate,
			Diff: audit.Diff{"status": map[string]string{"from": string(before), "to": string(d.Status)}}}, sec); err != nil {
			return err
		}
		result = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

func (m *DeliverableManager) DeleteDeliverable(id types.ID, sec *session.Context) error {
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		d := domain.Deliverable{}
		if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
			return err
		}
		if !sec.CanManageProject(d.ProjectID) {
			return bizerror.ErrForbidden
		}
		if err := tx.Delete(&domain.Deliverable{}, "id = ?", id).Error; err != nil {
			return err
		}
		_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityDeliverable, EntityID: id.String(), Action: audit.ActionDelete,
			Diff: audit.Diff{"projectId": d.ProjectID.String(), "label": d.Label}}, sec)
		return err
	})
	if err != nil {
		return err
	}
	rec.Publish()
	return nil
}

func (m *DeliverableManager) ProjectProgress(projectID types.ID, sec *session.Context) (*Progress, error) {
	if !sec.CanManageProject(projectID) {
		return nil, bizerror.ErrForbidden
	}
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	p, err := domain.FindProject(db, projectID)
	if err != nil {
		return nil, err
	}
	deliverables, err := ListDeliverables(db, projectID)
	if err != nil {
		return nil, err
	}
	progress := ComputeProgress(p.OrderAmount, deliverables)
	return &progress, nil
}

// Value is the deliverable's own amount, or its percentage of the order
// amount when none is set.
func Value(orderAmount decimal.Decimal, d domain.Deliverable) decimal.Decimal {
	if d.Amount.IsZero() {
		return orderAmount.Mul(d.Percentage).Div(hundred)
	}
	return d.Amount
}

// Delivered reports whether the deliverable has been handed over.
func Delivered(d domain.Deliverable) bool {
	return d.Status == domain.DeliverableRemis || d.Status == domain.DeliverableValide
}

// ComputeProgress values each deliverable with Value.
func ComputeProgress(orderAmount decimal.Decimal, deliverables []domain.Deliverable) Progress {
	p := Progress{Percentage: decimal.Zero, AmountTotal: decimal.Zero, AmountDelivered: decimal.Zero}
	for _, d := range deliverables {
		amount := Value(orderAmount, d)
		p.Count++
		p.AmountTotal = p.AmountTotal.Add(amount)
		if Delivered(d) {
			p.Delivered++
			p.Percentage = p.Percentage.Add(d.Percentage)
			p.AmountDelivered = p.AmountDelivered.Add(amount)
		}
		if d.Status == domain.DeliverableValide {
			p.Validated++
		}
	}
	return p
}
