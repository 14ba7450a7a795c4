package dashboard

import (
	"fmt"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/deliverable"
	"pilotage/domain/snapshot"
	"pilotage/domain/timeentry"
	"pilotage/persistence"
	"pilotage/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// MonthProduction is the value produced in one calendar month, Month 1-12.
type MonthProduction struct {
	Month   int             `json:"month"`
	AT      decimal.Decimal `json:"at"`
	Forfait decimal.Decimal `json:"forfait"`
}

type Production struct {
	Year   int               `json:"year"`
	Months []MonthProduction `json:"months"`
	Total  decimal.Decimal   `json:"total"`
}

type DashboardManagerTraits interface {
	Production(year int, sec *session.Context) (*Production, error)
}

type DashboardManager struct {
	dataSource *persistence.DataSourceManager
}

func NewDashboardManager(ds *persistence.DataSourceManager) *DashboardManager {
	return &DashboardManager{dataSource: ds}
}

// Production sums, per month of year, the days worked on AT projects at
// their daily rates and the deliverables of FORFAIT projects handed over in
// that month. Managers only see their own projects.
func (m *DashboardManager) Production(year int, sec *session.Context) (*Production, error) {
	if year < 2000 || year > 2999 {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid year %d", year)}
	}
	db := m.dataSource.GormDBWithContext(sec.TraceContext())

	projects := []domain.Project{}
	q := db
	if !sec.IsAdmin() {
		ids := sec.ManagedProjectIDs()
		if len(ids) == 0 {
			return ComputeProduction(year, nil, nil, nil), nil
		}
		q = q.Where("id IN (?)", ids)
	}
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return ComputeProduction(year, nil, nil, nil), nil
	}

	var at, forfait []types.ID
	for _, p := range projects {
		if p.Type == domain.ProjectTypeAT {
			at = append(at, p.ID)
		} else {
			forfait = append(forfait, p.ID)
		}
	}

	entries, err := yearEntries(db, at, year)
	if err != nil {
		return nil, err
	}
	deliverables, err := deliveredDeliverables(db, forfait)
	if err != nil {
		return nil, err
	}
	return ComputeProduction(year, projects, entries, deliverables), nil
}

func yearEntries(db *gorm.DB, projectIDs []types.ID, year int) ([]timeentry.TimeEntry, error) {
	entries := []timeentry.TimeEntry{}
	if len(projectIDs) == 0 {
		return entries, nil
	}
	err := db.Where("project_id IN (?) AND year = ?", projectIDs, year).Find(&entries).Error
	return entries, err
}

// deliveredDeliverables leaves the year filter to ComputeProduction, which
// reads submission dates in local time.
func deliveredDeliverables(db *gorm.DB, projectIDs []types.ID) ([]domain.Deliverable, error) {
	deliverables := []domain.Deliverable{}
	if len(projectIDs) == 0 {
		return deliverables, nil
	}
	err := db.Where("project_id IN (?) AND status IN (?) AND submission_date IS NOT NULL", projectIDs,
		[]domain.DeliverableStatus{domain.DeliverableRemis, domain.DeliverableValide}).Find(&deliverables).Error
	return deliverables, err
}

// ComputeProduction always returns twelve months. Entries and deliverables
// of projects of the other type, or outside year, are ignored.
func ComputeProduction(year int, projects []domain.Project, entries []timeentry.TimeEntry,
	deliverables []domain.Deliverable) *Production {

	r := &Production{Year: year, Months: make([]MonthProduction, 12), Total: decimal.Zero}
	for i := range r.Months {
		r.Months[i] = MonthProduction{Month: i + 1, AT: decimal.Zero, Forfait: decimal.Zero}
	}
	byID := map[types.ID]*domain.Project{}
	for i := range projects {
		byID[projects[i].ID] = &projects[i]
	}

	for _, e := range entries {
		p := byID[e.ProjectID]
		if p == nil || p.Type != domain.ProjectTypeAT || e.Year != year || e.Month < 1 || e.Month > 12 {
			continue
		}
		rate := p.DailyRateBO
		if e.Type == timeentry.TypeSite {
			rate = p.DailyRateSite
		}
		amount := e.Hours.Div(snapshot.HoursPerDay).Mul(rate)
		r.Months[e.Month-1].AT = r.Months[e.Month-1].AT.Add(amount)
		r.Total = r.Total.Add(amount)
	}

	for _, d := range deliverables {
		p := byID[d.ProjectID]
		if p == nil || p.Type != domain.ProjectTypeForfait || !deliverable.Delivered(d) ||
			d.SubmissionDate == nil || d.SubmissionDate.Local().Year() != year {
			continue
		}
		month := int(d.SubmissionDate.Local().Month())
		amount := deliverable.Value(p.OrderAmount, d)
		r.Months[month-1].Forfait = r.Months[month-1].Forfait.Add(amount)
		r.Total = r.Total.Add(amount)
	}
	return r
}
