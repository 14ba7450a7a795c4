package export

import (
	"bytes"
	"fmt"
	"pilotage/domain"
	"pilotage/domain/deliverable"
	"pilotage/domain/snapshot"
	"pilotage/domain/timeentry"
	"pilotage/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const projectsSheet = "Projets"

var hundred = decimal.NewFromInt(100)

// ProjectRow is one line of the project list export.
type ProjectRow struct {
	Project domain.Project
	Client  string

	// Progress is a percentage: consumed days over sold days for AT,
	// delivered percentage over planned percentage for FORFAIT.
	Progress         decimal.Decimal
	RemainingBoDays  *decimal.Decimal
	RemainingSite    *decimal.Decimal
	RemainingForfait *decimal.Decimal
}

// ExportProjects returns the xlsx list of the projects visible to sec.
func (m *ExportManager) ExportProjects(sec *session.Context) (string, []byte, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	rows, err := BuildProjectRows(db, sec)
	if err != nil {
		return "", nil, err
	}
	data, err := WriteProjects(rows)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("projets-export-%s.xlsx", time.Now().Format("2006-01-02")), data, nil
}

func BuildProjectRows(db *gorm.DB, sec *session.Context) ([]ProjectRow, error) {
	projects := []domain.Project{}
	q := db
	if !sec.IsAdmin() {
		ids := sec.ManagedProjectIDs()
		if len(ids) == 0 {
			return []ProjectRow{}, nil
		}
		q = q.Where("id IN (?)", ids)
	}
	if err := q.Order("project_number ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []ProjectRow{}, nil
	}

	ids := make([]types.ID, 0, len(projects))
	var clientIDs []types.ID
	for _, p := range projects {
		ids = append(ids, p.ID)
		if p.ClientID != 0 {
			clientIDs = append(clientIDs, p.ClientID)
		}
	}
	clients := map[types.ID]string{}
	if len(clientIDs) > 0 {
		list := []domain.Client{}
		if err := db.Where("id IN (?)", clientIDs).Find(&list).Error; err != nil {
			return nil, err
		}
		for _, c := range list {
			clients[c.ID] = c.Name
		}
	}
	entries := []timeentry.TimeEntry{}
	if err := db.Where("project_id IN (?)", ids).Find(&entries).Error; err != nil {
		return nil, err
	}
	deliverables := []domain.Deliverable{}
	if err := db.Where("project_id IN (?)", ids).Find(&deliverables).Error; err != nil {
		return nil, err
	}

	hours := map[types.ID]map[timeentry.EntryType]decimal.Decimal{}
	for _, e := range entries {
		if hours[e.ProjectID] == nil {
			hours[e.ProjectID] = map[timeentry.EntryType]decimal.Decimal{}
		}
		hours[e.ProjectID][e.Type] = hours[e.ProjectID][e.Type].Add(e.Hours)
	}
	byProject := map[types.ID][]domain.Deliverable{}
	for _, d := range deliverables {
		byProject[d.ProjectID] = append(byProject[d.ProjectID], d)
	}

	rows := make([]ProjectRow, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, ComputeProjectRow(p, clients[p.ClientID], hours[p.ID], byProject[p.ID]))
	}
	return rows, nil
}

// ComputeProjectRow caps progress at 100 and remaining figures at zero.
func ComputeProjectRow(p domain.Project, client string, hours map[timeentry.EntryType]decimal.Decimal,
	deliverables []domain.Deliverable) ProjectRow {

	row := ProjectRow{Project: p, Client: client, Progress: decimal.Zero}
	if p.Type == domain.ProjectTypeAT {
		boDays := hours[timeentry.TypeBO].Div(snapshot.HoursPerDay)
		siteDays := hours[timeentry.TypeSite].Div(snapshot.HoursPerDay)
		sold := p.DaysSoldBO.Add(p.DaysSoldSite)
		if sold.IsPositive() {
			row.Progress = decimal.Min(hundred, boDays.Add(siteDays).Div(sold).Mul(hundred))
		}
		remainingBo := decimal.Max(decimal.Zero, p.DaysSoldBO.Sub(boDays))
		remainingSite := decimal.Max(decimal.Zero, p.DaysSoldSite.Sub(siteDays))
		row.RemainingBoDays = &remainingBo
		row.RemainingSite = &remainingSite
		return row
	}

	planned := decimal.Zero
	for _, d := range deliverables {
		planned = planned.Add(d.Percentage)
	}
	if planned.IsPositive() {
		done := deliverable.ComputeProgress(p.OrderAmount, deliverables).Percentage
		row.Progress = decimal.Min(hundred, done.Div(planned).Mul(hundred))
	}
	remaining := hundred.Sub(row.Progress)
	row.RemainingForfait = &remaining
	return row
}

// WriteProjects renders rows into an xlsx workbook with a frozen header.
func WriteProjects(rows []ProjectRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", projectsSheet); err != nil {
		return nil, err
	}
	if err := setRow(f, projectsSheet, 1, "N° projet", "Désignation", "Client", "Type", "Statut",
		"Montant commande", "Chef de projet", "Avancement (%)", "Restant BO (jours)", "Restant SITE (jours)",
		"Restant forfait (%)"); err != nil {
		return nil, err
	}
	for i, r := range rows {
		p := r.Project
		if err := setRow(f, projectsSheet, i+2, p.ProjectNumber, p.Designation, r.Client, string(p.Type), string(p.Status),
			num(p.OrderAmount), p.ProjectManager, rounded(&r.Progress), rounded(r.RemainingBoDays),
			rounded(r.RemainingSite), rounded(r.RemainingForfait)); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(projectsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rounded leaves the cell empty for figures that do not apply to the project type.
func rounded(d *decimal.Decimal) interface{} {
	if d == nil {
		return ""
	}
	return d.Round(2).InexactFloat64()
}
