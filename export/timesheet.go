package export

import (
	"bytes"
	"fmt"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/snapshot"
	"pilotage/domain/timeentry"
	"pilotage/persistence"
	"pilotage/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	entriesSheet = "Saisies"
	summarySheet = "Synthese"
)

type ExportManagerTraits interface {
	ExportMonth(projectID types.ID, year, month int, sec *session.Context) (string, []byte, error)
	ExportProjects(sec *session.Context) (string, []byte, error)
}

type ExportManager struct {
	dataSource *persistence.DataSourceManager
}

func NewExportManager(ds *persistence.DataSourceManager) *ExportManager {
	return &ExportManager{dataSource: ds}
}

// ExportMonth returns the file name and the xlsx workbook of a month's time
// sheet: one sheet of non-zero entries and one sheet of AT totals.
func (m *ExportManager) ExportMonth(projectID types.ID, year, month int, sec *session.Context) (string, []byte, error) {
	if !sec.CanManageProject(projectID) {
		return "", nil, bizerror.ErrForbidden
	}
	p := domain.Period{Year: year, Month: month}
	if !p.Valid() {
		return "", nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid period %d-%d", year, month)}
	}
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	project, err := domain.FindProject(db, projectID)
	if err != nil {
		return "", nil, err
	}
	data, err := BuildTimeSheet(db, project, p)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("saisies-%s-%s.xlsx", project.ProjectNumber, p.String()), data, nil
}

func BuildTimeSheet(db *gorm.DB, project *domain.Project, p domain.Period) ([]byte, error) {
	monthEntries, err := timeentry.ListMonth(db, project.ID, p.Year, p.Month)
	if err != nil {
		return nil, err
	}
	cumulative, err := timeentry.ListUntil(db, project.ID, p.Year, p.Month)
	if err != nil {
		return nil, err
	}
	totals := snapshot.ComputeAtPeriodTotals(project, p.Year, p.Month, monthEntries, cumulative)
	return WriteTimeSheet(project, p, timeentry.NonZero(monthEntries), &totals)
}

// WriteTimeSheet renders entries and totals into an xlsx workbook.
func WriteTimeSheet(project *domain.Project, p domain.Period, entries []timeentry.TimeEntry, totals *snapshot.AtPeriodPayload) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", entriesSheet); err != nil {
		return nil, err
	}
	if err := setRow(f, entriesSheet, 1, "Date", "Type", "Créneau", "Heures", "Commentaire"); err != nil {
		return nil, err
	}
	for i, e := range entries {
		date := fmt.Sprintf("%04d-%02d-%02d", e.Year, e.Month, e.Day)
		if err := setRow(f, entriesSheet, i+2, date, string(e.Type), fmt.Sprintf("%02dh", e.HourSlot),
			e.Hours.InexactFloat64(), e.Comment); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	rows := [][]interface{}{
		{"Projet", project.ProjectNumber, project.Designation},
		{"Période", p.Label()},
		{},
		{"", "BO", "SITE", "Montant"},
		{"Vendu (jours)", num(totals.Sold.BoDays), num(totals.Sold.SiteDays)},
		{"Taux journalier", num(totals.Sold.BoRate), num(totals.Sold.SiteRate)},
		{"Mois (heures)", num(totals.MonthData.BoHours), num(totals.MonthData.SiteHours)},
		{"Mois (jours)", num(totals.MonthData.BoDays), num(totals.MonthData.SiteDays), num(totals.MonthData.Amount)},
		{"Cumul (jours)", num(totals.Cumulative.BoDays), num(totals.Cumulative.SiteDays), num(totals.Cumulative.Amount)},
		{"Reste (jours)", num(totals.Remaining.BoDays), num(totals.Remaining.SiteDays), num(totals.Remaining.Amount)},
	}
	if totals.Alerts.ExceededSold {
		rows = append(rows, []interface{}{"Alerte", "Volume vendu dépassé"})
	}
	for i, r := range rows {
		if err := setRow(f, summarySheet, i+1, r...); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
