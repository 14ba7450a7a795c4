package snapshot

import (
	"pilotage/domain"
	"pilotage/domain/timeentry"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

var HoursPerDay = decimal.NewFromInt(8)

// ComputeAtPeriodTotals derives the situation of an AT project at the end of
// (year, month). monthEntries are the entries of that month, cumulativeEntries
// every entry up to and including it. Days are hours / 8, unrounded.
func ComputeAtPeriodTotals(project *domain.Project, year, month int,
	monthEntries, cumulativeEntries []timeentry.TimeEntry) AtPeriodPayload {

	sold := SoldFigures{
		BoDays:   project.DaysSoldBO,
		SiteDays: project.DaysSoldSite,
		BoRate:   project.DailyRateBO,
		SiteRate: project.DailyRateSite,
	}

	monthData := sumFigures(monthEntries, sold)
	cumulative := sumFigures(cumulativeEntries, sold)

	remainingBO := decimal.Max(decimal.Zero, sold.BoDays.Sub(cumulative.BoDays))
	remainingSite := decimal.Max(decimal.Zero, sold.SiteDays.Sub(cumulative.SiteDays))

	ids := []types.ID{}
	for _, e := range monthEntries {
		if e.Hours.IsPositive() {
			ids = append(ids, e.ID)
		}
	}

	return AtPeriodPayload{
		ProjectID:  project.ID,
		Year:       year,
		Month:      month,
		Sold:       sold,
		MonthData:  monthData,
		Cumulative: cumulative,
		Remaining: RemainingFigures{
			BoDays:   remainingBO,
			SiteDays: remainingSite,
			Amount:   remainingBO.Mul(sold.BoRate).Add(remainingSite.Mul(sold.SiteRate)),
		},
		Alerts: Alerts{
			ExceededSold: cumulative.BoDays.GreaterThan(sold.BoDays) || cumulative.SiteDays.GreaterThan(sold.SiteDays),
		},
		Source: Source{ProjectID: project.ID, Year: year, Month: month, TimeEntryIDs: ids},
	}
}

func sumFigures(entries []timeentry.TimeEntry, sold SoldFigures) PeriodFigures {
	bo, site := decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Type {
		case timeentry.TypeBO:
			bo = bo.Add(e.Hours)
		case timeentry.TypeSite:
			site = site.Add(e.Hours)
		}
	}
	boDays := bo.Div(HoursPerDay)
	siteDays := site.Div(HoursPerDay)
	return PeriodFigures{
		BoHours:   bo,
		SiteHours: site,
		BoDays:    boDays,
		SiteDays:  siteDays,
		Amount:    boDays.Mul(sold.BoRate).Add(siteDays.Mul(sold.SiteRate)),
	}
}

// BuildAtPeriodTotals loads the project and its entries and computes the
// totals. A missing project is bizerror.ErrNotFound.
func BuildAtPeriodTotals(db *gorm.DB, projectID types.ID, year, month int) (*AtPeriodPayload, error) {
	project, err := domain.FindProject(db, projectID)
	if err != nil {
		return nil, err
	}
	monthEntries, err := timeentry.ListMonth(db, projectID, year, month)
	if err != nil {
		return nil, err
	}
	cumulativeEntries, err := timeentry.ListUntil(db, projectID, year, month)
	if err != nil {
		return nil, err
	}
	totals := ComputeAtPeriodTotals(project, year, month, monthEntries, cumulativeEntries)
	return &totals, nil
}
