package dashboard_test

import (
	"errors"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/dashboard"
	"pilotage/domain/timeentry"
	"pilotage/session"
	"pilotage/testinfra"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 10, 0, 0, 0, time.Local)
	return &t
}

func entry(id types.ID, projectID types.ID, year, month, day int, typ timeentry.EntryType, hours int64) timeentry.TimeEntry {
	return timeentry.TimeEntry{ID: id, ProjectID: projectID, Year: year, Month: month, Day: day, Type: typ,
		Hours: decimal.NewFromInt(hours), UpdateTime: time.Now()}
}

func TestProduction(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := testinfra.StartTestDatabase("pilotage")
	defer testinfra.StopTestDatabase(testDatabase)
	db := testDatabase.DS.GormDB()
	Expect(db.AutoMigrate(&domain.Project{}, &domain.Deliverable{}, &timeentry.TimeEntry{}).Error).To(BeNil())

	testinfra.CreateATProject(db, 100, "P-100")
	Expect(db.Create(&domain.Project{ID: 200, ProjectNumber: "P-200", Type: domain.ProjectTypeForfait,
		Status: domain.ProjectStatusEnCours, OrderAmount: decimal.NewFromInt(10000), CreateTime: time.Now()}).Error).To(BeNil())

	for _, e := range []timeentry.TimeEntry{
		entry(1, 100, 2024, 1, 2, timeentry.TypeBO, 8),
		entry(2, 100, 2024, 1, 3, timeentry.TypeSite, 4),
		entry(3, 100, 2024, 3, 4, timeentry.TypeBO, 8),
		entry(4, 100, 2024, 3, 5, timeentry.TypeBO, 8),
		entry(5, 100, 2023, 12, 4, timeentry.TypeBO, 8),
	} {
		e := e
		Expect(db.Create(&e).Error).To(BeNil())
	}
	for _, d := range []domain.Deliverable{
		{ID: 1, ProjectID: 200, Label: "spec", Percentage: decimal.NewFromInt(30), Status: domain.DeliverableRemis, SubmissionDate: date(2024, 2, 10)},
		{ID: 2, ProjectID: 200, Label: "run", Amount: decimal.NewFromInt(500), Status: domain.DeliverableValide, SubmissionDate: date(2024, 12, 31)},
		{ID: 3, ProjectID: 200, Label: "draft", Percentage: decimal.NewFromInt(20), Status: domain.DeliverableNonRemis, SubmissionDate: date(2024, 5, 1)},
		{ID: 4, ProjectID: 200, Label: "old", Percentage: decimal.NewFromInt(10), Status: domain.DeliverableValide, SubmissionDate: date(2023, 6, 1)},
	} {
		d := d
		d.TargetDate = time.Now()
		Expect(db.Create(&d).Error).To(BeNil())
	}
	m := dashboard.NewDashboardManager(testDatabase.DS)

	t.Run("administrators should see every project per calendar month", func(t *testing.T) {
		r, err := m.Production(2024, testinfra.BuildSecCtx(1, session.SystemAdminPerm))
		Expect(err).To(BeNil())
		Expect(r.Year).To(Equal(2024))
		Expect(len(r.Months)).To(Equal(12))
		Expect(r.Months[0].Month).To(Equal(1))
		Expect(r.Months[0].AT.String()).To(Equal("1250"))
		Expect(r.Months[1].Forfait.String()).To(Equal("3000"))
		Expect(r.Months[2].AT.String()).To(Equal("1600"))
		Expect(r.Months[4].Forfait.IsZero()).To(BeTrue())
		Expect(r.Months[11].Month).To(Equal(12))
		Expect(r.Months[11].Forfait.String()).To(Equal("500"))
		Expect(r.Total.String()).To(Equal("6350"))
	})

	t.Run("managers should see their projects only", func(t *testing.T) {
		r, err := m.Production(2024, testinfra.BuildSecCtx(2, "manager_100"))
		Expect(err).To(BeNil())
		Expect(r.Total.String()).To(Equal("2850"))
		Expect(r.Months[1].Forfait.IsZero()).To(BeTrue())

		r, err = m.Production(2024, testinfra.BuildSecCtx(3))
		Expect(err).To(BeNil())
		Expect(len(r.Months)).To(Equal(12))
		Expect(r.Total.IsZero()).To(BeTrue())
	})

	t.Run("previous year should only hold its own entries", func(t *testing.T) {
		r, err := m.Production(2023, testinfra.BuildSecCtx(1, session.SystemAdminPerm))
		Expect(err).To(BeNil())
		Expect(r.Months[11].AT.String()).To(Equal("800"))
		Expect(r.Months[5].Forfait.String()).To(Equal("1000"))
		Expect(r.Total.String()).To(Equal("1800"))
	})

	t.Run("invalid year should be rejected", func(t *testing.T) {
		var badParam *bizerror.ErrBadParam
		_, err := m.Production(99, testinfra.BuildSecCtx(1, session.SystemAdminPerm))
		Expect(errors.As(err, &badParam)).To(BeTrue())
	})
}
