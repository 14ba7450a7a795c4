package project_test

import (
	"errors"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/project"
	"pilotage/domain/timeentry"
	"pilotage/session"
	"pilotage/testinfra"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func projectTestSetup(t *testing.T) (*testinfra.TestDatabase, *project.ProjectManager) {
	testDatabase := testinfra.StartTestDatabase("pilotage")
	if err := testDatabase.DS.GormDB().AutoMigrate(&domain.Project{}, &domain.Client{}, &timeentry.TimeEntry{}, &audit.AuditRecord{}).Error; err != nil {
		t.Fatal(err)
	}
	return testDatabase, project.NewProjectManager(testDatabase.DS)
}

var admin = testinfra.BuildSecCtx(1, session.SystemAdminPerm)

func TestCreateProject(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should be reserved to administrators", func(t *testing.T) {
		testDatabase, m := projectTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)

		p, err := m.CreateProject(&project.ProjectCreating{ProjectNumber: "P-1", Designation: "d", Type: domain.ProjectTypeAT},
			testinfra.BuildSecCtx(2, "manager_1"))
		Expect(p).To(BeNil())
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("should create a planned project and audit it", func(t *testing.T) {
		testDatabase, m := projectTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)

		p, err := m.CreateProject(&project.ProjectCreating{ProjectNumber: "P-2", Designation: "forfait",
			Type: domain.ProjectTypeForfait, OrderAmount: decimal.NewFromInt(24000)}, admin)
		Expect(err).To(BeNil())
		Expect(p.ID).ToNot(BeZero())
		Expect(p.Status).To(Equal(domain.ProjectStatusPrevu))
		Expect(p.CreatorID).To(Equal(types.ID(1)))

		found, err := domain.FindProject(testDatabase.DS.GormDB(), p.ID)
		Expect(err).To(BeNil())
		Expect(found.OrderAmount.Equal(decimal.NewFromInt(24000))).To(BeTrue())

		records, err := audit.QueryAuditRecords(testDatabase.DS.GormDB(),
			audit.AuditQuery{EntityType: audit.EntityProject, EntityID: p.ID.String()})
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(1))
		Expect(records[0].Action).To(Equal(audit.ActionCreate))
	})
}

func TestQueryProjects(t *testing.T) {
	RegisterTestingT(t)

	testDatabase, m := projectTestSetup(t)
	defer testinfra.StopTestDatabase(testDatabase)
	testinfra.CreateATProject(testDatabase.DS.GormDB(), 10, "P-B")
	testinfra.CreateATProject(testDatabase.DS.GormDB(), 20, "P-A")

	t.Run("should list every project for administrators", func(t *testing.T) {
		projects, err := m.QueryProjects(admin)
		Expect(err).To(BeNil())
		Expect(len(projects)).To(Equal(2))
		Expect(projects[0].ProjectNumber).To(Equal("P-A"))
	})

	t.Run("should list only managed projects", func(t *testing.T) {
		projects, err := m.QueryProjects(testinfra.BuildSecCtx(2, "manager_10", "viewer_20"))
		Expect(err).To(BeNil())
		Expect(len(projects)).To(Equal(1))
		Expect(projects[0].ID).To(Equal(types.ID(10)))

		projects, err = m.QueryProjects(testinfra.BuildSecCtx(3))
		Expect(err).To(BeNil())
		Expect(projects).To(BeEmpty())
	})
}

func TestUpdateAndDeleteProject(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should update the editable fields", func(t *testing.T) {
		testDatabase, m := projectTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		testinfra.CreateATProject(testDatabase.DS.GormDB(), 10, "P-1")

		p, err := m.UpdateProject(10, &project.ProjectUpdating{Designation: "renamed", Status: domain.ProjectStatusClos}, admin)
		Expect(err).To(BeNil())
		Expect(p.Designation).To(Equal("renamed"))
		Expect(p.Status).To(Equal(domain.ProjectStatusClos))
		Expect(p.ProjectNumber).To(Equal("P-1"))

		_, err = m.UpdateProject(99, &project.ProjectUpdating{Designation: "x", Status: domain.ProjectStatusClos}, admin)
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should refuse to delete a referenced project", func(t *testing.T) {
		testDatabase, m := projectTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		testinfra.CreateATProject(testDatabase.DS.GormDB(), 10, "P-1")
		Expect(testDatabase.DS.GormDB().Create(&timeentry.TimeEntry{ID: 1, ProjectID: 10, Year: 2024, Month: 1, Day: 2,
			Type: timeentry.TypeBO, Hours: decimal.NewFromInt(8), UpdateTime: time.Now()}).Error).To(BeNil())

		detail, err := m.DetailProject(10, admin)
		Expect(err).To(BeNil())
		Expect(detail.References["time_entries"]).To(Equal(1))

		Expect(m.DeleteProject(10, admin)).To(Equal(bizerror.ErrProjectInUse))
		_, err = domain.FindProject(testDatabase.DS.GormDB(), 10)
		Expect(err).To(BeNil())
	})

	t.Run("should delete an unreferenced project", func(t *testing.T) {
		testDatabase, m := projectTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		testinfra.CreateATProject(testDatabase.DS.GormDB(), 10, "P-1")

		Expect(m.DeleteProject(10, testinfra.BuildSecCtx(2, "manager_10"))).To(Equal(bizerror.ErrForbidden))
		Expect(m.DeleteProject(10, admin)).To(BeNil())
		_, err := domain.FindProject(testDatabase.DS.GormDB(), 10)
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestProjectClient(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should attach an existing client only", func(t *testing.T) {
		testDatabase, m := projectTestSetup(t)
		defer testinfra.StopTestDatabase(testDatabase)
		Expect(testDatabase.DS.GormDB().Create(&domain.Client{ID: 7, Name: "ACME", CreateTime: time.Now()}).Error).To(BeNil())

		p, err := m.CreateProject(&project.ProjectCreating{ProjectNumber: "P-1", Designation: "d", Type: domain.ProjectTypeAT,
			ClientID: 7}, admin)
		Expect(err).To(BeNil())
		Expect(p.ClientID).To(Equal(types.ID(7)))

		var badParam *bizerror.ErrBadParam
		_, err = m.CreateProject(&project.ProjectCreating{ProjectNumber: "P-2", Designation: "d", Type: domain.ProjectTypeAT,
			ClientID: 404}, admin)
		Expect(errors.As(err, &badParam)).To(BeTrue())

		_, err = m.UpdateProject(p.ID, &project.ProjectUpdating{Designation: "d", Status: domain.ProjectStatusEnCours, ClientID: 404}, admin)
		Expect(errors.As(err, &badParam)).To(BeTrue())
		updated, err := m.UpdateProject(p.ID, &project.ProjectUpdating{Designation: "d", Status: domain.ProjectStatusEnCours}, admin)
		Expect(err).To(BeNil())
		Expect(updated.ClientID).To(BeZero())
	})
}

func TestNextProjectNumber(t *testing.T) {
	RegisterTestingT(t)

	testDatabase, m := projectTestSetup(t)
	defer testinfra.StopTestDatabase(testDatabase)

	next, err := m.NextProjectNumber(2024, admin)
	Expect(err).To(BeNil())
	Expect(next).To(Equal("PRJ-2024-001"))

	testinfra.CreateATProject(testDatabase.DS.GormDB(), 1, "PRJ-2024-009")
	testinfra.CreateATProject(testDatabase.DS.GormDB(), 2, "PRJ-2024-012")
	testinfra.CreateATProject(testDatabase.DS.GormDB(), 3, "PRJ-2024-draft")
	testinfra.CreateATProject(testDatabase.DS.GormDB(), 4, "PRJ-2025-044")

	next, err = m.NextProjectNumber(2024, admin)
	Expect(err).To(BeNil())
	Expect(next).To(Equal("PRJ-2024-013"))

	_, err = m.NextProjectNumber(2024, testinfra.BuildSecCtx(2, "manager_1"))
	Expect(err).To(Equal(bizerror.ErrForbidden))
	var badParam *bizerror.ErrBadParam
	_, err = m.NextProjectNumber(24, admin)
	Expect(errors.As(err, &badParam)).To(BeTrue())
}
