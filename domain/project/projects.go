package project

import (
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/idgen"
	"pilotage/persistence"
	"pilotage/session"
	"strconv"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

var projectIdWorker = idgen.NewWorker()

type ProjectCreating struct {
	ProjectNumber       string             `json:"projectNumber" binding:"required,lte=40"`
	Designation         string             `json:"designation" binding:"required,lte=200"`
	Type                domain.ProjectType `json:"type" binding:"required,oneof=AT FORFAIT"`
	ProjectManager      string             `json:"projectManager" binding:"lte=100"`
	ProjectManagerEmail string             `json:"projectManagerEmail" binding:"omitempty,email"`
	ClientID            types.ID           `json:"clientId"`
	OrderAmount         decimal.Decimal    `json:"orderAmount"`
	domain.AtMetrics
}

type ProjectUpdating struct {
	Designation         string               `json:"designation" binding:"required,lte=200"`
	Status              domain.ProjectStatus `json:"status" binding:"required,oneof=PREVU EN_COURS CLOS ARCHIVE"`
	ProjectManager      string               `json:"projectManager" binding:"lte=100"`
	ProjectManagerEmail string               `json:"projectManagerEmail" binding:"omitempty,email"`
	ClientID            types.ID             `json:"clientId"`
	OrderAmount         decimal.Decimal      `json:"orderAmount"`
	domain.AtMetrics
}

// ProjectDetail is a project with the counts of the records it owns.
type ProjectDetail struct {
	domain.Project
	References map[string]int `json:"references"`
}

type ProjectManagerTraits interface {
	QueryProjects(sec *session.Context) ([]domain.Project, error)
	DetailProject(id types.ID, sec *session.Context) (*ProjectDetail, error)
	CreateProject(c *ProjectCreating, sec *session.Context) (*domain.Project, error)
	UpdateProject(id types.ID, u *ProjectUpdating, sec *session.Context) (*domain.Project, error)
	DeleteProject(id types.ID, sec *session.Context) error
	NextProjectNumber(year int, sec *session.Context) (string, error)
}

type ProjectManager struct {
	dataSource *persistence.DataSourceManager
}

func NewProjectManager(ds *persistence.DataSourceManager) *ProjectManager {
	return &ProjectManager{dataSource: ds}
}

// referenceTables lists the tables whose rows belong to a project.
var referenceTables = []string{"time_entries", "deliverables", "period_locks", "project_situation_snapshots", "bordereaux"}

func (m *ProjectManager) QueryProjects(sec *session.Context) ([]domain.Project, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	projects := []domain.Project{}
	if sec.IsAdmin() {
		if err := db.Order("project_number ASC").Find(&projects).Error; err != nil {
			return nil, err
		}
		return projects, nil
	}

	ids := sec.ManagedProjectIDs()
	if len(ids) == 0 {
		return projects, nil
	}
	if err := db.Where("id IN (?)", ids).Order("project_number ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (m *ProjectManager) DetailProject(id types.ID, sec *session.Context) (*ProjectDetail, error) {
	if !sec.CanManageProject(id) {
		return nil, bizerror.ErrForbidden
	}
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	p, err := domain.FindProject(db, id)
	if err != nil {
		return nil, err
	}
	refs, err := countReferences(db, id)
	if err != nil {
		return nil, err
	}
	return &ProjectDetail{Project: *p, References: refs}, nil
}

func (m *ProjectManager) CreateProject(c *ProjectCreating, sec *session.Context) (*domain.Project, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	p := domain.Project{
		ID: idgen.NextID(projectIdWorker), ProjectNumber: c.ProjectNumber, Designation: c.Designation,
		Type: c.Type, Status: domain.ProjectStatusPrevu,
		ProjectManager: c.ProjectManager, ProjectManagerEmail: c.ProjectManagerEmail,
		ClientID: c.ClientID, OrderAmount: c.OrderAmount, AtMetrics: c.AtMetrics,
		CreatorID: sec.ActorID(), CreateTime: time.Now(),
	}

	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		if err := assertClient(tx, p.ClientID); err != nil {
			return err
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityProject, EntityID: p.ID.String(), Action: audit.ActionCreate,
			Diff: audit.Diff{"projectNumber": p.ProjectNumber, "type": string(p.Type)}}, sec)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return &p, nil
}

func (m *ProjectManager) UpdateProject(id types.ID, u *ProjectUpdating, sec *session.Context) (*domain.Project, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}

	var result *domain.Project
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		p, err := domain.FindProject(tx, id)
		if err != nil {
			return err
		}
		if err := assertClient(tx, u.ClientID); err != nil {
			return err
		}
		before := p.Status
		p.Designation = u.Designation
		p.ClientID = u.ClientID
		p.Status = u.Status
		p.ProjectManager = u.ProjectManager
		p.ProjectManagerEmail = u.ProjectManagerEmail
		p.OrderAmount = u.OrderAmount
		p.AtMetrics = u.AtMetrics
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityProject, EntityID: p.ID.String(), Action: audit.ActionUpdate,
			Diff: audit.Diff{"status": map[string]string{"from": string(before), "to": string(p.Status)}}}, sec); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

// DeleteProject refuses while any owned record remains. Audit records are
// not owned and survive the project.
func (m *ProjectManager) DeleteProject(id types.ID, sec *session.Context) error {
	if !sec.IsAdmin() {
		return bizerror.ErrForbidden
	}

	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		p, err := domain.FindProject(tx, id)
		if err != nil {
			return err
		}
		refs, err := countReferences(tx, id)
		if err != nil {
			return err
		}
		for _, count := range refs {
			if count > 0 {
				return bizerror.ErrProjectInUse
			}
		}
		if err := tx.Delete(&domain.Project{}, "id = ?", id).Error; err != nil {
			return err
		}
		_, err = rec.Write(tx, audit.Entry{EntityType: audit.EntityProject, EntityID: id.String(), Action: audit.ActionDelete,
			Diff: audit.Diff{"projectNumber": p.ProjectNumber}}, sec)
		return err
	})
	if err != nil {
		return err
	}
	rec.Publish()
	return nil
}

// assertClient accepts a zero id, which leaves the project unattached.
func assertClient(db *gorm.DB, clientID types.ID) error {
	if clientID == 0 {
		return nil
	}
	if _, err := domain.FindClient(db, clientID); err != nil {
		if err == bizerror.ErrNotFound {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("client %s does not exist", clientID)}
		}
		return err
	}
	return nil
}

// NextProjectNumber proposes "PRJ-<year>-NNN" following the highest number
// already used that year. Numbers that do not parse are ignored.
func (m *ProjectManager) NextProjectNumber(year int, sec *session.Context) (string, error) {
	if !sec.IsAdmin() {
		return "", bizerror.ErrForbidden
	}
	if year < 2000 || year > 2999 {
		return "", &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid year %d", year)}
	}
	prefix := fmt.Sprintf("PRJ-%d-", year)
	var numbers []string
	if err := m.dataSource.GormDBWithContext(sec.TraceContext()).Model(&domain.Project{}).
		Where("project_number LIKE ?", prefix+"%").Pluck("project_number", &numbers).Error; err != nil {
		return "", err
	}
	max := 0
	for _, n := range numbers {
		if v, err := strconv.Atoi(strings.TrimPrefix(n, prefix)); err == nil && v > max {
			max = v
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1), nil
}

func countReferences(db *gorm.DB, id types.ID) (map[string]int, error) {
	refs := map[string]int{}
	for _, table := range referenceTables {
		if !db.HasTable(table) {
			continue
		}
		var count int
		if err := db.Table(table).Where("project_id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		refs[table] = count
	}
	return refs, nil
}
