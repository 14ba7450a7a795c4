package client

import (
	"errors"
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/idgen"
	"pilotage/persistence"
	"pilotage/session"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
)

var (
	clientIdWorker  = idgen.NewWorker()
	contactIdWorker = idgen.NewWorker()

	requestValidator = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

type ClientSaving struct {
	Name     string `json:"name" binding:"required,lte=200"`
	Address  string `json:"address" binding:"required,lte=500"`
	Siren    string `json:"siren" binding:"omitempty,numeric,len=9"`
	Siret    string `json:"siret" binding:"omitempty,numeric,len=14"`
	TvaIntra string `json:"tvaIntra" binding:"lte=20"`
	Notes    string `json:"notes" binding:"lte=4000"`
}

type ClientManagerTraits interface {
	QueryClients(sec *session.Context) ([]domain.Client, error)
	CreateClient(c *ClientSaving, sec *session.Context) (*domain.Client, error)
	UpdateClient(id types.ID, u *ClientSaving, sec *session.Context) (*domain.Client, error)
	DeleteClient(id types.ID, sec *session.Context) error

	QueryContacts(clientID types.ID, sec *session.Context) ([]domain.Contact, error)
	CreateContact(c *ContactCreating, sec *session.Context) (*domain.Contact, error)
	UpdateContact(id types.ID, u *ContactUpdating, sec *session.Context) (*domain.Contact, error)
	DeleteContact(id types.ID, sec *session.Context) error
}

type ClientManager struct {
	dataSource *persistence.DataSourceManager
}

func NewClientManager(ds *persistence.DataSourceManager) *ClientManager {
	return &ClientManager{dataSource: ds}
}

// ValidateClient checks the form and, when present, the SIREN and SIRET keys.
func ValidateClient(c *ClientSaving) error {
	if err := requestValidator.Struct(c); err != nil {
		return &bizerror.ErrBadParam{Cause: err}
	}
	if c.Siren != "" && !LuhnValid(c.Siren) {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid SIREN %s", c.Siren)}
	}
	if c.Siret != "" {
		if !SiretValid(c.Siret) {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid SIRET %s", c.Siret)}
		}
		if c.Siren != "" && !strings.HasPrefix(c.Siret, c.Siren) {
			return &bizerror.ErrBadParam{Cause: errors.New("SIRET does not belong to SIREN")}
		}
	}
	return nil
}

// laPosteSiren is the one SIREN whose establishments are not numbered with a
// Luhn key: the digits of their SIRET sum to a multiple of 5 instead.
const laPosteSiren = "356000000"

func SiretValid(siret string) bool {
	if len(siret) != 14 {
		return false
	}
	if strings.HasPrefix(siret, laPosteSiren) && siret != laPosteSiren+"00048" {
		sum := 0
		for i := 0; i < len(siret); i++ {
			if siret[i] < '0' || siret[i] > '9' {
				return false
			}
			sum += int(siret[i] - '0')
		}
		return sum%5 == 0
	}
	return LuhnValid(siret)
}

// LuhnValid reports whether a string of digits carries a valid Luhn key, the
// checksum of SIREN and SIRET numbers.
func LuhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// QueryClients returns every client to admins, and to managers the clients
// of the projects they manage.
func (m *ClientManager) QueryClients(sec *session.Context) ([]domain.Client, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	clients := []domain.Client{}
	if sec.IsAdmin() {
		if err := db.Order("name ASC").Find(&clients).Error; err != nil {
			return nil, err
		}
		return clients, nil
	}

	ids := sec.ManagedProjectIDs()
	if len(ids) == 0 {
		return clients, nil
	}
	var clientIDs []types.ID
	if err := db.Model(&domain.Project{}).Where("id IN (?) AND client_id <> 0", ids).Pluck("DISTINCT client_id", &clientIDs).Error; err != nil {
		return nil, err
	}
	if len(clientIDs) == 0 {
		return clients, nil
	}
	if err := db.Where("id IN (?)", clientIDs).Order("name ASC").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (m *ClientManager) CreateClient(c *ClientSaving, sec *session.Context) (*domain.Client, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if err := ValidateClient(c); err != nil {
		return nil, err
	}
	client := domain.Client{
		ID: idgen.NextID(clientIdWorker), Name: strings.TrimSpace(c.Name), Address: c.Address,
		Siren: c.Siren, Siret: c.Siret, TvaIntra: c.TvaIntra, Notes: c.Notes,
		CreatorID: sec.ActorID(), CreateTime: time.Now(),
	}

	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&client).Error; err != nil {
			return err
		}
		_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityClient, EntityID: client.ID.String(), Action: audit.ActionCreate,
			Diff: audit.Diff{"name": client.Name, "siret": client.Siret}}, sec)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return &client, nil
}

func (m *ClientManager) UpdateClient(id types.ID, u *ClientSaving, sec *session.Context) (*domain.Client, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	if err := ValidateClient(u); err != nil {
		return nil, err
	}

	var result *domain.Client
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		c, err := domain.FindClient(tx, id)
		if err != nil {
			return err
		}
		diff := audit.Diff{}
		if c.Name != strings.TrimSpace(u.Name) {
			diff["name"] = map[string]string{"from": c.Name, "to": strings.TrimSpace(u.Name)}
		}
		if c.Siret != u.Siret {
			diff["siret"] = map[string]string{"from": c.Siret, "to": u.Siret}
		}
		c.Name = strings.TrimSpace(u.Name)
		c.Address = u.Address
		c.Siren = u.Siren
		c.Siret = u.Siret
		c.TvaIntra = u.TvaIntra
		c.Notes = u.Notes
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityClient, EntityID: c.ID.String(), Action: audit.ActionUpdate,
			Diff: diff}, sec); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

// DeleteClient refuses while projects or contacts still point at the client.
func (m *ClientManager) DeleteClient(id types.ID, sec *session.Context) error {
	if !sec.IsAdmin() {
		return bizerror.ErrForbidden
	}

	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		c, err := domain.FindClient(tx, id)
		if err != nil {
			return err
		}
		var projects, contacts int
		if err := tx.Model(&domain.Project{}).Where("client_id = ?", id).Count(&projects).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Contact{}).Where("client_id = ?", id).Count(&contacts).Error; err != nil {
			return err
		}
		if projects > 0 || contacts > 0 {
			return bizerror.ErrClientInUse
		}
		if err := tx.Delete(&domain.Client{}, "id = ?", id).Error; err != nil {
			return err
		}
		_, err = rec.Write(tx, audit.Entry{EntityType: audit.EntityClient, EntityID: id.String(), Action: audit.ActionDelete,
			Diff: audit.Diff{"name": c.Name}}, sec)
		return err
	})
	if err != nil {
		return err
	}
	rec.Publish()
	return nil
}

// canAccessClient grants admins and managers of a project of the client.
func canAccessClient(db *gorm.DB, clientID types.ID, sec *session.Context) (bool, error) {
	if sec.IsAdmin() {
		return true, nil
	}
	ids := sec.ManagedProjectIDs()
	if len(ids) == 0 {
		return false, nil
	}
	var count int
	if err := db.Model(&domain.Project{}).Where("client_id = ? AND id IN (?)", clientID, ids).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
