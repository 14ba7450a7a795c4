package client

import (
	"errors"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/idgen"
	"pilotage/session"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

type ContactCreating struct {
	ClientID  types.ID `json:"clientId" binding:"required"`
	FirstName string   `json:"firstName" binding:"required,lte=100"`
	LastName  string   `json:"lastName" binding:"required,lte=100"`
	Email     string   `json:"email" binding:"required,email"`
	Role      string   `json:"role" binding:"required,lte=100"`
	Phone     string   `json:"phone" binding:"lte=40"`
}

// ContactUpdating changes only the fields that are set.
type ContactUpdating struct {
	Name   *string `json:"name" binding:"omitempty,lte=200"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Role   *string `json:"role" binding:"omitempty,lte=100"`
	Phone  *string `json:"phone" binding:"omitempty,lte=40"`
	Active *bool   `json:"active"`
}

func (u *ContactUpdating) empty() bool {
	return u.Name == nil && u.Email == nil && u.Role == nil && u.Phone == nil && u.Active == nil
}

func (m *ClientManager) QueryContacts(clientID types.ID, sec *session.Context) ([]domain.Contact, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	if ok, err := canAccessClient(db, clientID, sec); err != nil {
		return nil, err
	} else if !ok {
		return nil, bizerror.ErrForbidden
	}
	contacts := []domain.Contact{}
	if err := db.Where("client_id = ?", clientID).Order("name ASC").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (m *ClientManager) CreateContact(c *ContactCreating, sec *session.Context) (*domain.Contact, error) {
	if err := requestValidator.Struct(c); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	contact := domain.Contact{
		ID: idgen.NextID(contactIdWorker), ClientID: c.ClientID,
		Name:  strings.TrimSpace(c.FirstName + " " + c.LastName),
		Email: strings.TrimSpace(c.Email), Role: strings.TrimSpace(c.Role), Phone: c.Phone,
		Active: true, CreateTime: time.Now(),
	}

	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		if _, err := domain.FindClient(tx, c.ClientID); err != nil {
			return err
		}
		if ok, err := canAccessClient(tx, c.ClientID, sec); err != nil {
			return err
		} else if !ok {
			return bizerror.ErrForbidden
		}
		if err := tx.Create(&contact).Error; err != nil {
			return err
		}
		_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityContact, EntityID: contact.ID.String(), Action: audit.ActionCreate,
			Diff: audit.Diff{"clientId": c.ClientID.String(), "name": contact.Name, "email": contact.Email}}, sec)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return &contact, nil
}

func (m *ClientManager) UpdateContact(id types.ID, u *ContactUpdating, sec *session.Context) (*domain.Contact, error) {
	if err := requestValidator.Struct(u); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	if u.empty() {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("nothing to update")}
	}

	var result *domain.Contact
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		c, err := findContact(tx, id, sec)
		if err != nil {
			return err
		}
		diff := audit.Diff{}
		if u.Name != nil {
			c.Name = strings.TrimSpace(*u.Name)
			diff["name"] = c.Name
		}
		if u.Email != nil {
			c.Email = strings.TrimSpace(*u.Email)
			diff["email"] = c.Email
		}
		if u.Role != nil {
			c.Role = strings.TrimSpace(*u.Role)
			diff["role"] = c.Role
		}
		if u.Phone != nil {
			c.Phone = *u.Phone
			diff["phone"] = c.Phone
		}
		if u.Active != nil {
			c.Active = *u.Active
			diff["active"] = c.Active
		}
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityContact, EntityID: c.ID.String(), Action: audit.ActionUpdate,
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

func (m *ClientManager) DeleteContact(id types.ID, sec *session.Context) error {
	rec := audit.Recorder{}
	err := m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
		c, err := findContact(tx, id, sec)
		if err != nil {
			return err
		}
		if err := tx.Delete(&domain.Contact{}, "id = ?", id).Error; err != nil {
			return err
		}
		_, err = rec.Write(tx, audit.Entry{EntityType: audit.EntityContact, EntityID: id.String(), Action: audit.ActionDelete,
			Diff: audit.Diff{"clientId": c.ClientID.String(), "name": c.Name}}, sec)
		return err
	})
	if err != nil {
		return err
	}
	rec.Publish()
	return nil
}

func findContact(db *gorm.DB, id types.ID, sec *session.Context) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	if ok, err := canAccessClient(db, c.ClientID, sec); err != nil {
		return nil, err
	} else if !ok {
		return nil, bizerror.ErrForbidden
	}
	return &c, nil
}
