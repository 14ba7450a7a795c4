package domain

import (
	"errors"
	"pilotage/bizerror"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Client is the customer a project is billed to.
type Client struct {
	ID       types.ID `json:"id" gorm:"primary_key"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Siren    string   `json:"siren"`
	Siret    string   `json:"siret"`
	TvaIntra string   `json:"tvaIntra"`
	Notes    string   `json:"notes" sql:"type:TEXT"`

	CreatorID  types.ID  `json:"creatorId"`
	CreateTime time.Time `json:"createTime"`
}

// Contact is a person at a client, e.g. the signatory of bordereaux.
type Contact struct {
	ID       types.ID `json:"id" gorm:"primary_key"`
	ClientID types.ID `json:"clientId" gorm:"index"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Phone    string   `json:"phone"`
	Active   bool     `json:"active"`

	CreateTime time.Time `json:"createTime"`
}

func FindClient(db *gorm.DB, id types.ID) (*Client, error) {
	var c Client
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
