package domain

import (
	"errors"
	"pilotage/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// FindProject loads a project, translating a missing row into bizerror.ErrNotFound.
func FindProject(db *gorm.DB, id types.ID) (*Project, error) {
	var p Project
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func AssertProjectExists(db *gorm.DB, id types.ID) error {
	var count int
	if err := db.Model(&Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return bizerror.ErrNotFound
	}
	return nil
}
