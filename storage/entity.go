package storage

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

// StoredFile describes bytes written to a backend.
type StoredFile struct {
	StorageKey  string `json:"storageKey"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
}

// FileObject is the database record of a stored file.
type FileObject struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	StorageKey  string    `json:"storageKey" gorm:"unique_index"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	CreatorID   types.ID  `json:"creatorId"`
	CreateTime  time.Time `json:"createTime"`
}

func (f *FileObject) TableName() string {
	return "file_objects"
}
