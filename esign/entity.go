package esign

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

// SignatureAgreement links a bordereau to the provider agreement sent for it.
type SignatureAgreement struct {
	ID             types.ID        `json:"id" gorm:"primary_key"`
	ProviderID     string          `json:"providerId" gorm:"unique_index"`
	BordereauID    types.ID        `json:"bordereauId" gorm:"index"`
	VersionID      types.ID        `json:"versionId"`
	Status         AgreementStatus `json:"status"`
	RecipientEmail string          `json:"recipientEmail"`

	CreatorID   types.ID  `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
}

func (a *SignatureAgreement) TableName() string {
	return "signature_agreements"
}

type SignatureRequest struct {
	BordereauID    types.ID `json:"bordereauId" binding:"required"`
	RecipientEmail string   `json:"recipientEmail" binding:"required,email"`
}

type ReminderRequest struct {
	Note string `json:"note" binding:"lte=1000"`
}

// SyncResult reports what one webhook delivery changed.
type SyncResult struct {
	Processed int `json:"processed"`
	Ignored   int `json:"ignored"`
	Signed    int `json:"signed"`
}
