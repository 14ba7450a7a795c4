package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

const (
	ActionLock             = "LOCK"
	ActionUnlock           = "UNLOCK"
	ActionUpsert           = "UPSERT"
	ActionGenerate         = "GENERATE"
	ActionSigned           = "SIGNED"
	ActionMonthClose       = "MONTH_CLOSE"
	ActionAdminUnlock      = "ADMIN_UNLOCK"
	ActionManualSnapshot   = "MANUAL_SNAPSHOT"
	ActionSendForSignature = "SEND_FOR_SIGNATURE"
	ActionAgreementStatus  = "AGREEMENT_STATUS"
	ActionCreate           = "CREATE"
	ActionUpdate           = "UPDATE"
	ActionDelete           = "DELETE"
)

const (
	EntityPeriodLock  = "PeriodLock"
	EntityTimeEntry   = "TimeEntry"
	EntitySnapshot    = "ProjectSituationSnapshot"
	EntityBordereau   = "Bordereau"
	EntityAgreement   = "SignatureAgreement"
	EntityProject     = "Project"
	EntityDeliverable = "Deliverable"
	EntityClient      = "Client"
	EntityContact     = "Contact"
	EntityComment     = "BordereauComment"
)

// Diff is the structured payload of an audit record.
type Diff map[string]interface{}

// AuditRecord is append-only. Entity ids are kept as strings: records outlive
// the entities they describe and some entities are keyed by tuples.
type AuditRecord struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	EntityType string `json:"entityType" gorm:"index:idx_audit_entity"`
	EntityID   string `json:"entityId" gorm:"index:idx_audit_entity"`
	Action     string `json:"action"`
	Diff       Diff   `json:"diff" sql:"type:TEXT"`

	ActorID   types.ID  `json:"actorId"`
	ActorName string    `json:"actorName"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *AuditRecord) TableName() string {
	return "audit_logs"
}

func (d Diff) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(map[string]interface{}(d))
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (d *Diff) Scan(v interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), d)
}
