package audit

import (
	"errors"
	"pilotage/idgen"
	"pilotage/session"
	"time"

	"github.com/jinzhu/gorm"
)

var (
	auditIdWorker = idgen.NewWorker()

	AuditPersistCreateFunc = auditPersistCreate
)

type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	Diff       Diff
}

// Write appends one record inside the caller's transaction. Callers hand the
// returned record to Publish once the transaction has committed.
func Write(tx *gorm.DB, e Entry, sec *session.Context) (*AuditRecord, error) {
	if e.EntityType == "" || e.Action == "" {
		return nil, errors.New("audit entity type and action are required")
	}
	record := AuditRecord{
		ID:         idgen.NextID(auditIdWorker),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Diff:       e.Diff,
		ActorID:    sec.ActorID(),
		ActorName:  sec.ActorName(),
		Timestamp:  time.Now(),
	}
	if record.Diff == nil {
		record.Diff = Diff{}
	}
	if err := AuditPersistCreateFunc(&record, tx); err != nil {
		return nil, err
	}
	return &record, nil
}

func auditPersistCreate(record *AuditRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

type AuditQuery struct {
	EntityType string `form:"entityType" json:"entityType" binding:"required"`
	EntityID   string `form:"entityId" json:"entityId" binding:"required"`
}

func QueryAuditRecords(db *gorm.DB, q AuditQuery) ([]AuditRecord, error) {
	records := []AuditRecord{}
	if err := db.Where("entity_type = ? AND entity_id = ?", q.EntityType, q.EntityID).
		Order("timestamp ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Recorder collects the records written during one transaction.
type Recorder struct {
	Records []*AuditRecord
}

func (r *Recorder) Write(tx *gorm.DB, e Entry, sec *session.Context) (*AuditRecord, error) {
	record, err := Write(tx, e, sec)
	if err != nil {
		return nil, err
	}
	r.Records = append(r.Records, record)
	return record, nil
}

// Publish hands the committed records to the registered handlers.
func (r *Recorder) Publish() {
	if InvokeHandlersFunc == nil {
		return
	}
	for _, record := range r.Records {
		InvokeHandlersFunc(record)
	}
}
