package audit

import (
	"pilotage/bizerror"
	"pilotage/persistence"
	"pilotage/session"
)

type AuditManagerTraits interface {
	QueryAuditRecords(q AuditQuery, sec *session.Context) ([]AuditRecord, error)
}

// AuditManager serves the compliance screens. Records of every project share
// one table, so reading them is reserved to administrators.
type AuditManager struct {
	dataSource *persistence.DataSourceManager
}

func NewAuditManager(ds *persistence.DataSourceManager) *AuditManager {
	return &AuditManager{dataSource: ds}
}

func (m *AuditManager) QueryAuditRecords(q AuditQuery, sec *session.Context) ([]AuditRecord, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	return QueryAuditRecords(m.dataSource.GormDBWithContext(sec.TraceContext()), q)
}
