package indices

import (
	"context"
	"encoding/json"
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/session"
	"time"
)

const (
	AuditIndexName          = "pilotage-audit-logs"
	AuditIndexerHandlerName = "auditIndexer"
	searchLimit             = 1000
)

// IndexAuditHandle is an audit handler copying committed records into the
// search index.
func IndexAuditHandle(r *audit.AuditRecord) *audit.HandleResult {
	if err := IndexFunc(context.Background(), AuditIndexName, r.ID.String(), r); err != nil {
		return &audit.HandleResult{
			Message:           fmt.Sprintf("index audit record %d, %v", r.ID, err),
			HandlerIdentifier: AuditIndexerHandlerName,
		}
	}
	return &audit.HandleResult{Success: true, HandlerIdentifier: AuditIndexerHandlerName}
}

type AuditSearch struct {
	EntityType string     `form:"entityType" json:"entityType"`
	EntityID   string     `form:"entityId" json:"entityId"`
	Action     string     `form:"action" json:"action"`
	Actor      string     `form:"actor" json:"actor"`
	From       *time.Time `form:"from" json:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" json:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// BuildAuditQuery renders the search as an ES bool filter, newest first.
func BuildAuditQuery(q AuditSearch) H {
	filters := make([]H, 0, 5)
	if q.EntityType != "" {
		filters = append(filters, H{"term": H{"entityType.keyword": q.EntityType}})
	}
	if q.EntityID != "" {
		filters = append(filters, H{"term": H{"entityId.keyword": q.EntityID}})
	}
	if q.Action != "" {
		filters = append(filters, H{"term": H{"action.keyword": q.Action}})
	}
	if q.Actor != "" {
		filters = append(filters, H{"match": H{"actorName": H{"query": q.Actor, "operator": "AND"}}})
	}
	if q.From != nil || q.To != nil {
		r := H{}
		if q.From != nil {
			r["gte"] = q.From.Format(time.RFC3339Nano)
		}
		if q.To != nil {
			r["lte"] = q.To.Format(time.RFC3339Nano)
		}
		filters = append(filters, H{"range": H{"timestamp": r}})
	}
	return H{
		"size":  searchLimit,
		"query": H{"bool": H{"filter": filters}},
		"sort":  []H{{"timestamp": H{"order": "desc"}}},
	}
}

// SearchAuditRecords is reserved to administrators: records of every project
// share the index.
func SearchAuditRecords(q AuditSearch, sec *session.Context) ([]audit.AuditRecord, error) {
	if !sec.IsAdmin() {
		return nil, bizerror.ErrForbidden
	}
	r, err := SearchFunc(sec.TraceContext(), AuditIndexName, BuildAuditQuery(q))
	if err != nil {
		return nil, bizerror.External("search", err)
	}
	records := make([]audit.AuditRecord, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		record := audit.AuditRecord{}
		if err := json.Unmarshal([]byte(hit.Source), &record); err != nil {
			return nil, fmt.Errorf("decode audit document %s: %w", hit.Id, err)
		}
		records = append(records, record)
	}
	return records, nil
}
