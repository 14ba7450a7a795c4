package indices

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/session"
	"pilotage/testinfra"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestIndexAuditHandle(t *testing.T) {
	RegisterTestingT(t)
	defer func() { IndexFunc = Index }()

	t.Run("should index the record by id", func(t *testing.T) {
		var gotIndex, gotID string
		IndexFunc = func(ctx context.Context, index string, id string, doc interface{}) error {
			gotIndex, gotID = index, id
			return nil
		}
		r := IndexAuditHandle(&audit.AuditRecord{ID: 100, Action: audit.ActionLock})
		Expect(*r).To(Equal(audit.HandleResult{Success: true, HandlerIdentifier: AuditIndexerHandlerName}))
		Expect(gotIndex).To(Equal(AuditIndexName))
		Expect(gotID).To(Equal("100"))
	})

	t.Run("should report index failures", func(t *testing.T) {
		IndexFunc = func(ctx context.Context, index string, id string, doc interface{}) error {
			return errors.New("cluster down")
		}
		r := IndexAuditHandle(&audit.AuditRecord{ID: 100})
		Expect(*r).To(Equal(audit.HandleResult{Success: false, HandlerIdentifier: AuditIndexerHandlerName,
			Message: "index audit record 100, cluster down"}))
	})
}

func TestSearchAuditRecords(t *testing.T) {
	RegisterTestingT(t)
	defer func() { SearchFunc = Search }()

	t.Run("query should only carry the given filters", func(t *testing.T) {
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		q := BuildAuditQuery(AuditSearch{EntityType: audit.EntityBordereau, Action: audit.ActionSigned, From: &from})
		filters := q["query"].(H)["bool"].(H)["filter"].([]H)
		Expect(filters).To(Equal([]H{
			{"term": H{"entityType.keyword": audit.EntityBordereau}},
			{"term": H{"action.keyword": audit.ActionSigned}},
			{"range": H{"timestamp": H{"gte": "2024-01-01T00:00:00Z"}}},
		}))
		Expect(q["size"]).To(Equal(searchLimit))
	})

	t.Run("only admins can search", func(t *testing.T) {
		_, err := SearchAuditRecords(AuditSearch{}, testinfra.BuildSecCtx(2, "manager_1"))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})

	t.Run("hits should be decoded into records", func(t *testing.T) {
		SearchFunc = func(ctx context.Context, index string, query interface{}) (*ESSearchResult, error) {
			return &ESSearchResult{Hits: ESSearchHits{Hits: []ESSearchHit{
				{Id: "7", Source: `{"id":"7","entityType":"Bordereau","entityId":"9","action":"SIGNED","diff":{"sourceRef":"agr-1"}}`},
			}}}, nil
		}
		records, err := SearchAuditRecords(AuditSearch{}, testinfra.BuildSecCtx(1, session.SystemAdminPerm))
		Expect(err).To(BeNil())
		Expect(len(records)).To(Equal(1))
		Expect(records[0].ID.String()).To(Equal("7"))
		Expect(records[0].Diff["sourceRef"]).To(Equal("agr-1"))
	})

	t.Run("search failures are external errors", func(t *testing.T) {
		SearchFunc = func(ctx context.Context, index string, query interface{}) (*ESSearchResult, error) {
			return nil, errors.New("boom")
		}
		_, err := SearchAuditRecords(AuditSearch{}, testinfra.BuildSecCtx(1, session.SystemAdminPerm))
		var external *bizerror.ErrExternalService
		Expect(errors.As(err, &external)).To(BeTrue())
	})
}

func TestScheduleNewSyncRun(t *testing.T) {
	RegisterTestingT(t)

	t.Run("only system admin can schedule sync run", func(t *testing.T) {
		i := NewAuditIndexer(nil)
		success, err := i.ScheduleNewSyncRun(testinfra.BuildSecCtx(2, "manager_1"))
		Expect(err).To(Equal(bizerror.ErrForbidden))
		Expect(success).To(BeFalse())
	})

	t.Run("only one run at a time", func(t *testing.T) {
		i := NewAuditIndexer(nil)
		i.fullSync = func() error {
			time.Sleep(100 * time.Millisecond)
			return nil
		}
		sec := testinfra.BuildSecCtx(1, session.SystemAdminPerm)
		success, err := i.ScheduleNewSyncRun(sec)
		Expect(err).To(BeNil())
		Expect(success).To(BeTrue())

		success, err = i.ScheduleNewSyncRun(sec)
		Expect(err).To(BeNil())
		Expect(success).To(BeFalse())

		time.Sleep(200 * time.Millisecond)

		success, err = i.ScheduleNewSyncRun(sec)
		Expect(err).To(BeNil())
		Expect(success).To(BeTrue())
	})
}

func TestFullSync(t *testing.T) {
	RegisterTestingT(t)
	defer func() {
		IndexFunc = Index
		SyncBatchSize = 500
	}()

	testDatabase := testinfra.StartTestDatabase("pilotage")
	defer testinfra.StopTestDatabase(testDatabase)
	Expect(testDatabase.DS.GormDB().AutoMigrate(&audit.AuditRecord{}).Error).To(BeNil())
	sec := testinfra.BuildSecCtx(1, session.SystemAdminPerm)
	for n := 0; n < 5; n++ {
		_, err := audit.Write(testDatabase.DS.GormDB(), audit.Entry{EntityType: audit.EntityProject, EntityID: "1", Action: audit.ActionUpdate}, sec)
		Expect(err).To(BeNil())
	}

	var mu sync.Mutex
	ids := map[string]bool{}
	IndexFunc = func(ctx context.Context, index string, id string, doc interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		ids[id] = true
		return nil
	}
	SyncBatchSize = 2

	Expect(NewAuditIndexer(testDatabase.DS).FullSync()).To(Succeed())
	Expect(len(ids)).To(Equal(5))
}

func TestIndicesRestAPI(t *testing.T) {
	RegisterTestingT(t)
	defer func() { SearchFunc = Search }()

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	router.Use(func(c *gin.Context) {
		c.Set(session.KeySecCtx, testinfra.BuildSecCtx(1, session.SystemAdminPerm))
	})
	i := NewAuditIndexer(nil)
	i.fullSync = func() error { return nil }
	RegisterIndicesRestAPI(router, i)

	t.Run("schedule sync", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, PathIndexRequests, nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"result": true}`))
	})

	t.Run("search", func(t *testing.T) {
		var received interface{}
		SearchFunc = func(ctx context.Context, index string, query interface{}) (*ESSearchResult, error) {
			received = query
			return &ESSearchResult{}, nil
		}
		req := httptest.NewRequest(http.MethodGet, PathAuditSearch+"?entityType=PeriodLock&entityId=5", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
		filters := received.(H)["query"].(H)["bool"].(H)["filter"].([]H)
		Expect(len(filters)).To(Equal(2))
	})
}
