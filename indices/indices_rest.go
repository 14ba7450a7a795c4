package indices

import (
	"net/http"
	"pilotage/session"

	"github.com/gin-gonic/gin"
)

var (
	PathIndexRequests = "/v1/index-requests"
	PathAuditSearch   = "/v1/audit-search"
)

func RegisterIndicesRestAPI(r *gin.Engine, indexer *AuditIndexer, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexRequests, middleWares...)
	g.POST("", func(c *gin.Context) {
		success, err := indexer.ScheduleNewSyncRun(session.FindSecurityContext(c))
		if err != nil {
			panic(err)
		}
		c.JSON(http.StatusOK, gin.H{"result": success})
	})

	s := r.Group(PathAuditSearch, middleWares...)
	s.GET("", handleAuditSearch)
}

func handleAuditSearch(c *gin.Context) {
	q := AuditSearch{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(err)
	}
	records, err := SearchAuditRecords(q, session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, records)
}
