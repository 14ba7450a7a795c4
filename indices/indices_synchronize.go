package indices

import (
	"context"
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/persistence"
	"pilotage/session"
	"sync"

	"github.com/sirupsen/logrus"
)

var SyncBatchSize = 500

// AuditIndexer rebuilds the audit index from the audit_logs table.
type AuditIndexer struct {
	dataSource *persistence.DataSourceManager

	lock    sync.Mutex
	running bool

	fullSync func() error
}

func NewAuditIndexer(ds *persistence.DataSourceManager) *AuditIndexer {
	i := &AuditIndexer{dataSource: ds}
	i.fullSync = i.FullSync
	return i
}

// ScheduleNewSyncRun starts a full sync in the background unless one is
// already running. It reports whether a run was started.
func (i *AuditIndexer) ScheduleNewSyncRun(sec *session.Context) (bool, error) {
	if !sec.IsAdmin() {
		return false, bizerror.ErrForbidden
	}

	i.lock.Lock()
	if i.running {
		i.lock.Unlock()
		return false, nil
	}
	i.running = true
	i.lock.Unlock()

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			i.lock.Lock()
			i.running = false
			i.lock.Unlock()
		}()
		if err := i.fullSync(); err != nil {
			logrus.Errorf("audit index full sync: %v", err)
		}
	}()
	waitRunning.Wait()
	return true, nil
}

func (i *AuditIndexer) FullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on audit index full sync: %v", ret)
			}
		}
	}()

	page := 1
	indexed := 0
	for {
		records := []audit.AuditRecord{}
		if err := i.dataSource.GormDB().Order("id ASC").Offset((page - 1) * SyncBatchSize).Limit(SyncBatchSize).
			Find(&records).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			logrus.Infof("audit index full sync: %d record(s) indexed", indexed)
			return nil
		}
		for idx := range records {
			if err := IndexFunc(context.Background(), AuditIndexName, records[idx].ID.String(), &records[idx]); err != nil {
				logrus.Warnf("audit index full sync: record %d: %v", records[idx].ID, err)
				continue
			}
			indexed++
		}
		page++
	}
}
