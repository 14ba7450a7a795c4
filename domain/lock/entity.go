package lock

import (
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

// PeriodLock is one row per (project, year, month). A missing row means the
// period is open.
type PeriodLock struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ProjectID types.ID `json:"projectId" gorm:"unique_index:uni_period_lock"`
	Year      int      `json:"year" gorm:"unique_index:uni_period_lock"`
	Month     int      `json:"month" gorm:"unique_index:uni_period_lock"`

	Locked   bool      `json:"locked"`
	LockedBy string    `json:"lockedBy"`
	LockedAt time.Time `json:"lockedAt"`
	Reason   string    `json:"reason"`
}

func (l *PeriodLock) TableName() string {
	return "period_locks"
}

type PeriodLockRequest struct {
	ProjectID types.ID `json:"projectId" form:"projectId" binding:"required"`
	Year      int      `json:"year" form:"year" binding:"required,min=2000,max=2999"`
	Month     int      `json:"month" form:"month" binding:"required,min=1,max=12"`
	Reason    string   `json:"reason"`
}

const ReasonMonthClose = "MONTH_CLOSE"

// PeriodKey is the locker key shared by every writer of one period.
func PeriodKey(projectID types.ID, year, month int) string {
	return fmt.Sprintf("period/%s/%04d-%02d", projectID.String(), year, month)
}
