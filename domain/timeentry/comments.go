package timeentry

import (
	"errors"
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/lock"
	"pilotage/idgen"
	"pilotage/locker"
	"pilotage/persistence"
	"pilotage/session"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var commentIdWorker = idgen.NewWorker()

// BordereauComment annotates one (day, type) line of a month's bordereau.
type BordereauComment struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	ProjectID types.ID  `json:"projectId" gorm:"unique_index:uni_bordereau_comment"`
	Year      int       `json:"year" gorm:"unique_index:uni_bordereau_comment"`
	Month     int       `json:"month" gorm:"unique_index:uni_bordereau_comment"`
	Day       int       `json:"day" gorm:"unique_index:uni_bordereau_comment"`
	Type      EntryType `json:"type" gorm:"unique_index:uni_bordereau_comment"`
	Comment   string    `json:"comment" sql:"type:TEXT"`

	UpdatedBy  string    `json:"updatedBy"`
	UpdateTime time.Time `json:"updateTime"`
}

func (c *BordereauComment) TableName() string {
	return "bordereau_comments"
}

type CommentUpsert struct {
	ProjectID types.ID  `json:"projectId" binding:"required"`
	Year      int       `json:"year" binding:"required,min=2000,max=2999"`
	Month     int       `json:"month" binding:"required,min=1,max=12"`
	Day       int       `json:"day" binding:"required,min=1,max=31"`
	Type      EntryType `json:"type" binding:"required,oneof=BO SITE"`
	Comment   string    `json:"comment" binding:"lte=2000"`
}

type CommentQuery struct {
	ProjectID types.ID `form:"projectId" binding:"required"`
	Year      int      `form:"year" binding:"required,min=2000,max=2999"`
	Month     int      `form:"month" binding:"required,min=1,max=12"`
}

type CommentManagerTraits interface {
	UpsertComment(u CommentUpsert, sec *session.Context) (*BordereauComment, error)
	ListComments(q CommentQuery, sec *session.Context) ([]BordereauComment, error)
}

type CommentManager struct {
	dataSource *persistence.DataSourceManager
	locker     locker.Locker
}

func NewCommentManager(ds *persistence.DataSourceManager, l locker.Locker) *CommentManager {
	return &CommentManager{dataSource: ds, locker: l}
}

// UpsertComment replaces the comment of a (day, type) line. Comments are
// printed on the bordereau, so they freeze with the period like the hours.
func (m *CommentManager) UpsertComment(u CommentUpsert, sec *session.Context) (*BordereauComment, error) {
	if err := upsertValidator.Struct(u); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	p := domain.Period{Year: u.Year, Month: u.Month}
	if u.Day > p.DaysInMonth() {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("day %d does not exist in %s", u.Day, p)}
	}
	if !sec.CanManageProject(u.ProjectID) {
		return nil, bizerror.ErrForbidden
	}

	var result *BordereauComment
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, lock.PeriodKey(u.ProjectID, u.Year, u.Month), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			if err := domain.AssertProjectExists(tx, u.ProjectID); err != nil {
				return err
			}
			if err := lock.AssertNotLocked(tx, u.ProjectID, u.Year, u.Month); err != nil {
				return err
			}

			var c BordereauComment
			err := tx.Where("project_id = ? AND year = ? AND month = ? AND day = ? AND type = ?",
				u.ProjectID, u.Year, u.Month, u.Day, u.Type).First(&c).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c = BordereauComment{ID: idgen.NextID(commentIdWorker), ProjectID: u.ProjectID,
					Year: u.Year, Month: u.Month, Day: u.Day, Type: u.Type,
					Comment: u.Comment, UpdatedBy: sec.ActorName(), UpdateTime: time.Now()}
				err = tx.Create(&c).Error
			} else if err == nil {
				c.Comment = u.Comment
				c.UpdatedBy = sec.ActorName()
				c.UpdateTime = time.Now()
				err = tx.Save(&c).Error
			}
			if err != nil {
				return err
			}
			if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityComment, EntityID: c.ID.String(), Action: audit.ActionUpsert,
				Diff: audit.Diff{"projectId": u.ProjectID.String(), "year": u.Year, "month": u.Month, "day": u.Day,
					"type": string(u.Type), "comment": u.Comment}}, sec); err != nil {
				return err
			}
			result = &c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

func (m *CommentManager) ListComments(q CommentQuery, sec *session.Context) ([]BordereauComment, error) {
	if err := upsertValidator.Struct(q); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	if !sec.CanManageProject(q.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	return ListComments(m.dataSource.GormDBWithContext(sec.TraceContext()), q.ProjectID, q.Year, q.Month)
}

// ListComments orders by (day, type), the line order of the bordereau.
func ListComments(db *gorm.DB, projectID types.ID, year, month int) ([]BordereauComment, error) {
	comments := []BordereauComment{}
	if err := db.Where("project_id = ? AND year = ? AND month = ?", projectID, year, month).
		Order("day ASC").Order("type ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
