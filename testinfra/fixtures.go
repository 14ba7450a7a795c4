package testinfra

import (
	"pilotage/domain"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// CreateATProject inserts an AT project sold 10 BO days at 800 and 5 SITE
// days at 900.
func CreateATProject(db *gorm.DB, id types.ID, number string) *domain.Project {
	p := &domain.Project{
		ID: id, ProjectNumber: number, Designation: "project " + number,
		Type: domain.ProjectTypeAT, Status: domain.ProjectStatusEnCours,
		ProjectManager: "pm", ProjectManagerEmail: "pm@example.com",
		AtMetrics: domain.AtMetrics{
			DaysSoldBO: decimal.NewFromInt(10), DaysSoldSite: decimal.NewFromInt(5),
			DailyRateBO: decimal.NewFromInt(800), DailyRateSite: decimal.NewFromInt(900),
		},
		CreateTime: time.Now(),
	}
	if err := db.Create(p).Error; err != nil {
		panic(err)
	}
	return p
}
