package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/models"
	"github.com/planora-dev/planora/internal/types"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	Log *zap.SugaredLogger
}

type dashboardRow struct {
	ID          uint
	Name        string
	StartDate   time.Time
	EndDate     *time.Time
	Status      string
	MemberCount int
}

type DashboardProject struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	StartDate     string  `json:"start_date"`
	EndDate       *string `json:"end_date"`
	Status        string  `json:"status"`
	MemberCount   int     `json:"member_count"`
	Month         int     `json:"month"`
	Duration      int     `json:"duration"`
	Overdue       bool    `json:"overdue"`
	DaysRemaining *int    `json:"days_remaining"`
}

type StatusCounts struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Pending    int `json:"pending"`
}

var monthLabels = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Get aggregates the project list for the dashboard: per-project derived
// fields, status counts and a Jan-Dec histogram of start months.
func (h *DashboardHandler) Get(ctx *gin.Context) {
	q := db.DB.Model(&models.Project{}).
		Select("projects.id, projects.name, projects.start_date, projects.end_date, projects.status, COUNT(project_memberships.user_id) AS member_count").
		Joins("LEFT JOIN project_memberships ON project_memberships.project_id = projects.id").
		Group("projects.id")

	if raw := ctx.Query("userId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			q = q.Where("project_memberships.user_id = ?", uint(id))
		}
	}

	if raw := ctx.Query("dateFilter"); raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			// Projects active on the given day, open-ended ones included.
			q = q.Where("projects.start_date <= ?", d).
				Where("projects.end_date >= ? OR projects.end_date IS NULL", d)
		}
	}

	var rows []dashboardRow

	if err := q.Scan(&rows).Error; err != nil {
		h.Log.Errorw("fetching dashboard data", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dashboard data"})
		return
	}

	now := time.Now()
	projects := make([]DashboardProject, 0, len(rows))
	var counts StatusCounts
	perMonth := make([]int, 12)

	for _, row := range rows {
		endOrNow := now
		if row.EndDate != nil {
			endOrNow = *row.EndDate
		}

		project := DashboardProject{
			ID:          row.ID,
			Name:        row.Name,
			StartDate:   formatDate(row.StartDate),
			Status:      row.Status,
			MemberCount: row.MemberCount,
			Month:       int(row.StartDate.Month()),
			Duration:    int(endOrNow.Sub(row.StartDate).Hours() / 24),
		}

		if row.EndDate != nil {
			end := formatDate(*row.EndDate)
			project.EndDate = &end
			project.Overdue = now.After(*row.EndDate)
			remaining := int(row.EndDate.Sub(now).Hours() / 24)
			project.DaysRemaining = &remaining
		}

		counts.Total++
		switch row.Status {
		case types.StatusCompleted:
			counts.Completed++
		case types.StatusInProgress:
			counts.InProgress++
		case types.StatusPending:
			counts.Pending++
		}

		perMonth[project.Month-1]++

		projects = append(projects, project)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"projects":     projects,
		"statusCounts": counts,
		"chartData": gin.H{
			"labels":   monthLabels,
			"datasets": perMonth,
		},
	})
}
