package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/authz"
	"github.com/planora-dev/planora/internal/models"
	"github.com/planora-dev/planora/internal/types"
	"github.com/planora-dev/planora/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// insufficientPermission mirrors the historical contract: most role gates
// answer 404, membership removal and CSV import answer 403.
const insufficientPermissionMessage = "Insufficient permission to perform this command."

type ProjectHandler struct {
	Log *zap.SugaredLogger
}

type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
}

type projectFilters struct {
	UserID   uint
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// allowed sort columns, keyed by the query parameter value
var projectSortColumns = map[string]string{
	"id":          "projects.id",
	"name":        "projects.name",
	"description": "projects.description",
	"start_date":  "projects.start_date",
	"end_date":    "projects.end_date",
	"status":      "projects.status",
}

func parsePageParams(ctx *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	return page, limit
}

// filteredProjects builds a fresh query joining memberships with the
// request filters applied. Callers group or count over it.
func filteredProjects(f projectFilters) *gorm.DB {
	q := db.DB.Model(&models.Project{}).
		Joins("LEFT JOIN project_memberships ON project_memberships.project_id = projects.id")

	if f.UserID != 0 {
		q = q.Where("project_memberships.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("projects.status = ?", f.Status)
	}
	if f.DateFrom != nil {
		q = q.Where("projects.start_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("projects.end_date <= ?", *f.DateTo)
	}

	return q
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func projectToResponse(p models.Project) types.ProjectResponse {
	resp := types.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   formatDate(p.StartDate),
		Status:      p.Status,
	}
	if p.EndDate != nil {
		end := formatDate(*p.EndDate)
		resp.EndDate = &end
	}
	return resp
}

func (h *ProjectHandler) List(ctx *gin.Context) {
	page, limit := parsePageParams(ctx)

	filters := projectFilters{Status: ctx.Query("status")}

	if raw := ctx.Query("user"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			filters.UserID = uint(id)
		}
	}

	if raw := ctx.Query("dateFrom"); raw != "" {
		if t, err := time.Parse(dateLayout, raw); err == nil {
			filters.DateFrom = &t
		}
	}
	if raw := ctx.Query("dateTo"); raw != "" {
		if t, err := time.Parse(dateLayout, raw); err == nil {
			filters.DateTo = &t
		}
	}

	sortColumn, ok := projectSortColumns[ctx.DefaultQuery("sortField", "id")]
	if !ok {
		sortColumn = projectSortColumns["id"]
	}
	sortDir := "asc"
	if ctx.Query("sortDir") == "desc" {
		sortDir = "desc"
	}

	// Distinct count first; the paged query groups the join instead.
	var totalCount int64
	if err := filteredProjects(filters).Distinct("projects.id").Count(&totalCount).Error; err != nil {
		h.Log.Errorw("counting projects", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch projects."})
		return
	}

	if totalCount == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "No projects found."})
		return
	}

	var projects []models.Project

	err := filteredProjects(filters).
		Select("projects.*").
		Group("projects.id").
		Order(sortColumn + " " + sortDir).
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&projects).Error

	if err != nil {
		h.Log.Errorw("listing projects", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch projects."})
		return
	}

	response := make([]types.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		response = append(response, projectToResponse(project))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"projects":    response,
		"totalPages":  int(math.Ceil(float64(totalCount) / float64(limit))),
		"currentPage": page,
	})
}

// requireManager runs the role gate shared by the mutating project
// endpoints, writing the historical 404 refusal on denial.
func (h *ProjectHandler) requireManager(ctx *gin.Context) bool {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return false
	}

	decision, _, err := authz.Check(userID, types.RoleManager)

	if err != nil {
		h.Log.Errorw("role check", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to verify permissions."})
		return false
	}

	if decision != authz.Allowed {
		ctx.JSON(http.StatusNotFound, gin.H{"message": insufficientPermissionMessage})
		return false
	}

	return true
}

func (h *ProjectHandler) Create(ctx *gin.Context) {
	if !h.requireManager(ctx) {
		return
	}

	var req ProjectRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid start date."})
		return
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   start,
		Status:      req.Status,
	}

	if req.EndDate != "" {
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid end date."})
			return
		}
		project.EndDate = &end
	}

	if err := db.DB.Create(&project).Error; err != nil {
		h.Log.Errorw("creating project", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create project."})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": project.ID, "message": "Project created successfully."})
}

func (h *ProjectHandler) Update(ctx *gin.Context) {
	if !h.requireManager(ctx) {
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid project ID."})
		return
	}

	var req ProjectRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "Project not found."})
		} else {
			h.Log.Errorw("fetching project", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update project."})
		}
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid start date."})
		return
	}

	project.Name = req.Name
	project.Description = req.Description
	project.StartDate = start
	project.Status = req.Status
	project.EndDate = nil

	if req.EndDate != "" {
		end, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid end date."})
			return
		}
		project.EndDate = &end
	}

	if err := db.DB.Save(&project).Error; err != nil {
		h.Log.Errorw("updating project", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update project."})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Project updated successfully."})
}

func (h *ProjectHandler) Delete(ctx *gin.Context) {
	if !h.requireManager(ctx) {
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid project ID."})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "Project not found."})
		} else {
			h.Log.Errorw("fetching project", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove project."})
		}
		return
	}

	if project.Status != types.StatusCompleted {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "The project cannot be removed because it is not completed."})
		return
	}

	// The row goes away for real, memberships included, so the id and the
	// (project, user) pairs are free for reuse.
	if err := db.DB.Where("project_id = ?", projectID).
		Delete(&models.ProjectMembership{}).Error; err != nil {
		h.Log.Errorw("deleting project memberships", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove project."})
		return
	}

	if err := db.DB.Unscoped().Delete(&project).Error; err != nil {
		h.Log.Errorw("deleting project", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove project."})
		return
	}

	ctx.Status(http.StatusNoContent)
}
