package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/authz"
	"github.com/planora-dev/planora/internal/models"
	"github.com/planora-dev/planora/internal/services"
	"github.com/planora-dev/planora/internal/types"
	"github.com/planora-dev/planora/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MembershipHandler manages the project/user join table. Adding or
// removing a member notifies the affected user by email; the membership
// write stands even when the email cannot be delivered.
type MembershipHandler struct {
	Mailer services.Mailer
	Log    *zap.SugaredLogger
}

type AddMemberRequest struct {
	UserID uint `json:"user_id"`
}

func (h *MembershipHandler) List(ctx *gin.Context) {
	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid project ID."})
		return
	}

	page, limit := parsePageParams(ctx)

	var totalCount int64

	if err := db.DB.Model(&models.ProjectMembership{}).
		Where("project_id = ?", projectID).
		Count(&totalCount).Error; err != nil {
		h.Log.Errorw("counting members", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch users."})
		return
	}

	var members []types.UserResponse

	err = db.DB.Model(&models.ProjectMembership{}).
		Joins("JOIN users ON users.id = project_memberships.user_id AND users.deleted_at IS NULL").
		Where("project_memberships.project_id = ?", projectID).
		Select("users.id, users.name, users.email, users.role").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&members).Error

	if err != nil {
		h.Log.Errorw("listing members", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch users."})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"users":       members,
		"totalCount":  totalCount,
		"totalPages":  int(math.Ceil(float64(totalCount) / float64(limit))),
		"currentPage": page,
	})
}

func (h *MembershipHandler) Add(ctx *gin.Context) {
	requesterID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	decision, _, err := authz.Check(requesterID, types.RoleManager)

	if err != nil {
		h.Log.Errorw("role check", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to verify permissions."})
		return
	}

	if decision != authz.Allowed {
		ctx.JSON(http.StatusNotFound, gin.H{"message": insufficientPermissionMessage})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid project ID."})
		return
	}

	var req AddMemberRequest

	if err := ctx.BindJSON(&req); err != nil || req.UserID == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	var existing models.ProjectMembership

	err = db.DB.Where("project_id = ? AND user_id = ?", projectID, req.UserID).First(&existing).Error

	if err == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "User already registered in this project."})
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Log.Errorw("checking membership", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to add user to the project."})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "Project not found."})
		} else {
			h.Log.Errorw("fetching project", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to add user to the project."})
		}
		return
	}

	membership := models.ProjectMembership{
		ProjectID: projectID,
		UserID:    req.UserID,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		h.Log.Errorw("creating membership", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to add user to the project."})
		return
	}

	// Best effort: the membership stands even if the notification fails.
	var added models.User
	if err := db.DB.First(&added, req.UserID).Error; err == nil {
		err := h.Mailer.Send(added.Email, "Added to Project",
			fmt.Sprintf("Hello %s, you have been added to the project %s.", added.Name, project.Name))
		if err != nil {
			h.Log.Warnw("membership notification failed", "email", added.Email, "error", err)
		}
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "User added to the project successfully."})
}

func (h *MembershipHandler) Remove(ctx *gin.Context) {
	requesterID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	decision, _, err := authz.Check(requesterID, types.RoleManager)

	if err != nil {
		h.Log.Errorw("role check", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to verify permissions."})
		return
	}

	if decision != authz.Allowed {
		ctx.JSON(http.StatusForbidden, gin.H{"message": insufficientPermissionMessage})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid project ID."})
		return
	}

	memberID, err := strconv.ParseUint(ctx.Param("user_id"), 10, 32)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user ID."})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "Project not found."})
		} else {
			h.Log.Errorw("fetching project", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove user from the project."})
		}
		return
	}

	result := db.DB.Where("project_id = ? AND user_id = ?", projectID, memberID).
		Delete(&models.ProjectMembership{})

	if result.Error != nil {
		h.Log.Errorw("deleting membership", "error", result.Error)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove user from the project."})
		return
	}

	if result.RowsAffected == 0 {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "User not found in this project."})
		return
	}

	var removed models.User
	if err := db.DB.First(&removed, uint(memberID)).Error; err == nil {
		err := h.Mailer.Send(removed.Email, "Removed from Project",
			fmt.Sprintf("Hello %s, you have been removed from the project %s.", removed.Name, project.Name))
		if err != nil {
			h.Log.Warnw("membership notification failed", "email", removed.Email, "error", err)
		}
	}

	ctx.Status(http.StatusNoContent)
}
