package utils

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/internal/types"
)

func GetCurrentUserID(ctx *gin.Context) (uint, error) {
	value, exists := ctx.Get(types.ContextUserIDKey)

	if !exists {
		return 0, fmt.Errorf("user not authenticated")
	}

	userID, ok := value.(uint)

	if !ok {
		return 0, fmt.Errorf("invalid user id type in context")
	}

	return userID, nil
}

func GetProjectID(ctx *gin.Context) (uint, error) {
	projectID, err := strconv.ParseUint(ctx.Param("project_id"), 10, 32)

	if err != nil {
		return 0, fmt.Errorf("invalid project ID")
	}

	return uint(projectID), nil
}
