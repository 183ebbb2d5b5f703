package authz

import (
	"errors"

	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/models"
	"gorm.io/gorm"
)

// Decision is the outcome of a role check.
type Decision int

const (
	Allowed Decision = iota
	UserNotFound
	RoleDenied
)

// Check fetches the requesting user and compares its role against the
// required one. The role is always read fresh from the database so a role
// change takes effect on the next request.
func Check(userID uint, requiredRole string) (Decision, models.User, error) {
	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserNotFound, models.User{}, nil
		}
		return UserNotFound, models.User{}, err
	}

	if user.Role != requiredRole {
		return RoleDenied, user, nil
	}

	return Allowed, user, nil
}
