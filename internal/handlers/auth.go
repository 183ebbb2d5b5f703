package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/auth"
	"github.com/planora-dev/planora/internal/cache"
	"github.com/planora-dev/planora/internal/models"
	"github.com/planora-dev/planora/internal/services"
	"github.com/planora-dev/planora/internal/types"
	"github.com/planora-dev/planora/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const usersListCacheKey = "users_list"

func userEmailCacheKey(email string) string { return "user_" + email }
func userIDCacheKey(id uint) string         { return fmt.Sprintf("user_%d", id) }

// AuthHandler serves registration, login and user lookups. User rows are
// cached per-email and per-id, plus one entry for the full list; the list
// entry is invalidated whenever a user is created.
type AuthHandler struct {
	Cache  *cache.Cache
	Mailer services.Mailer
	Log    *zap.SugaredLogger
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required."})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	exists := false
	if _, ok := h.Cache.Get(userEmailCacheKey(req.Email)); ok {
		exists = true
	} else {
		var existing models.User
		err := db.DB.Where("email = ?", req.Email).First(&existing).Error
		if err == nil {
			exists = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.Log.Errorw("checking existing user", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register user."})
			return
		}
	}

	if exists {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "User already registered."})
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)

	if err != nil {
		h.Log.Errorw("hashing password", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register user."})
		return
	}

	// The confirmation email doubles as an address check: if it cannot be
	// delivered the registration is cancelled before any row is written.
	err = h.Mailer.Send(req.Email, "Registration Confirmation",
		fmt.Sprintf("Hello %s, your registration was completed successfully!", req.Name))

	if err != nil {
		h.Log.Warnw("confirmation email failed", "email", req.Email, "error", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email. Registration was cancelled."})
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Role:         req.Role,
	}

	if err := db.DB.Create(&user).Error; err != nil {
		h.Log.Errorw("creating user", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register user."})
		return
	}

	// The cached list no longer matches the table.
	h.Cache.Delete(usersListCacheKey)

	token, err := auth.GenerateJWT(user.ID, user.Name)

	if err != nil {
		h.Log.Errorw("generating JWT", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register user."})
		return
	}

	h.Cache.Set(userEmailCacheKey(user.Email), user)

	ctx.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
		"token": token,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	if req.Email == "" || req.Password == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required."})
		return
	}

	var user models.User
	found := false

	if cached, ok := h.Cache.Get(userEmailCacheKey(req.Email)); ok {
		if u, ok := cached.(models.User); ok {
			user = u
			found = true
		}
	}

	if !found {
		err := db.DB.Where("email = ?", req.Email).First(&user).Error
		if err == nil {
			found = true
			h.Cache.Set(userEmailCacheKey(user.Email), user)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.Log.Errorw("fetching user", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log in."})
			return
		}
	}

	if !found {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email or password."})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email or password."})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Name)

	if err != nil {
		h.Log.Errorw("generating JWT", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log in."})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User
	found := false

	if cached, ok := h.Cache.Get(userIDCacheKey(userID)); ok {
		if u, ok := cached.(models.User); ok {
			user = u
			found = true
		}
	}

	if !found {
		if err := db.DB.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
			} else {
				h.Log.Errorw("fetching user", "error", err)
				ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user data."})
			}
			return
		}
		h.Cache.Set(userIDCacheKey(user.ID), user)
	}

	ctx.JSON(http.StatusCreated, types.UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
}

func (h *AuthHandler) ListUsers(ctx *gin.Context) {
	if cached, ok := h.Cache.Get(usersListCacheKey); ok {
		if list, ok := cached.([]types.UserResponse); ok {
			ctx.JSON(http.StatusOK, list)
			return
		}
	}

	var users []models.User

	if err := db.DB.Find(&users).Error; err != nil {
		h.Log.Errorw("listing users", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch users."})
		return
	}

	list := make([]types.UserResponse, 0, len(users))
	for _, user := range users {
		list = append(list, types.UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		})
	}

	if len(list) > 0 {
		h.Cache.Set(usersListCacheKey, list)
	}

	ctx.JSON(http.StatusOK, list)
}
