package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/internal/cache"
	"github.com/planora-dev/planora/internal/config"
	"github.com/planora-dev/planora/internal/handlers"
	"github.com/planora-dev/planora/internal/middleware"
	"github.com/planora-dev/planora/internal/services"
	"go.uber.org/zap"
)

// Dependencies carries everything the handlers need beyond the global
// database connection.
type Dependencies struct {
	Config   config.Config
	Log      *zap.SugaredLogger
	Cache    *cache.Cache
	Mailer   services.Mailer
	Calendar *services.CalendarService
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{deps.Config.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authHandler := &handlers.AuthHandler{Cache: deps.Cache, Mailer: deps.Mailer, Log: deps.Log}
	projectHandler := &handlers.ProjectHandler{Log: deps.Log}
	membershipHandler := &handlers.MembershipHandler{Mailer: deps.Mailer, Log: deps.Log}
	dashboardHandler := &handlers.DashboardHandler{Log: deps.Log}
	csvHandler := &handlers.CSVImportHandler{UploadDir: deps.Config.UploadDir, Log: deps.Log}
	calendarHandler := &handlers.CalendarHandler{Calendar: deps.Calendar, Log: deps.Log}

	api := r.Group("/api")
	{
		api.GET("/status", handlers.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.POST("/register", middleware.ValidateCredentials(), authHandler.Register)
			auth.POST("/login", middleware.ValidateCredentials(), authHandler.Login)
			auth.GET("/me", middleware.AuthMiddleware(), authHandler.Me)
		}

		authenticated := api.Group("", middleware.AuthMiddleware())
		{
			authenticated.GET("/users", authHandler.ListUsers)

			authenticated.GET("/dashboard", dashboardHandler.Get)

			authenticated.GET("/projects", projectHandler.List)
			authenticated.POST("/projects", middleware.ValidateProject(), projectHandler.Create)
			authenticated.PUT("/projects/:project_id", middleware.ValidateProject(), projectHandler.Update)
			authenticated.DELETE("/projects/:project_id", projectHandler.Delete)

			authenticated.GET("/projects/:project_id/users", membershipHandler.List)
			authenticated.POST("/projects/:project_id/users", membershipHandler.Add)
			authenticated.DELETE("/projects/:project_id/users/:user_id", membershipHandler.Remove)

			authenticated.POST("/upload-csv", csvHandler.Process)
			authenticated.POST("/calendar-event", calendarHandler.CreateEvent)
		}
	}

	return r
}
