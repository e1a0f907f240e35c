package server

import (
	"resplan/internal/config"
	"resplan/internal/handlers"
	"resplan/internal/middleware"
	"resplan/internal/models"
	"resplan/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sessionName = "resplan_session"

func NewRouter(cfg *config.Config, db *gorm.DB, svc *services.Services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log.Named("access")))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 8 * 3600, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.InjectUser(svc.Identity, log))

	h := handlers.New(svc, db, log)

	r.GET("/", h.Index)
	r.GET("/health", h.Health)

	// ====== AUTH ======
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	api := r.Group("/api")
	api.Use(middleware.RequireAuth())
	api.GET("/me", h.Me)

	// ====== LOOKUPS ======
	api.GET("/lookups", h.ListLookupLists)
	api.GET("/lookups/:id", h.GetLookupList)
	api.GET("/lookups/by-name/:name", h.GetLookupListByName)
	lookups := api.Group("/lookups", middleware.RequireRole(models.RoleAdmin))
	lookups.POST("", h.CreateLookupList)
	lookups.PUT("/:id/items", h.SetLookupItems)
	lookups.DELETE("/:id", h.DeleteLookupList)

	// ====== CATALOG ======
	api.GET("/groups", h.ListGroups)
	api.GET("/groups/:id", h.GetGroup)
	api.GET("/services", h.SearchServices)
	api.POST("/groups/spec", h.CatalogGroupSpec)
	catalog := api.Group("", middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	catalog.POST("/groups", h.CreateGroup)
	catalog.PUT("/groups/:id", h.UpdateGroup)
	catalog.DELETE("/groups/:id", h.DeleteGroup)
	catalog.POST("/groups/:id/elements", h.AddElement)
	catalog.DELETE("/elements/:element_id", h.DeleteElement)
	catalog.POST("/services", h.CreateService)
	catalog.PUT("/services/:id", h.UpdateService)
	catalog.DELETE("/services/:id", h.DeleteService)

	// ====== USERS ======
	users := api.Group("/users", middleware.RequireRole(models.RoleAdmin))
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.PUT("/:id", h.UpdateUser)
	users.PUT("/:id/roles", h.SetUserRoles)
	users.DELETE("/:id", h.DeleteUser)
	api.GET("/roles", h.ListRoles)

	// ====== CONSULTANTS ======
	api.GET("/consultants", h.ListConsultants)
	api.GET("/consultants/:id", h.GetConsultant)
	consultants := api.Group("/consultants", middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	consultants.POST("", h.CreateConsultant)
	consultants.POST("/sync", h.SyncConsultants)
	consultants.PUT("/:id", h.UpdateConsultant)
	consultants.DELETE("/:id", h.DeleteConsultant)
	consultants.PUT("/:id/expertise", h.SetExpertise)

	// ====== CLIENTS ======
	api.GET("/clients", h.ListClients)
	api.GET("/clients/:id", h.ShowClientDetail)
	clients := api.Group("/clients", middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	clients.POST("", h.CreateClient)
	clients.POST("/:id", h.UpdateClient)
	clients.DELETE("/:id", h.DeleteClient)

	// ====== TEMPLATES ======
	api.GET("/templates", h.ListTemplates)
	api.GET("/templates/:id", h.GetTemplate)
	templates := api.Group("/templates", middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	templates.POST("", h.CreateTemplate)
	templates.PUT("/:id", h.UpdateTemplate)
	templates.DELETE("/:id", h.DeleteTemplate)

	// ====== PROJECTS ======
	// edit rights depend on the project, so the service decides
	api.GET("/projects", h.ListProjects)
	api.GET("/projects/:id", h.GetProject)
	api.POST("/projects", h.CreateProject)
	api.PUT("/projects/:id", h.UpdateProject)
	api.DELETE("/projects/:id", h.DeleteProject)

	// ====== AUDIT ======
	api.GET("/audit", middleware.RequireRole(models.RoleAdmin), h.ListAuditLogs)

	return r
}
