package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// Dependencies groups everything the HTTP surface needs.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *service.MetricsService
	Tokens     *service.TokenService
	Timetables *handler.TimetableHandler
	Probes     *handler.MetricsHandler
}

// New builds the gin engine with the shared middleware chain and all routes.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Probes.Health)
	r.GET("/ready", deps.Probes.Ready)
	r.GET("/metrics", deps.Probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Scheduler.Enabled {
		api := r.Group(cfg.APIPrefix, middleware.JWT(deps.Tokens), middleware.WithResponseMeta())
		registerTimetables(api, deps.Timetables, deps.Logger)
	}
	return r
}

func registerTimetables(api *gin.RouterGroup, h *handler.TimetableHandler, log *zap.Logger) {
	readers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)
	writers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	timetables := api.Group("/timetables")
	timetables.POST("/generate", writers, h.Generate)
	timetables.GET("/conflicts", readers, h.Conflicts)

	proposals := timetables.Group("/proposals/:id")
	proposals.GET("", readers, h.GetProposal)
	proposals.GET("/compare", readers, h.Compare)
	proposals.POST("/apply", writers, middleware.Audit(log, "timetable.apply", "id"), h.Apply)
	proposals.POST("/reject", writers, middleware.Audit(log, "timetable.reject", "id"), h.Reject)

	classes := timetables.Group("/classes/:classId")
	classes.GET("", readers, h.ClassTimetable)
	classes.GET("/export", readers, h.Export)

	templates := timetables.Group("/templates")
	templates.GET("", readers, h.ListTemplates)
	templates.POST("", writers, middleware.Audit(log, "timetable.template.create", ""), h.CreateTemplate)
	templates.GET("/:id", readers, h.GetTemplate)
	templates.DELETE("/:id", writers, middleware.Audit(log, "timetable.template.delete", "id"), h.DeleteTemplate)
}
