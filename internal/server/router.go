package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/veridia/veridia-backend/internal/handlers"
	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/middleware"
	"github.com/veridia/veridia-backend/internal/utils"
)

type RouterConfig struct {
	Log              *logger.Logger
	ActorMiddleware  *middleware.ActorMiddleware
	InquiryHandler   *handlers.InquiryHandler
	PositionHandler  *handlers.PositionHandler
	AmendmentHandler *handlers.AmendmentHandler
	NodeHandler      *handlers.NodeHandler
	AdminHandler     *handlers.AdminHandler
	SSEHandler       *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("veridia-backend"))

	origins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5174", cfg.Log), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.ActorMiddleware.RequireActor())
	{
		// Inquiries
		api.POST("/inquiries", cfg.InquiryHandler.Create)
		api.GET("/inquiries/:id", cfg.InquiryHandler.GetByID)
		api.POST("/inquiries/:id/close", cfg.InquiryHandler.Close)
		api.POST("/inquiries/:id/confidence", cfg.InquiryHandler.EvaluateConfidence)
		api.GET("/inquiries/:id/confidence/history", cfg.InquiryHandler.ConfidenceHistory)

		// Positions and votes
		api.POST("/inquiries/:id/positions", cfg.PositionHandler.Create)
		api.GET("/inquiries/:id/positions", cfg.PositionHandler.ListByInquiry)
		api.GET("/positions/:id", cfg.PositionHandler.GetByID)
		api.PUT("/positions/:id/vote", cfg.PositionHandler.CastVote)
		api.DELETE("/positions/:id/vote", cfg.PositionHandler.RemoveVote)

		// Node views
		api.GET("/nodes/:nodeID/inquiries", cfg.InquiryHandler.ListByNode)
		api.GET("/nodes/:nodeID/credibility", cfg.NodeHandler.GetCredibility)
		api.GET("/nodes/:nodeID/amendments", cfg.AmendmentHandler.ListByNode)
		api.GET("/nodes/:nodeID/amendments/history", cfg.AmendmentHandler.History)

		// SSE
		api.GET("/sse/stream", cfg.SSEHandler.Stream)
		api.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
		api.POST("/sse/unsubscribe", cfg.SSEHandler.Unsubscribe)
	}

	privileged := api.Group("/")
	privileged.Use(cfg.ActorMiddleware.RequirePrivileged())
	{
		privileged.POST("/inquiries/:id/merge", cfg.InquiryHandler.Merge)
		privileged.PUT("/inquiries/:id/related-nodes", cfg.InquiryHandler.SetRelatedNodes)
		privileged.POST("/positions/:id/retry-evaluation", cfg.PositionHandler.RetryEvaluation)
		privileged.POST("/nodes/:nodeID/credibility/recompute", cfg.NodeHandler.RecomputeCredibility)

		// Amendment review
		privileged.POST("/amendments", cfg.AmendmentHandler.Propose)
		privileged.POST("/amendments/:id/approve", cfg.AmendmentHandler.Approve)
		privileged.POST("/amendments/:id/reject", cfg.AmendmentHandler.Reject)

		// Reference data
		privileged.GET("/admin/evidence-categories", cfg.AdminHandler.ListEvidenceCategories)
		privileged.PUT("/admin/evidence-categories", cfg.AdminHandler.UpsertEvidenceCategories)
		privileged.GET("/admin/thresholds", cfg.AdminHandler.ListThresholds)
		privileged.PUT("/admin/thresholds", cfg.AdminHandler.UpsertThresholds)
	}

	return router
}
