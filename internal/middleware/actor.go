package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/requestdata"
	"github.com/veridia/veridia-backend/internal/utils"
)

// ActorMiddleware resolves request attribution. Identity management is owned
// by the surrounding platform; this service trusts the gateway-injected
// X-Actor-ID header and only requires that it is present.
type ActorMiddleware struct {
	log *logger.Logger
	// Comma-separated actor ids granted privileged operations (merges,
	// amendment review, threshold admin).
	privilegedActors map[string]bool
}

func NewActorMiddleware(log *logger.Logger) *ActorMiddleware {
	privileged := make(map[string]bool)
	for _, id := range strings.Split(utils.GetEnv("PRIVILEGED_ACTOR_IDS", "", log), ",") {
		if id = strings.TrimSpace(id); id != "" {
			privileged[id] = true
		}
	}
	return &ActorMiddleware{
		log:              log.With("Middleware", "ActorMiddleware"),
		privilegedActors: privileged,
	}
}

func (am *ActorMiddleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := extractActorID(c)
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
			return
		}
		rd := &requestdata.RequestData{
			ActorID:    actorID,
			Privileged: am.privilegedActors[actorID],
		}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// RequirePrivileged gates review and admin routes. Must run after RequireActor.
func (am *ActorMiddleware) RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || !rd.Privileged {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func extractActorID(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("X-Actor-ID")); header != "" {
		return header
	}
	// Query fallback for EventSource connections, which cannot set headers.
	return strings.TrimSpace(c.Query("actor_id"))
}
