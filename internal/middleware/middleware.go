package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/pkg/jwt"
	"github.com/tgo/mindvault/internal/repository"
)

const identityKey = "identity"

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Actor-ID, X-Department-Code")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

type AuthMiddleware struct {
	jwtManager *jwt.Manager
	directory  *repository.DirectoryRepository
	isDev      bool
}

func NewAuthMiddleware(jwtManager *jwt.Manager, directory *repository.DirectoryRepository, isDev bool) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager, directory: directory, isDev: isDev}
}

// JWTAuth validates the bearer token and attaches the caller identity the
// permission resolver consumes. Department and superuser claims are refreshed
// from the directory so a stale token cannot outlive a department move.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			if m.isDev {
				if identity, ok := m.devIdentity(c); ok {
					c.Set(identityKey, identity)
					c.Next()
					return
				}
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := m.jwtManager.ValidateToken(authHeader[7:])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		identity := model.Identity{
			ActorID:        claims.ActorID,
			DepartmentCode: claims.DepartmentCode,
			IsSuperuser:    claims.IsSuperuser,
		}
		if user, err := m.directory.FindUserByID(c.Request.Context(), claims.ActorID); err == nil {
			identity.DepartmentCode = user.DepartmentCode
			identity.IsSuperuser = user.IsSuperuser
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// devIdentity builds an identity from plain headers, for local development
// without a token issuer.
func (m *AuthMiddleware) devIdentity(c *gin.Context) (model.Identity, bool) {
	actorID, err := uuid.Parse(c.GetHeader("X-Actor-ID"))
	if err != nil {
		return model.Identity{}, false
	}
	identity := model.Identity{
		ActorID:        actorID,
		DepartmentCode: c.GetHeader("X-Department-Code"),
	}
	if user, err := m.directory.FindUserByID(c.Request.Context(), actorID); err == nil {
		identity.DepartmentCode = user.DepartmentCode
		identity.IsSuperuser = user.IsSuperuser
	}
	return identity, true
}

// IdentityFrom returns the authenticated caller identity set by JWTAuth.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}
