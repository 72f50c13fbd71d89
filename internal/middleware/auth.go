package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/auditctx"
	iauth "github.com/charlesng35/workpass/internal/auth"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/response"
)

const (
	CtxClaimsKey  = "authClaims"
	CtxUserIDKey  = "userID"
	CtxIsAdminKey = "isAdmin"
	CtxUserKey    = "currentUser"
)

var (
	// ErrVerificationRequired is returned to authenticated users who have not
	// finished verification and onboarding.
	ErrVerificationRequired = errors.New("VERIFICATION_REQUIRED", "Verify your employment and finish onboarding to continue", http.StatusForbidden)
	// ErrAccountInactive is returned when a token belongs to a deactivated account.
	ErrAccountInactive = errors.New("ACCOUNT_DISABLED", "This account has been deactivated", http.StatusForbidden)
)

// UserLoader fetches the current state of a user.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxIsAdminKey, claims.IsAdmin)

		actor, _ := auditctx.FromContext(c.Request.Context())
		actor.UserID = claims.UserID
		if actor.IPAddress == "" {
			actor.IPAddress = c.ClientIP()
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

// RequireAdmin allows only tokens issued to administrators. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CtxUserIDKey); !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !c.GetBool(CtxIsAdminKey) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireVerifiedMember admits active users whose access state grants the
// member features. The loaded user is stored under CtxUserKey.
func RequireVerifiedMember(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Error(c, ErrAccountInactive)
			c.Abort()
			return
		}
		if !user.Access().CanBrowseFeed {
			response.Error(c, ErrVerificationRequired.WithDetails(map[string]any{
				"is_verified": user.IsVerified,
				"onboarded":   user.Onboarded,
			}))
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Next()
	}
}
