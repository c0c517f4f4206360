package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/erp/docnumber/internal/infrastructure/auth"
	"github.com/erp/docnumber/internal/infrastructure/logger"
	"github.com/erp/docnumber/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys and header names used by authentication
const (
	IdentityKey   = "identity"
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Identity is the authenticated caller: the tenant whose sequences are used
// and the actor recorded on issued numbers
type Identity struct {
	TenantID    uuid.UUID
	UserID      string
	Actor       string
	Permissions []string
	// FromDevHeaders is set when the identity came from X-Tenant-ID and
	// X-User-ID instead of a token
	FromDevHeaders bool
}

// Can reports whether the caller holds permission. Development identities
// hold every permission.
func (i Identity) Can(permission string) bool {
	if i.FromDevHeaders {
		return true
	}
	claims := auth.Claims{Permissions: i.Permissions}
	return claims.HasPermission(permission)
}

// JWTConfig holds configuration for JWTAuth
type JWTConfig struct {
	Service *auth.JWTService
	// AllowDevHeaders accepts X-Tenant-ID / X-User-ID when no bearer token
	// is sent. Never enabled in production.
	AllowDevHeaders bool
	// SkipPaths are served without authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// JWTAuth authenticates every request and stores the caller's Identity
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		var (
			identity Identity
			err      error
		)
		switch {
		case header != "":
			identity, err = identityFromToken(cfg.Service, header, c)
		case cfg.AllowDevHeaders:
			identity, err = identityFromHeaders(c)
		default:
			err = errMissingCredentials
		}
		if err != nil {
			log.Warn("Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			)
			abortUnauthorized(c, err)
			return
		}

		c.Set(IdentityKey, identity)
		ctx := logger.WithTenantID(c.Request.Context(), identity.TenantID.String())
		ctx = logger.WithUserID(ctx, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

var (
	errMissingCredentials = errors.New("missing authorization header")
	errMalformedHeader    = errors.New("authorization header must use the Bearer scheme")
	errDevTenant          = errors.New("X-Tenant-ID must be a UUID")
	errDevUser            = errors.New("X-User-ID is required")
)

func identityFromToken(svc *auth.JWTService, header string, c *gin.Context) (Identity, error) {
	token, ok := strings.CutPrefix(header, BearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return Identity{}, errMalformedHeader
	}
	if svc == nil {
		return Identity{}, auth.ErrInvalidToken
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		return Identity{}, err
	}
	tenantID, _ := claims.TenantUUID()
	c.Set(JWTClaimsKey, claims)
	return Identity{
		TenantID:    tenantID,
		UserID:      claims.UserID,
		Actor:       claims.Actor(),
		Permissions: claims.Permissions,
	}, nil
}

func identityFromHeaders(c *gin.Context) (Identity, error) {
	tenantID, err := uuid.Parse(c.GetHeader(HeaderTenantID))
	if err != nil || tenantID == uuid.Nil {
		return Identity{}, errDevTenant
	}
	user := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if user == "" {
		return Identity{}, errDevUser
	}
	if len(user) > 100 {
		user = user[:100]
	}
	return Identity{TenantID: tenantID, UserID: user, Actor: user, FromDevHeaders: true}, nil
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrMissingUserID):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	case errors.Is(err, errMalformedHeader), errors.Is(err, errDevTenant), errors.Is(err, errDevUser):
		message = err.Error()
	}
	abortWithError(c, http.StatusUnauthorized, code, message)
}

// GetIdentity returns the caller stored by JWTAuth
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// GetJWTClaims returns the token claims, nil for development identities
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
