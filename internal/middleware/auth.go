package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/dto"
)

// Context keys set by RequireAuth.
const (
	CtxSubjectID = "subject_id"
	CtxRole      = "role"
)

// Roles carried in the token's "role" claim.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// RequireAuth verifies the Bearer token and, when role is non-empty,
// requires that exact role claim. The subject id and role are stored on the
// gin context for handlers.
func RequireAuth(cfg *config.Config, role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil {
			log.Warn().Err(err).Msg("auth: token parse failed")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Invalid token"})
			return
		}

		tokenRole, _ := claims["role"].(string)
		if role != "" && tokenRole != role {
			ctx.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Message: "Insufficient role"})
			return
		}

		subject, ok := claims["sub"].(float64)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Invalid subject claim"})
			return
		}

		ctx.Set(CtxSubjectID, uint(subject))
		ctx.Set(CtxRole, tokenRole)
		ctx.Next()
	}
}

// SubjectID returns the authenticated subject's id from the gin context.
func SubjectID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(CtxSubjectID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
