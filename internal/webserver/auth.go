package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/pkg/common"
)

// defaultTokenTTL applies when security.sessionTimeoutMinutes is unset
const defaultTokenTTL = 12 * time.Hour

// Claims carried by admin tokens
type Claims struct {
	Uid      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an admin token for the user, valid for the
// session timeout configured in the security settings
func IssueToken(ctx context.Context, user *domain.SysUser) (string, time.Time, error) {
	return issueToken(server.secret, user, tokenTTL(ctx))
}

func tokenTTL(ctx context.Context) time.Duration {
	st, err := server.appCtx.Settings().Get(ctx)
	if err != nil || st.Security.SessionTimeoutMinutes <= 0 {
		return defaultTokenTTL
	}
	return time.Duration(st.Security.SessionTimeoutMinutes) * time.Minute
}

func issueToken(secret string, user *domain.SysUser, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	token := jwtv4.NewWithClaims(jwtv4.SigningMethodHS256, jwtv4.MapClaims{
		"uid":      strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"role":     user.Role,
		"sub":      user.Username,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	return signed, exp, err
}

// GetOperator claims of the authenticated admin, nil on public routes
func GetOperator(c echo.Context) *Claims {
	token, ok := c.Get(UserClaimsKey).(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// OperatorID id of the authenticated admin, 0 when unknown
func OperatorID(c echo.Context) int64 {
	op := GetOperator(c)
	if op == nil {
		return 0
	}
	id, _ := strconv.ParseInt(op.Uid, 10, 64)
	return id
}

// activeOperator reloads the operator behind the token. Deleted or disabled
// accounts are rejected and the stored role replaces the role in the claims.
func activeOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		op := GetOperator(c)
		if op == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		var user domain.SysUser
		err := GetAppContext(c).DB().WithContext(c.Request().Context()).
			Where("id = ?", OperatorID(c)).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
		}
		if err != nil {
			zap.L().Error("load operator failed", zap.String("namespace", "auth"), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load account").SetInternal(err)
		}
		if user.Status != common.ENABLED {
			return echo.NewHTTPError(http.StatusUnauthorized, "account is disabled")
		}
		op.Role = user.Role
		op.Username = user.Username
		return next(c)
	}
}

// RequireRole rejects operators whose role is not listed
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			op := GetOperator(c)
			if op == nil || !common.InSlice(op.Role, roles) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// readOnlyGuard viewers may only read, apart from their own password
func readOnlyGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return next(c)
		}
		if strings.HasSuffix(c.Path(), "/me/password") {
			return next(c)
		}
		if op := GetOperator(c); op != nil && op.Role == domain.RoleViewer {
			return echo.NewHTTPError(http.StatusForbidden, "read only account")
		}
		return next(c)
	}
}
