package adminapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
	"github.com/celenkdiyari/storefront/pkg/common"
)

const loginLockout = 15 * time.Minute

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type passwordPayload struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// maxTrackedLogins bounds the number of usernames the guard remembers
const maxTrackedLogins = 10000

type loginAttempt struct {
	failures int
	last     time.Time
	lockedAt time.Time
}

// loginGuard counts failed logins per username
type loginGuard struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempt
}

var guard = newLoginGuard()

func newLoginGuard() *loginGuard {
	return &loginGuard{attempts: map[string]*loginAttempt{}}
}

func (g *loginGuard) locked(username string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, found := g.attempts[username]
	if !found || at.lockedAt.IsZero() {
		return false
	}
	if now.Sub(at.lockedAt) > loginLockout {
		delete(g.attempts, username)
		return false
	}
	return true
}

func (g *loginGuard) fail(username string, limit int, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(now)
	at, found := g.attempts[username]
	if !found {
		if len(g.attempts) >= maxTrackedLogins {
			return
		}
		at = &loginAttempt{}
		g.attempts[username] = at
	}
	at.failures++
	at.last = now
	if limit > 0 && at.failures >= limit && at.lockedAt.IsZero() {
		at.lockedAt = now
	}
}

// prune forgets usernames with no failure and no lock within loginLockout
func (g *loginGuard) prune(now time.Time) {
	for name, at := range g.attempts {
		if now.Sub(at.last) > loginLockout && (at.lockedAt.IsZero() || now.Sub(at.lockedAt) > loginLockout) {
			delete(g.attempts, name)
		}
	}
}

func (g *loginGuard) tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.attempts)
}

func (g *loginGuard) reset(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, username)
}

func registerAuthRoutes() {
	webserver.PublicPOST("/login", login)
	webserver.ApiGET("/me", currentUser)
	webserver.ApiPUT("/me/password", changeOwnPassword)
}

func login(c echo.Context) error {
	var payload loginPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	username := strings.TrimSpace(payload.Username)
	now := time.Now()
	if guard.locked(username, now) {
		return fail(c, http.StatusTooManyRequests, "ACCOUNT_LOCKED", "Too many failed attempts, try again later", nil)
	}

	limit := 0
	if st, err := webserver.GetAppContext(c).Settings().Get(c.Request().Context()); err == nil {
		limit = st.Security.MaxLoginAttempts
	}

	var user domain.SysUser
	err := GetDB(c).Where("username = ?", username).First(&user).Error
	if err != nil || !common.CheckPassword(user.Password, payload.Password) {
		guard.fail(username, limit, now)
		zap.L().Warn("admin login failed", zap.String("namespace", "auth"),
			zap.String("username", username), zap.String("ip", c.RealIP()))
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	if user.Status != common.ENABLED {
		return fail(c, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled", nil)
	}
	guard.reset(username)

	token, exp, err := webserver.IssueToken(c.Request().Context(), &user)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}
	GetDB(c).Model(&domain.SysUser{}).Where("id = ?", user.ID).Update("last_login", now)
	user.LastLogin = &now

	zap.L().Info("admin login", zap.String("namespace", "auth"),
		zap.String("username", username), zap.String("ip", c.RealIP()))
	return ok(c, echo.Map{
		"token":     token,
		"expiresAt": exp,
		"user":      user,
	})
}

func currentUser(c echo.Context) error {
	var user domain.SysUser
	if err := GetDB(c).Where("id = ?", webserver.OperatorID(c)).First(&user).Error; isNotFound(err) {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "User no longer exists", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query user", err.Error())
	}
	return ok(c, user)
}

func changeOwnPassword(c echo.Context) error {
	var payload passwordPayload
	if valid, err := bindAndValidate(c, &payload); !valid {
		return err
	}
	var user domain.SysUser
	if err := GetDB(c).Where("id = ?", webserver.OperatorID(c)).First(&user).Error; err != nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "User no longer exists", nil)
	}
	if !common.CheckPassword(user.Password, payload.OldPassword) {
		return fail(c, http.StatusBadRequest, "INVALID_PASSWORD", "Current password is wrong", nil)
	}
	if weakPassword(c, payload.NewPassword) {
		return failWeakPassword(c)
	}
	hashed, err := common.HashPassword(payload.NewPassword)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "HASH_ERROR", "Failed to hash password", err.Error())
	}
	err = GetDB(c).Model(&domain.SysUser{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"password": hashed, "updated_at": time.Now()}).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update password", err.Error())
	}
	logOperation(c, "user.password", user.Username)
	return ok(c, echo.Map{"updated": true})
}
