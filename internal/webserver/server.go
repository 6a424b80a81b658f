package webserver

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo-contrib/session"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/internal/app"
	"github.com/celenkdiyari/storefront/pkg/common"
)

const (
	AppContextKey = "appctx"
	UserClaimsKey = "user"
	SessionName   = "storefront"

	apiPrefix = "/api/v1"
)

var server *WebServer

// WebServer hosts the admin and storefront apis on one echo instance
type WebServer struct {
	root   *echo.Echo
	admin  *echo.Group // jwt protected
	public *echo.Group // admin endpoints without auth (login)
	shop   *echo.Group // storefront, cookie session
	appCtx app.AppContext
	secret string
}

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSerializer echo serializer backed by json-iterator
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsonAPI.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := jsonAPI.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

// Init builds the echo instance and route groups. Route registration
// functions run after Init.
func Init(appCtx app.AppContext) {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.INFO)
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	}
	e.Validator = NewValidator()
	e.JSONSerializer = JSONSerializer{}
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	origins := cfg.Web.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: len(cfg.Web.AllowOrigins) > 0,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	secret := cfg.Web.Secret
	if secret == "" {
		secret = common.RandomHex(32)
		zap.L().Warn("web.secret not configured, using a random key; admin tokens will not survive a restart",
			zap.String("namespace", "webserver"))
	}
	sessionSecret := common.IfEmptyStr(cfg.Web.SessionSecret, secret)
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &WebServer{root: e, appCtx: appCtx, secret: secret}
	s.public = e.Group(apiPrefix + "/admin")
	s.admin = e.Group(apiPrefix+"/admin", echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		ContextKey:    UserClaimsKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token").SetInternal(err)
		},
	}), activeOperator, readOnlyGuard)
	s.shop = e.Group(apiPrefix+"/shop", session.Middleware(store))

	e.GET(apiPrefix+"/health", health)
	server = s
}

func health(c echo.Context) error {
	appCtx := GetAppContext(c)
	sqlDB, err := appCtx.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "error", "database": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "ok", "time": time.Now()})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("namespace", "http"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				zap.L().Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	})
}

// errorHandler renders every error with the api error envelope
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := http.StatusText(status)
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		message = fmt.Sprint(he.Message)
		switch status {
		case http.StatusNotFound:
			code = "NOT_FOUND"
		case http.StatusUnauthorized:
			code = "UNAUTHORIZED"
		case http.StatusForbidden:
			code = "FORBIDDEN"
		case http.StatusBadRequest:
			code = "INVALID_REQUEST"
		case http.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case http.StatusRequestEntityTooLarge:
			code = "REQUEST_TOO_LARGE"
		}
	} else {
		zap.L().Error("unhandled api error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	var resp error
	if c.Request().Method == http.MethodHead {
		resp = c.NoContent(status)
	} else {
		resp = c.JSON(status, echo.Map{"error": echo.Map{"code": code, "message": message}})
	}
	if resp != nil {
		zap.L().Error("write error response failed", zap.Error(resp))
	}
}

// GetAppContext returns the application context stored by the server middleware
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(AppContextKey).(app.AppContext)
}

// Handler exposes the router, used by tests
func Handler() http.Handler {
	return server.root
}

// Listen starts the http server
func Listen() error {
	cfg := server.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.L().Info("storefront api server listening", zap.String("addr", addr))
	return server.root.Start(addr)
}

// Shutdown stops the server
func Shutdown(ctx context.Context) error {
	return server.root.Shutdown(ctx)
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.DELETE(path, h, m...)
}

// PublicPOST admin endpoint without authentication
func PublicPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.public.POST(path, h, m...)
}

func ShopGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.shop.GET(path, h, m...)
}

func ShopPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.shop.POST(path, h, m...)
}

func ShopPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.shop.PUT(path, h, m...)
}

func ShopDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.shop.DELETE(path, h, m...)
}
