package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/automation"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/vpdstore"
)

// Controller is the part of the orchestrator exposed over HTTP.
type Controller interface {
	Config() entities.AutomationConfig
	UpdateConfig(patch entities.AutomationConfigPatch) (entities.AutomationConfig, error)
	NotifyManualAction() time.Time
	ManualCommand(ctx context.Context, cmd messages.ActuatorCommand) (time.Time, error)
	Snapshot() automation.Snapshot
}

type Options struct {
	Controller   Controller
	Store        vpdstore.Store
	Logger       *slog.Logger
	AllowOrigins []string
	StoreTimeout time.Duration

	// Optional mounts.
	Device  http.Handler // device websocket, served on / and /ws
	Metrics http.Handler
	Health  http.Handler
	Ready   http.Handler
	Events  http.Handler
}

func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 2 * time.Second
	}

	r.Use(gin.Recovery(), requestLogger(log))
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	h := &handlers{ctrl: opts.Controller, store: opts.Store, log: log, storeTimeout: opts.StoreTimeout}

	api := r.Group("/api")
	{
		api.GET("/automation/config", h.getConfig)
		api.PATCH("/automation/config", h.patchConfig)
		api.POST("/automation/manual", h.manual)
		api.GET("/automation/status", h.status)
		api.POST("/actuators", h.actuate)
		api.GET("/vpd/config", h.getVPD)
		api.PUT("/vpd/config", h.putVPD)
		if opts.Events != nil {
			api.GET("/events/recent", gin.WrapH(opts.Events))
		}
	}

	if opts.Device != nil {
		r.GET("/", gin.WrapH(opts.Device))
		r.GET("/ws", gin.WrapH(opts.Device))
	}
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Health != nil {
		r.GET("/healthz", gin.WrapH(opts.Health))
	}
	if opts.Ready != nil {
		r.GET("/readyz", gin.WrapH(opts.Ready))
	}
	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"latency", time.Since(start))
	}
}
