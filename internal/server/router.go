package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/profile-watch/pwatch/internal/monitor"
)

const (
	statusRoutePath              = "/status"
	healthRoutePath              = "/healthz"
	healthStatusKey              = "status"
	healthStatusOK               = "ok"
	healthStatusWaiting          = "waiting"
	errMessageMissingStatusStore = "status provider cannot be nil"
	logMessageStatusServed       = "status served"
	logFieldTickCount            = "tick_count"
	ginModeRelease               = "release"
)

var errMissingStatusProvider = errors.New(errMessageMissingStatusStore)

// StatusProvider exposes the published state of the monitor loop.
type StatusProvider interface {
	Status() monitor.Status
}

// RouterConfig configures the HTTP routing for the status endpoints.
type RouterConfig struct {
	StatusProvider StatusProvider
	Logger         *zap.Logger
}

// NewRouter constructs a Gin engine serving the health and status handlers.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	if configuration.StatusProvider == nil {
		return nil, errMissingStatusProvider
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := statusHandler{
		provider: configuration.StatusProvider,
		logger:   logger,
	}

	engine.GET(statusRoutePath, handler.serveStatus)
	engine.GET(healthRoutePath, handler.healthStatus)

	return engine, nil
}

type statusHandler struct {
	provider StatusProvider
	logger   *zap.Logger
}

func (handler statusHandler) serveStatus(ginContext *gin.Context) {
	status := handler.provider.Status()
	handler.logger.Debug(logMessageStatusServed, zap.Int(logFieldTickCount, status.TickCount))
	ginContext.JSON(http.StatusOK, status)
}

// healthStatus reports ok once the tracker holds a baseline and waiting before that.
func (handler statusHandler) healthStatus(ginContext *gin.Context) {
	if !handler.provider.Status().Initialized {
		ginContext.JSON(http.StatusServiceUnavailable, map[string]string{healthStatusKey: healthStatusWaiting})
		return
	}
	ginContext.JSON(http.StatusOK, map[string]string{healthStatusKey: healthStatusOK})
}
