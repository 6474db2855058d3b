package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/automation"
	"github.com/LeonardoBeccarini/growbox_control/internal/services/vpdstore"
	"github.com/LeonardoBeccarini/growbox_control/pkg/breaker"
)

type handlers struct {
	ctrl         Controller
	store        vpdstore.Store
	log          *slog.Logger
	storeTimeout time.Duration
}

type overrideResponse struct {
	ManualOverrideUntil time.Time `json:"manualOverrideUntil"`
}

func (h *handlers) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Config())
}

func (h *handlers) patchConfig(c *gin.Context) {
	var patch entities.AutomationConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	cfg, err := h.ctrl.UpdateConfig(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *handlers) manual(c *gin.Context) {
	c.JSON(http.StatusOK, overrideResponse{ManualOverrideUntil: h.ctrl.NotifyManualAction()})
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *handlers) actuate(c *gin.Context) {
	var cmd messages.ActuatorCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if err := cmd.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	until, err := h.ctrl.ManualCommand(c.Request.Context(), cmd)
	switch {
	case errors.Is(err, automation.ErrSinkUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Warn("manual command failed", "command", cmd.String(), "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("manual command", "command", cmd.String(), "client", c.ClientIP())
	c.JSON(http.StatusAccepted, overrideResponse{ManualOverrideUntil: until})
}

func (h *handlers) getVPD(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.storeTimeout)
	defer cancel()
	cfg, err := h.store.GetOrCreate(ctx)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// putVPD replaces the settings; statistics and the adjustment log are kept.
func (h *handlers) putVPD(c *gin.Context) {
	var in entities.VPDConfig
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if err := in.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.storeTimeout)
	defer cancel()
	cur, err := h.store.GetOrCreate(ctx)
	if err != nil {
		h.storeError(c, err)
		return
	}
	in.ID = cur.ID
	in.Stats = cur.Stats
	in.Log = cur.Log
	if err := h.store.Save(ctx, &in); err != nil {
		h.storeError(c, err)
		return
	}
	h.log.Info("vpd config replaced", "enabled", in.Enabled, "target", in.TargetRange)
	c.JSON(http.StatusOK, in)
}

func (h *handlers) storeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if breaker.IsOpen(err) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	h.log.Error("vpd store", "err", err)
	c.JSON(status, gin.H{"error": "vpd config store unavailable"})
}
