package handlers

import (
	"errors"
	"net/http"

	"tilt_control/internal/service"
	"tilt_control/internal/tilt"

	"github.com/gin-gonic/gin"
)

const (
	statusOK        = "ok"
	statusParamsSet = "params_set"

	errInvalidBodyPref = "invalid body: "
	errSetParams       = "failed to set params"
	errParamsNotLogged = "params applied but the change could not be recorded"
)

// ParamsRequest is the body of PUT /api/v1/params. Omitted fields keep their
// current value.
type ParamsRequest struct {
	Baseline    *float64 `json:"baseline,omitempty" example:"-0.88"`
	DeadZone    *float64 `json:"dead_zone,omitempty" example:"1.3"`
	ScaleFactor *float64 `json:"scale_factor,omitempty" example:"0.77"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Current tilt
// @Description  Control value in [-10, 10] with the derived move speed and direction.
// @Tags         tilt
// @Produce      json
// @Success      200  {object}  models.TiltSnapshot
// @Router       /api/v1/tilt [get]
func (h *Handler) getTilt(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.GetTilt(c.Request.Context()))
}

// @Summary      Current tuning
// @Tags         tilt
// @Produce      json
// @Success      200  {object}  models.TiltParams
// @Router       /api/v1/params [get]
func (h *Handler) getParams(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Tuning.GetParams(c.Request.Context()))
}

// @Summary      Replace tuning
// @Description  Applies on the next controller tick. dead_zone must be >= 0 and scale_factor > 0.
// @Tags         tilt
// @Accept       json
// @Produce      json
// @Param        body  body      ParamsRequest  true  "Fields to change"
// @Success      200   {object}  map[string]interface{}  "status, params"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string  "not applied, or applied but not recorded"
// @Router       /api/v1/params [put]
// @Security     BearerAuth
func (h *Handler) putParams(c *gin.Context) {
	var req ParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	applied, err := h.services.Tuning.PatchParams(c.Request.Context(), service.ParamsPatch{
		Baseline:    req.Baseline,
		DeadZone:    req.DeadZone,
		ScaleFactor: req.ScaleFactor,
	})
	switch {
	case errors.Is(err, tilt.ErrInvalidParams):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrChangeNotLogged):
		// the new tuning is live; say so alongside the error
		if h.log != nil {
			h.log.Errorw("tilt_params_change_not_logged", "err", err, "params", applied)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  errParamsNotLogged,
			"status": statusParamsSet,
			"params": applied,
		})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errSetParams, "tilt_set_params_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": statusParamsSet,
		"params": applied,
	})
}

// logAndJSONError logs err under logKey and answers with userMsg.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}
