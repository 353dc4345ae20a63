package certperiod

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/service/certperiod"
	"github.com/therapysync/schedule-api/internal/service/quota"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/httputil"
)

type Handler struct {
	resolver *certperiod.Resolver
	quota    *quota.Calculator
}

func NewHandler(resolver *certperiod.Resolver, quota *quota.Calculator) *Handler {
	return &Handler{
		resolver: resolver,
		quota:    quota,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients/:id/certperiods")
	{
		patients.GET("", h.ListForPatient)
		patients.GET("/current", h.ResolveCurrent)
		patients.POST("/:periodID/pin", h.Pin)
		patients.DELETE("/pin", h.Unpin)
	}

	periods := r.Group("/certperiods/:id")
	{
		periods.GET("/limits", h.GetLimits)
		periods.PUT("/limits", h.SetLimit)
		periods.POST("/limits/recompute", h.RecomputeLimits)
	}
}

func (h *Handler) ListForPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid patient ID", err))
		return
	}

	periods, err := h.resolver.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, periods)
}

func (h *Handler) ResolveCurrent(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid patient ID", err))
		return
	}

	period, err := h.resolver.ResolveCurrent(c.Request.Context(), patientID, time.Now())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, period)
}

func (h *Handler) Pin(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid patient ID", err))
		return
	}
	periodID, err := uuid.Parse(c.Param("periodID"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid certification period ID", err))
		return
	}

	if err := h.resolver.Pin(c.Request.Context(), patientID, periodID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"pinned": periodID})
}

func (h *Handler) Unpin(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid patient ID", err))
		return
	}

	h.resolver.Unpin(patientID)
	httputil.RespondWithSuccess(c, gin.H{"pinned": nil})
}

func (h *Handler) GetLimits(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid certification period ID", err))
		return
	}

	limits, err := h.quota.LimitsFor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, limits)
}

type setLimitRequest struct {
	Discipline model.Discipline `json:"discipline" binding:"required"`
	Week       int              `json:"week" binding:"required"`
	Cap        int              `json:"cap"`
}

func (h *Handler) SetLimit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid certification period ID", err))
		return
	}

	var req setLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	if err := h.quota.SetLimit(c.Request.Context(), id, req.Discipline, req.Week, req.Cap); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"discipline": req.Discipline, "week": req.Week, "cap": req.Cap})
}

func (h *Handler) RecomputeLimits(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid certification period ID", err))
		return
	}

	limits, err := h.quota.ComputeLimits(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, limits)
}
