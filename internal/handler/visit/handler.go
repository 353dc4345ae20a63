package visit

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/service/certperiod"
	"github.com/therapysync/schedule-api/internal/service/lifecycle"
	"github.com/therapysync/schedule-api/internal/service/note"
	"github.com/therapysync/schedule-api/internal/service/scheduler"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/httputil"
)

const dateLayout = "2006-01-02"

type Handler struct {
	scheduler *scheduler.Service
	machine   *lifecycle.Machine
	notes     *note.Service
	resolver  *certperiod.Resolver
}

func NewHandler(
	scheduler *scheduler.Service,
	machine *lifecycle.Machine,
	notes *note.Service,
	resolver *certperiod.Resolver,
) *Handler {
	return &Handler{
		scheduler: scheduler,
		machine:   machine,
		notes:     notes,
		resolver:  resolver,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	visits := r.Group("/visits")
	{
		visits.POST("", h.CreateVisit)
		visits.GET("/:id", h.GetVisit)
		visits.PUT("/:id", h.UpdateVisit)
		visits.DELETE("/:id", h.DeleteVisit)
		visits.POST("/:id/status", h.ChangeStatus)
		visits.GET("/:id/note", h.OpenNote)
		visits.POST("/:id/note", h.SaveNote)
	}
	r.GET("/certperiods/:id/visits", h.ListByCertPeriod)
}

func (h *Handler) CreateVisit(c *gin.Context) {
	var req model.CreateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	visitDate, err := time.Parse(dateLayout, req.VisitDate)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit_date, expected YYYY-MM-DD", err))
		return
	}

	// When the caller does not name a period, schedule against the
	// patient's working period.
	certPeriodID := req.CertificationPeriodID
	if certPeriodID == uuid.Nil {
		period, err := h.resolver.ResolveCurrent(c.Request.Context(), req.PatientID, time.Now())
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		certPeriodID = period.ID
	}

	intent := &model.VisitIntent{
		PatientID:             req.PatientID,
		StaffID:               req.StaffID,
		CertificationPeriodID: certPeriodID,
		VisitDate:             visitDate,
		ScheduledTime:         req.ScheduledTime,
		VisitType:             req.VisitType,
		Notes:                 req.Notes,
	}

	visit, err := h.scheduler.ValidateAndSave(c.Request.Context(), intent)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, visit)
}

func (h *Handler) GetVisit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit ID", err))
		return
	}

	visit, err := h.scheduler.GetVisit(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) UpdateVisit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit ID", err))
		return
	}

	var req model.UpdateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	existing, err := h.scheduler.GetVisit(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	intent := &model.VisitIntent{
		ID:                    &id,
		PatientID:             existing.PatientID,
		StaffID:               existing.StaffID,
		CertificationPeriodID: existing.CertificationPeriodID,
		VisitDate:             existing.VisitDate,
		ScheduledTime:         existing.ScheduledTime,
		VisitType:             existing.VisitType,
		Notes:                 existing.Notes,
	}
	if req.StaffID != nil {
		intent.StaffID = *req.StaffID
	}
	if req.VisitDate != nil {
		visitDate, err := time.Parse(dateLayout, *req.VisitDate)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid visit_date, expected YYYY-MM-DD", err))
			return
		}
		intent.VisitDate = visitDate
	}
	if req.ScheduledTime != nil {
		intent.ScheduledTime = req.ScheduledTime
	}
	if req.VisitType != nil {
		intent.VisitType = *req.VisitType
	}
	if req.Notes != nil {
		intent.Notes = *req.Notes
	}

	visit, err := h.scheduler.ValidateAndSave(c.Request.Context(), intent)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) DeleteVisit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit ID", err))
		return
	}

	err = h.scheduler.Delete(c.Request.Context(), id)
	if err != nil {
		// A deactivation is a successful outcome the caller needs to
		// distinguish, not a failure.
		if errors.Is(err, errors.ErrDeactivatedInsteadOfDeleted) {
			httputil.RespondWithSuccess(c, gin.H{"outcome": "deactivated"})
			return
		}
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"outcome": "deleted"})
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit ID", err))
		return
	}

	var req model.ChangeVisitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.machine.Transition(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) OpenNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit ID", err))
		return
	}

	session, err := h.notes.Open(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) SaveNote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid visit ID", err))
		return
	}

	var req model.SaveNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	saved, err := h.notes.Save(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, saved)
}

func (h *Handler) ListByCertPeriod(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid certification period ID", err))
		return
	}

	var filters model.VisitFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	visits, err := h.scheduler.ListVisits(c.Request.Context(), id, &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visits)
}
