package staff

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/therapysync/schedule-api/internal/model"
	"github.com/therapysync/schedule-api/internal/service/staff"
	"github.com/therapysync/schedule-api/pkg/errors"
	"github.com/therapysync/schedule-api/pkg/httputil"
)

type Handler struct {
	service *staff.Service
}

func NewHandler(service *staff.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/staff")
	{
		group.GET("", h.ListStaff)
		group.GET("/:id", h.GetStaff)
	}
}

func (h *Handler) ListStaff(c *gin.Context) {
	var filters model.StaffFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	members, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, members)
}

func (h *Handler) GetStaff(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid staff ID", err))
		return
	}

	member, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, member)
}
