package api

import (
	"errors"
	"net/http"

	reqdto "schedcore/internal/handler/dto/request"
	resdto "schedcore/internal/handler/dto/response"
	"schedcore/internal/handler/httperr"
	"schedcore/internal/pkg/clock"
	"schedcore/internal/usecase/queries"

	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct {
	availability queries.AvailabilityQueries
	policy       queries.Policy
	clock        clock.Clock
}

func NewAvailabilityHandler(availability queries.AvailabilityQueries, policy queries.Policy, clock clock.Clock) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		policy:       policy,
		clock:        clock,
	}
}

// @Summary Compute availability
// @Description List bookable slots for a service or explicit staff set
// @Tags availability
// @Produce json
// @Param service_id query int false "Catalog service id"
// @Param from query string false "Range start (RFC3339 or YYYY-MM-DD, defaults to today)"
// @Param to query string false "Range end (RFC3339 or YYYY-MM-DD, defaults to from+1d)"
// @Param duration_minutes query int false "Explicit duration, required when no service_id is given"
// @Param staff_ids query string false "Comma separated staff override list"
// @Param per_staff query bool false "Keep slots attributed per staff member"
// @Param ignore_mapping query bool false "Skip the service-to-staff mapping"
// @Success 200 {array} resdto.SlotResponse
// @Failure 400 {object} map[string]string
// @Router /availability [get]
func (h *AvailabilityHandler) Compute(c *gin.Context) {
	var q reqdto.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid query", nil)
		return
	}

	from, to := q.Range(h.clock.Now())
	ref := queries.ServiceRef{ServiceID: q.ServiceID, Duration: q.Duration()}
	opts := queries.Options{
		ReturnPerStaff:   q.PerStaff,
		OverrideStaffIDs: q.StaffIDList(),
		IgnoreMapping:    q.IgnoreMapping,
	}

	slots, err := h.availability.ComputeAvailability(c.Request.Context(), ref, from, to, h.policy, opts)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrInvalidDuration):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "A positive duration is required", nil)
		case errors.Is(err, queries.ErrInvalidRange):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid range", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromSlots(slots))
}
