package medication

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/health-assistant/health-assistant/internal/platform/auth"
	"github.com/health-assistant/health-assistant/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// svcError maps service errors onto HTTP statuses: ErrNotFound to 404,
// ErrValidation to 400, anything else (storage failures) to 500.
func svcError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	med := api.Group("/med")

	med.POST("/plans", h.CreatePlan)
	med.GET("/plans", h.ListPlans)
	med.GET("/plans/:id", h.GetPlan)
	med.PUT("/plans/:id", h.UpdatePlan)
	med.DELETE("/plans/:id", h.DeletePlan)
	med.PUT("/plans/:id/remind", h.SetRemind)

	med.GET("/today", h.TodayRecords)
	med.POST("/today/ensure", h.EnsureRecords)

	med.GET("/records", h.ListRecords)
	med.PUT("/records/:id/mark", h.MarkRecord)
	med.PUT("/records/:id/adjust", h.AdjustRecord)
}

type planRequest struct {
	Name          string   `json:"name"`
	Dosage        string   `json:"dosage"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	RepeatType    string   `json:"repeatType"`
	RemindEnabled bool     `json:"remindEnabled"`
	Times         []string `json:"times"`
	RepeatDays    []int    `json:"repeatDays"`
}

func (req *planRequest) toPlan() (*Plan, error) {
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, errors.New("invalid startDate, want YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, errors.New("invalid endDate, want YYYY-MM-DD")
	}
	return &Plan{
		Name:          req.Name,
		Dosage:        req.Dosage,
		StartDate:     start,
		EndDate:       end,
		RepeatType:    req.RepeatType,
		RemindEnabled: req.RemindEnabled,
		Times:         req.Times,
		RepeatDays:    req.RepeatDays,
	}, nil
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := req.toPlan()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.CreatePlan(c.Request().Context(), userID, p); err != nil {
		return svcError(err, "plan not found")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPlans(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	plans, err := h.svc.GetPlanList(c.Request().Context(), userID,
		c.QueryParam("status"), c.QueryParam("keyword"))
	if err != nil {
		return svcError(err, "plan not found")
	}
	if plans == nil {
		plans = []*Plan{}
	}
	return c.JSON(http.StatusOK, plans)
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	p, err := h.svc.GetPlanDetail(c.Request().Context(), userID, id)
	if err != nil {
		return svcError(err, "plan not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	def, err := req.toPlan()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.UpdatePlan(c.Request().Context(), userID, id, def); err != nil {
		return svcError(err, "plan not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeletePlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.DeletePlan(c.Request().Context(), userID, id); err != nil {
		return svcError(err, "plan not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetRemind(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.SetRemindEnabled(c.Request().Context(), userID, id, body.Enabled); err != nil {
		return svcError(err, "plan not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) TodayRecords(c echo.Context) error {
	date, err := dateOrToday(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	records, err := h.svc.GetTodayRecords(c.Request().Context(), userID, date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if records == nil {
		records = []*Record{}
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) EnsureRecords(c echo.Context) error {
	date, err := dateOrToday(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.EnsureRecords(c.Request().Context(), userID, date); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListRecords(c echo.Context) error {
	var f RecordFilter
	if v := c.QueryParam("planId"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid planId")
		}
		f.PlanID = &pid
	}
	f.Status = c.QueryParam("status")
	if v := c.QueryParam("from"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
		}
		f.DateFrom = &d
	}
	if v := c.QueryParam("to"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
		}
		f.DateTo = &d
	}

	pg := pagination.FromContext(c)
	userID := auth.UserIDFromContext(c.Request().Context())
	items, total, err := h.svc.ListRecords(c.Request().Context(), userID, f, pg.Limit(), pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) MarkRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.MarkRecord(c.Request().Context(), userID, id, body.Status); err != nil {
		return svcError(err, "record not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AdjustRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status   string     `json:"status"`
		ActionAt *time.Time `json:"actionAt"`
		Note     *string    `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.AdjustRecord(c.Request().Context(), userID, id, body.Status, body.ActionAt, body.Note); err != nil {
		return svcError(err, "record not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func dateOrToday(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, errors.New("invalid date, want YYYY-MM-DD")
	}
	return d, nil
}
