package record

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepass/carepass/internal/platform/auth"
	"github.com/carepass/carepass/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/records", h.AddRecord,
		auth.RequireRole(auth.RoleHospital, auth.RoleAdmin))
	api.GET("/patients/:id/records", h.ListRecords,
		auth.RequireRole(auth.RoleHospital, auth.RoleInsurance, auth.RoleAdmin))
}

type addRecordRequest struct {
	RecordType  string `json:"record_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) AddRecord(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var req addRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	in := AddRecordInput{
		PatientID:   patientID,
		RecordType:  req.RecordType,
		Title:       req.Title,
		Description: req.Description,
	}
	// Admin writes are unattributed; the listing shows them as
	// "Unknown/Admin".
	if auth.ActorRole(ctx) == auth.RoleHospital {
		in.HospitalID = auth.ActorID(ctx)
	}

	rec, err := h.svc.AddRecord(ctx, in)
	if err != nil {
		if errors.Is(err, ErrEmptyDescription) {
			return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyDescription.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]string{"record_id": rec.ID.String()})
}

func (h *Handler) ListRecords(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	views, err := h.svc.List(c.Request().Context(), patientID, pagination.FromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if views == nil {
		views = []RecordView{}
	}
	return c.JSON(http.StatusOK, views)
}
