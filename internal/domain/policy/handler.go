package policy

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepass/carepass/internal/domain/patient"
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
	g := api.Group("", auth.RequireRole(auth.RoleInsurance))
	g.POST("/policies", h.Provision)
	g.GET("/policies", h.ListPolicies)
}

type provisionRequest struct {
	PatientIdentifier string `json:"patient_identifier"`
	// Legacy clients post the identifier under "email".
	Email          string  `json:"email"`
	PolicyNumber   string  `json:"policy_number"`
	CoverageAmount float64 `json:"coverage_amount"`
	ValidUntil     string  `json:"valid_until"`
}

func (r provisionRequest) identifier() string {
	if r.PatientIdentifier != "" {
		return r.PatientIdentifier
	}
	return r.Email
}

func (h *Handler) Provision(c echo.Context) error {
	var req provisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	providerID, err := uuid.Parse(auth.ActorID(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	pol, err := h.svc.Provision(ctx, ProvisionInput{
		PatientIdentifier: req.identifier(),
		ProviderID:        providerID,
		PolicyNumber:      req.PolicyNumber,
		CoverageAmount:    req.CoverageAmount,
		ValidUntil:        req.ValidUntil,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, ErrDuplicatePolicy):
			return echo.NewHTTPError(http.StatusConflict, ErrDuplicatePolicy.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"policy_id":  pol.ID.String(),
		"patient_id": pol.PatientID.String(),
	})
}

func (h *Handler) ListPolicies(c echo.Context) error {
	ctx := c.Request().Context()
	providerID, err := uuid.Parse(auth.ActorID(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
	}

	views, err := h.svc.ListForProvider(ctx, providerID, pagination.FromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if views == nil {
		views = []PolicyView{}
	}
	return c.JSON(http.StatusOK, views)
}
