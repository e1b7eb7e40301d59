package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepass/carepass/internal/platform/auth"
	"github.com/carepass/carepass/internal/platform/qr"
)

type Handler struct {
	svc    *Service
	images qr.ImageStore
}

func NewHandler(svc *Service, images qr.ImageStore) *Handler {
	return &Handler{svc: svc, images: images}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleHospital, auth.RoleInsurance, auth.RoleAdmin))
	g.POST("/scan", h.Scan)
	g.GET("/patients/:id", h.GetPatient)
	g.GET("/patients/:id/qr", h.GetQRImage)
}

type scanRequest struct {
	Payload string `json:"payload"`
	// Legacy clients post the token under "data" or "scan_data".
	Data     string `json:"data"`
	ScanData string `json:"scan_data"`
}

func (r scanRequest) payload() string {
	if r.Payload != "" {
		return r.Payload
	}
	if r.Data != "" {
		return r.Data
	}
	return r.ScanData
}

func (h *Handler) Scan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payload := req.payload()
	if payload == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no scan data provided")
	}

	p, err := h.svc.ResolveScan(c.Request().Context(), payload)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"patient_id": p.ID.String()})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// GetQRImage serves the patient's current QR identity card as a PNG.
func (h *Handler) GetQRImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p.QRCode == nil || *p.QRCode == "" {
		return echo.NewHTTPError(http.StatusNotFound, "patient has no qr code")
	}

	png, err := h.images.Open(c.Request().Context(), *p.QRCode)
	if err != nil {
		if errors.Is(err, qr.ErrImageNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "qr image not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
