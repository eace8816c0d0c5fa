package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkiq/parkiq-server/internal/engine"
)

// ParkingHandler exposes the requester-facing allocation operations.  Every
// route resolves the acting requester from the JWT subject; the body only
// carries operation parameters.
type ParkingHandler struct {
	engine *engine.Coordinator
}

// NewParkingHandler constructs the handler around the allocation engine.
func NewParkingHandler(e *engine.Coordinator) *ParkingHandler {
	return &ParkingHandler{engine: e}
}

type reserveRequest struct {
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	CoRiders []string `json:"co_riders"`
}

// Reserve requests a spot for a date.  Responds with either a direct
// assignment or a waitlist rank.
func (h *ParkingHandler) Reserve(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.engine.Reserve(c.Request().Context(), userID(c), req.Date, req.Time, req.CoRiders)
	if err != nil {
		return fail(c, err)
	}
	if res.SpotID != "" {
		return c.JSON(http.StatusCreated, echo.Map{
			"status":   "reserved",
			"spot_id":  res.SpotID,
			"spot_num": res.SpotNum,
			"score":    res.Score,
		})
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"status":        "waitlisted",
		"waitlist_rank": res.Rank,
		"score":         res.Score,
	})
}

// CheckIn confirms arrival during the grace window.
func (h *ParkingHandler) CheckIn(c echo.Context) error {
	spot, err := h.engine.CheckIn(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "occupied", "spot_id": spot.ID, "spot_num": spot.Num})
}

type qrCheckInRequest struct {
	Code       string `json:"code"`
	AccessCode string `json:"access_code"`
}

// QRCheckIn confirms arrival via a scanned pass code.  Unauthenticated:
// the pass code plus the guest's access code are the credential.
func (h *ParkingHandler) QRCheckIn(c echo.Context) error {
	var req qrCheckInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	spot, err := h.engine.QRCheckIn(c.Request().Context(), req.Code, req.AccessCode)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "occupied", "spot_id": spot.ID, "spot_num": spot.Num})
}

// CheckOut releases an occupied spot and triggers waitlist promotion.
func (h *ParkingHandler) CheckOut(c echo.Context) error {
	spot, err := h.engine.CheckOut(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "completed", "spot_id": spot.ID})
}

// Cancel abandons a reservation before arrival, penalty-free.
func (h *ParkingHandler) Cancel(c echo.Context) error {
	spot, err := h.engine.Cancel(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cancelled", "spot_id": spot.ID})
}

// AcceptOffer converts a pending offer into a reservation with a fresh
// grace window.
func (h *ParkingHandler) AcceptOffer(c echo.Context) error {
	spot, err := h.engine.AcceptOffer(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "reserved", "spot_id": spot.ID, "spot_num": spot.Num})
}

// DeclineOffer passes a pending offer to the next candidate.
func (h *ParkingHandler) DeclineOffer(c echo.Context) error {
	spot, err := h.engine.DeclineOffer(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "declined", "spot_id": spot.ID})
}

type awayRequest struct {
	ReturnTime string `json:"return_time"`
}

// ExitTemporarily marks an occupied spot as held while the requester steps
// out, with a promised return time.
func (h *ParkingHandler) ExitTemporarily(c echo.Context) error {
	var req awayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	spot, err := h.engine.ExitTemporarily(c.Request().Context(), userID(c), req.ReturnTime)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "temp_away", "spot_id": spot.ID, "return_time": req.ReturnTime})
}

// Return re-occupies a spot held through a temporary exit.
func (h *ParkingHandler) Return(c echo.Context) error {
	spot, err := h.engine.ReturnFromTemporary(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "occupied", "spot_id": spot.ID})
}

// Extension grants extra grace time for traffic delays, subject to the
// daily and weekly quotas.
func (h *ParkingHandler) Extension(c echo.Context) error {
	deadline, err := h.engine.RequestExtension(c.Request().Context(), userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "extended", "expires_at": deadline})
}

// State serves the full authoritative snapshot.  Clients call this after
// every state-changed signal instead of consuming diffs.
func (h *ParkingHandler) State(c echo.Context) error {
	snap, err := h.engine.StateSnapshot(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
