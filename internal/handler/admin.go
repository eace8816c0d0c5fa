package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/parkiq/parkiq-server/internal/engine"
	"github.com/parkiq/parkiq-server/internal/utils"
)

// AdminHandler exposes the privileged operations.  All routes are mounted
// behind the admin role check; the acting admin's ID is recorded with every
// action for the audit trail.
type AdminHandler struct {
	engine     *engine.Coordinator
	bcryptCost int
}

// NewAdminHandler constructs the handler.  bcryptCost is used when hashing
// guest access codes.
func NewAdminHandler(e *engine.Coordinator, bcryptCost int) *AdminHandler {
	return &AdminHandler{engine: e, bcryptCost: bcryptCost}
}

type forceBookRequest struct {
	UserID string `json:"user_id"`
}

// ForceBook assigns the earliest free spot to a requester, skipping the
// waitlist.
func (h *AdminHandler) ForceBook(c echo.Context) error {
	var req forceBookRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}
	spot, err := h.engine.ForceBook(c.Request().Context(), userID(c), req.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "reserved", "spot_id": spot.ID, "spot_num": spot.Num, "user_id": req.UserID})
}

type clearPenaltyRequest struct {
	UserID string `json:"user_id"`
}

// ClearPenalty zeroes a requester's violations and lifts any active ban.
func (h *AdminHandler) ClearPenalty(c echo.Context) error {
	var req clearPenaltyRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}
	if err := h.engine.ClearPenalty(c.Request().Context(), userID(c), req.UserID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cleared", "user_id": req.UserID})
}

type guestPassRequest struct {
	Name string `json:"name"`
}

// GuestPass creates a temporary guest identity with a one-time access code.
// The plaintext code appears only in this response; the database keeps just
// the bcrypt hash.
func (h *AdminHandler) GuestPass(c echo.Context) error {
	var req guestPassRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	code, err := newAccessCode()
	if err != nil {
		return fail(c, err)
	}
	hash, err := utils.HashAccessCode(code, h.bcryptCost)
	if err != nil {
		return fail(c, err)
	}
	res, err := h.engine.GuestPass(c.Request().Context(), userID(c), req.Name, hash)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"guest_id":    res.GuestID,
		"pass_code":   res.Code,
		"access_code": code,
		"spot_id":     res.SpotID,
		"spot_num":    res.SpotNum,
	})
}

// Rules updates the runtime-tunable settings; a capacity change also
// resizes the spot registry.
func (h *AdminHandler) Rules(c echo.Context) error {
	var rules map[string]string
	if err := c.Bind(&rules); err != nil || len(rules) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "settings map is required"})
	}
	if err := h.engine.UpdateRules(c.Request().Context(), userID(c), rules); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "updated"})
}

// Reset runs the end-of-day sweep on demand.
func (h *AdminHandler) Reset(c echo.Context) error {
	if err := h.engine.DailyReset(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "reset"})
}

// Logs returns the newest audit entries.
func (h *AdminHandler) Logs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.engine.RecentAudit(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": entries})
}

// newAccessCode generates an 8-hex-char guest access code.
func newAccessCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
