package http

import (
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/internal/creator/validator"
	"github.com/abisalde/creator-dashboard/internal/middleware"
	app_logger "github.com/abisalde/creator-dashboard/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

type createProfileRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

func (h *CreatorHandler) CreateProfile(c *fiber.Ctx) error {
	app_logger.LogProxyRequest(h.log, c.Path(), c.IP())

	var req createProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if verr := validator.ValidatePhoneNumber(req.PhoneNumber); verr != nil {
		return verr
	}
	if verr := validator.ValidateName(req.Name); verr != nil {
		return verr
	}

	raw, err := h.backend.CreateProfile(c.UserContext(), req.PhoneNumber, req.Name)
	if err != nil {
		return upstreamError(err, "Failed to create profile")
	}
	return relay(c, fiber.StatusOK, raw)
}

func (h *CreatorHandler) SendOTP(c *fiber.Ctx) error {
	app_logger.LogProxyRequest(h.log, c.Path(), c.IP())

	var req phoneRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if verr := validator.ValidatePhoneNumber(req.PhoneNumber); verr != nil {
		return verr
	}

	raw, err := h.backend.SendOTP(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return upstreamError(err, "Failed to send OTP")
	}
	return relay(c, fiber.StatusOK, raw)
}

// VerifyOTP relays the verified payload and persists the issued tokens as
// cookies on the same response.
func (h *CreatorHandler) VerifyOTP(c *fiber.Ctx) error {
	app_logger.LogProxyRequest(h.log, c.Path(), c.IP())

	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if verr := validator.ValidatePhoneNumber(req.PhoneNumber); verr != nil {
		return verr
	}
	if verr := validator.ValidateOTP(req.OTP); verr != nil {
		return verr
	}

	raw, verified, err := h.backend.VerifyOTP(c.UserContext(), req.PhoneNumber, req.OTP)
	if err != nil {
		return upstreamError(err, "Failed to verify OTP")
	}
	h.cookies.SetTokens(c, verified.Tokens())
	return relay(c, fiber.StatusOK, raw)
}

func (h *CreatorHandler) RefreshToken(c *fiber.Ctx) error {
	tokens, err := h.backend.RefreshToken(c.UserContext(), middleware.BearerToken(c))
	if err != nil {
		return upstreamError(err, "Failed to refresh token")
	}
	h.cookies.SetTokens(c, tokens)
	return c.JSON(model.RefreshTokenResponse{IDToken: tokens.IDToken, RefreshToken: tokens.RefreshToken})
}

// Logout only clears the cookies; the creator record is untouched.
func (h *CreatorHandler) Logout(c *fiber.Ctx) error {
	h.cookies.ClearTokens(c)
	return c.JSON(fiber.Map{"success": true})
}
