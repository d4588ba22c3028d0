package http

import (
	"bytes"
	"encoding/json"
	"strings"

	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/internal/creator/validator"
	"github.com/abisalde/creator-dashboard/internal/database"
	"github.com/abisalde/creator-dashboard/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	UID  string          `json:"uid"`
	Data json.RawMessage `json:"data"`
}

func (h *CreatorHandler) GetProfile(c *fiber.Ctx) error {
	raw, err := h.backend.GetProfile(c.UserContext(), middleware.BearerToken(c))
	if err != nil {
		return upstreamError(err, "Failed to fetch profile")
	}
	return relay(c, fiber.StatusOK, raw)
}

// UpdateProfile forwards only the recognised profile fields present in data.
// A successful update is announced on the profile event stream.
func (h *CreatorHandler) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var missing []string
	if req.UID == "" {
		missing = append(missing, "uid")
	}
	data := bytes.TrimSpace(req.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		missing = append(missing, "data")
	}
	if len(missing) > 0 {
		return apierrors.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}

	var update model.ProfileUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return apierrors.Validation("Invalid profile data")
	}
	if verr := validator.ValidateProfileUpdate(update); verr != nil {
		return verr
	}

	changes, err := json.Marshal(update)
	if err != nil {
		return apierrors.Internal("Failed to encode profile update", err)
	}

	ctx := c.UserContext()
	raw, err := h.backend.UpdateProfile(ctx, middleware.BearerToken(c), req.UID, changes)
	if err != nil {
		return upstreamError(err, "Failed to update profile")
	}

	switch {
	case h.events != nil:
		if err := h.events.PublishProfileUpdated(ctx, req.UID); err != nil {
			h.log.Warn().Err(err).Str("creator_id", req.UID).Msg("publish profile event")
		}
	case h.cache != nil:
		if err := h.cache.Delete(ctx, database.SummaryCacheKey(req.UID)); err != nil {
			h.log.Warn().Err(err).Str("creator_id", req.UID).Msg("invalidate summary")
		}
	}

	return relay(c, fiber.StatusOK, raw)
}
