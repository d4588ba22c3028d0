package validator

import (
	"regexp"
	"strings"
	"time"

	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
)

const MaxPageSize = 100

var (
	phoneRegex = regexp.MustCompile(`^\+\d{1,14}$`)
	otpRegex   = regexp.MustCompile(`^\d{4,8}$`)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

func ValidatePhoneNumber(phone string) *apierrors.APIError {
	if strings.TrimSpace(phone) == "" {
		return apierrors.Validation("Phone number is required")
	}
	if !phoneRegex.MatchString(phone) {
		return apierrors.Validation("Phone number must be in E.164 format (e.g. +15551234567)")
	}
	return nil
}

func ValidateOTP(otp string) *apierrors.APIError {
	if strings.TrimSpace(otp) == "" {
		return apierrors.Validation("OTP is required")
	}
	if !otpRegex.MatchString(otp) {
		return apierrors.Validation("OTP must be numeric")
	}
	return nil
}

func ValidateName(name string) *apierrors.APIError {
	if strings.TrimSpace(name) == "" {
		return apierrors.Validation("Name is required")
	}
	return nil
}

func ValidateEmail(email string) *apierrors.APIError {
	if !emailRegex.MatchString(email) {
		return apierrors.Validation("Invalid email format")
	}
	return nil
}

func ValidateProfileUpdate(update model.ProfileUpdate) *apierrors.APIError {
	if update.Empty() {
		return apierrors.Validation("No profile fields to update")
	}
	if update.Name != nil {
		if err := ValidateName(*update.Name); err != nil {
			return err
		}
	}
	if update.Email != nil && *update.Email != "" {
		if err := ValidateEmail(*update.Email); err != nil {
			return err
		}
	}
	if update.PhoneNumber != nil {
		if err := ValidatePhoneNumber(*update.PhoneNumber); err != nil {
			return err
		}
	}
	if update.SocialMediaHandles != nil {
		for _, h := range *update.SocialMediaHandles {
			if !h.Platform.Valid() {
				return apierrors.Validation("Unsupported social media platform %q", h.Platform)
			}
			if strings.TrimSpace(h.Handle) == "" {
				return apierrors.Validation("Social media handle is required for %s", h.Platform)
			}
		}
	}
	return nil
}

func ValidateCoupon(in model.CouponInput) *apierrors.APIError {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Code) == "" {
		missing = append(missing, "code")
	}
	if in.Value == 0 {
		missing = append(missing, "value")
	}
	if in.StartsAt == "" {
		missing = append(missing, "startsAt")
	}
	if in.EndsAt == "" {
		missing = append(missing, "endsAt")
	}
	if len(missing) > 0 {
		return apierrors.Validation("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if in.Value < 0 {
		return apierrors.Validation("Coupon value must be positive")
	}

	startsAt, err := time.Parse(time.RFC3339, in.StartsAt)
	if err != nil {
		return apierrors.Validation("startsAt must be an RFC 3339 timestamp")
	}
	endsAt, err := time.Parse(time.RFC3339, in.EndsAt)
	if err != nil {
		return apierrors.Validation("endsAt must be an RFC 3339 timestamp")
	}
	if !endsAt.After(startsAt) {
		return apierrors.Validation("endsAt must be after startsAt")
	}

	if in.UsageLimit != nil && *in.UsageLimit < 0 {
		return apierrors.Validation("usageLimit cannot be negative")
	}
	if in.PerUserLimit != nil && *in.PerUserLimit < 0 {
		return apierrors.Validation("perUserLimit cannot be negative")
	}
	if in.MinimumOrderValue != nil && *in.MinimumOrderValue < 0 {
		return apierrors.Validation("minimumOrderValue cannot be negative")
	}
	return nil
}

func ValidateOrdersQuery(q model.OrdersQuery) *apierrors.APIError {
	if q.Page < 1 {
		return apierrors.Validation("page must be a positive integer")
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return apierrors.Validation("pageSize must be between 1 and %d", MaxPageSize)
	}
	switch q.SortOrder {
	case "", model.SortAsc, model.SortDesc:
	default:
		return apierrors.Validation("sortOrder must be asc or desc")
	}
	return nil
}
