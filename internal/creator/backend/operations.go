package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abisalde/creator-dashboard/internal/creator/model"
)

func (c *Client) CreateProfile(ctx context.Context, phoneNumber, name string) (json.RawMessage, error) {
	var out json.RawMessage
	payload := map[string]string{"phoneNumber": phoneNumber, "name": name}
	if err := c.call(ctx, FnCreateProfile, "", payload, &out, "Failed to create profile"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendOTP(ctx context.Context, phoneNumber string) (json.RawMessage, error) {
	var out json.RawMessage
	payload := map[string]string{"phoneNumber": phoneNumber}
	if err := c.call(ctx, FnSendOTP, "", payload, &out, "Failed to send OTP"); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyOTP returns the raw body for relaying and the decoded creator so the
// caller can read the issued tokens.
func (c *Client) VerifyOTP(ctx context.Context, phoneNumber, otp string) (json.RawMessage, *model.VerifiedCreator, error) {
	var out json.RawMessage
	payload := map[string]string{"phoneNumber": phoneNumber, "otp": otp}
	if err := c.call(ctx, FnVerifyOTP, "", payload, &out, "Failed to verify OTP"); err != nil {
		return nil, nil, err
	}

	var resp model.VerifyOTPResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, nil, fmt.Errorf("%s: decode response: %w", FnVerifyOTP, err)
	}
	return out, &resp.Verified, nil
}

func (c *Client) GetProfile(ctx context.Context, idToken string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.call(ctx, FnGetProfile, idToken, nil, &out, "Failed to fetch profile"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, idToken, uid string, data json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	payload := map[string]any{"uid": uid, "data": data}
	if err := c.call(ctx, FnUpdateProfile, idToken, payload, &out, "Failed to update profile"); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshToken mints a new id token. The refresh token is sent as the bearer
// credential; a rotated refresh token may come back.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	var out model.RefreshTokenResponse
	if err := c.call(ctx, FnRefreshToken, refreshToken, nil, &out, "Failed to refresh token"); err != nil {
		return model.Tokens{}, err
	}
	if out.IDToken == "" {
		return model.Tokens{}, &Error{Function: FnRefreshToken, Status: 502, Message: "Refresh response did not include an idToken"}
	}

	tokens := model.Tokens{IDToken: out.IDToken, RefreshToken: out.RefreshToken}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (c *Client) ListCoupons(ctx context.Context, idToken string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.call(ctx, FnListCoupons, idToken, nil, &out, "Failed to fetch coupons"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCoupon(ctx context.Context, idToken string, coupon model.CouponInput) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.call(ctx, FnCreateCoupon, idToken, coupon, &out, "Failed to create coupon"); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrders unwraps one level when the function answers with
// {"orders": {"orders": [...], "pagination": {...}}}.
func (c *Client) ListOrders(ctx context.Context, idToken string, query model.OrdersQuery) (*model.OrdersPage, error) {
	var out json.RawMessage
	if err := c.call(ctx, FnListOrders, idToken, query, &out, "Failed to fetch orders"); err != nil {
		return nil, err
	}
	return unwrapOrders(out)
}

func unwrapOrders(raw json.RawMessage) (*model.OrdersPage, error) {
	var page model.OrdersPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", FnListOrders, err)
	}

	var nested model.OrdersPage
	if len(page.Orders) > 0 && page.Orders[0] == '{' {
		if err := json.Unmarshal(page.Orders, &nested); err == nil && nested.Orders != nil {
			if nested.Pagination == nil {
				nested.Pagination = page.Pagination
			}
			return &nested, nil
		}
	}

	if page.Orders == nil {
		page.Orders = json.RawMessage("[]")
	}
	return &page, nil
}

func (c *Client) DashboardSummary(ctx context.Context, idToken string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.call(ctx, FnDashboardSummary, idToken, nil, &out, "Failed to fetch dashboard summary"); err != nil {
		return nil, err
	}
	return out, nil
}
