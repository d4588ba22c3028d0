package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/abisalde/creator-dashboard/internal/creator/gate"
	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/abisalde/creator-dashboard/internal/creator/session"
	"github.com/urfave/cli/v2"
)

const (
	couponsPath = "/api/creator/coupons"
	ordersPath  = "/api/creator/orders"
	summaryPath = "/api/creator/dashboard-summary"
)

var errNotSignedIn = errors.New("not signed in: run `creatorctl otp` and `creatorctl login` first")

func phoneFlag() cli.Flag {
	return &cli.StringFlag{Name: "phone", Usage: "phone number in E.164 form", Required: true}
}

// signedIn bootstraps the stored tokens and fails unless a session results.
func signedIn(c *cli.Context, e *env) (session.State, error) {
	st, err := e.manager.Bootstrap(c.Context)
	if err != nil {
		return st, err
	}
	if st.Err != "" {
		return st, errors.New(st.Err)
	}
	if !st.IsAuthenticated {
		return st, errNotSignedIn
	}
	return st, nil
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "create a creator profile",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.StringFlag{Name: "name", Required: true},
		},
		Action: run(func(c *cli.Context, e *env) error {
			profile, err := e.manager.CreateProfile(c.Context, c.String("phone"), c.String("name"))
			if err != nil {
				return err
			}
			return e.printJSON(profile)
		}),
	}
}

func otpCommand() *cli.Command {
	return &cli.Command{
		Name:  "otp",
		Usage: "send a one-time password to a phone number",
		Flags: []cli.Flag{phoneFlag()},
		Action: run(func(c *cli.Context, e *env) error {
			resp, err := e.manager.SendOTP(c.Context, c.String("phone"))
			if err != nil {
				return err
			}
			msg := resp.Message
			if msg == "" {
				msg = "OTP sent"
			}
			fmt.Fprintln(e.out, msg)
			return nil
		}),
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "verify a one-time password and store the session",
		Flags: []cli.Flag{
			phoneFlag(),
			&cli.StringFlag{Name: "otp", Required: true},
		},
		Action: run(func(c *cli.Context, e *env) error {
			st, err := e.manager.VerifyOTP(c.Context, c.String("phone"), c.String("otp"))
			if err != nil {
				return err
			}
			name := ""
			if st.Profile != nil {
				name = st.Profile.Name
			}
			fmt.Fprintf(e.out, "signed in as %s (profile %d%% complete)\n", name, st.CompletionScore.Percentage())
			return nil
		}),
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "show or update the creator profile",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the profile and completion score",
				Action: run(func(c *cli.Context, e *env) error {
					if _, err := signedIn(c, e); err != nil {
						return err
					}
					if err := e.manager.FetchProfile(c.Context); err != nil {
						return err
					}
					st := e.manager.Snapshot()
					return e.printJSON(map[string]any{
						"profile":              st.Profile,
						"completionScore":      st.CompletionScore,
						"completionPercentage": st.CompletionScore.Percentage(),
						"state":                st.Region(),
					})
				}),
			},
			{
				Name:  "update",
				Usage: "change profile fields",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "phone"},
					&cli.StringSliceFlag{Name: "social", Usage: "platform=handle, repeatable"},
				},
				Action: run(func(c *cli.Context, e *env) error {
					update, err := profileUpdateFromFlags(c)
					if err != nil {
						return err
					}
					if _, err := signedIn(c, e); err != nil {
						return err
					}
					profile, err := e.manager.UpdateProfile(c.Context, update)
					if err != nil {
						return err
					}
					return e.printJSON(profile)
				}),
			},
		},
	}
}

func profileUpdateFromFlags(c *cli.Context) (model.ProfileUpdate, error) {
	var update model.ProfileUpdate
	if c.IsSet("name") {
		v := c.String("name")
		update.Name = &v
	}
	if c.IsSet("email") {
		v := c.String("email")
		update.Email = &v
	}
	if c.IsSet("phone") {
		v := c.String("phone")
		update.PhoneNumber = &v
	}
	if c.IsSet("social") {
		handles, err := parseSocialHandles(c.StringSlice("social"))
		if err != nil {
			return update, err
		}
		update.SocialMediaHandles = &handles
	}
	return update, nil
}

func parseSocialHandles(values []string) ([]model.SocialMediaHandle, error) {
	handles := make([]model.SocialMediaHandle, 0, len(values))
	for _, v := range values {
		platform, handle, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("social %q: expected platform=handle", v)
		}
		handles = append(handles, model.SocialMediaHandle{
			Platform: model.Platform(strings.ToLower(strings.TrimSpace(platform))),
			Handle:   strings.TrimSpace(handle),
		})
	}
	return handles, nil
}

func couponsCommand() *cli.Command {
	return &cli.Command{
		Name:  "coupons",
		Usage: "list or create coupons",
		Action: run(func(c *cli.Context, e *env) error {
			if _, err := signedIn(c, e); err != nil {
				return err
			}
			raw, err := session.Request[json.RawMessage](c.Context, e.api, http.MethodGet, couponsPath, nil, true)
			if err != nil {
				return err
			}
			return e.printJSON(raw)
		}),
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a coupon",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "code", Required: true},
					&cli.Float64Flag{Name: "value", Required: true},
					&cli.StringFlag{Name: "starts", Usage: "RFC 3339 start time", Required: true},
					&cli.StringFlag{Name: "ends", Usage: "RFC 3339 end time", Required: true},
					&cli.IntFlag{Name: "usage-limit"},
					&cli.IntFlag{Name: "per-user-limit"},
					&cli.Float64Flag{Name: "minimum-order-value"},
				},
				Action: run(func(c *cli.Context, e *env) error {
					coupon := model.CouponInput{
						Title:    c.String("title"),
						Code:     c.String("code"),
						Value:    c.Float64("value"),
						StartsAt: c.String("starts"),
						EndsAt:   c.String("ends"),
					}
					if c.IsSet("usage-limit") {
						v := c.Int("usage-limit")
						coupon.UsageLimit = &v
					}
					if c.IsSet("per-user-limit") {
						v := c.Int("per-user-limit")
						coupon.PerUserLimit = &v
					}
					if c.IsSet("minimum-order-value") {
						v := c.Float64("minimum-order-value")
						coupon.MinimumOrderValue = &v
					}

					if _, err := signedIn(c, e); err != nil {
						return err
					}
					raw, err := session.Request[json.RawMessage](c.Context, e.api, http.MethodPost, couponsPath, coupon, true)
					if err != nil {
						return err
					}
					return e.printJSON(raw)
				}),
			},
		},
	}
}

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "list orders",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: 10},
			&cli.StringFlag{Name: "status"},
			&cli.StringFlag{Name: "search"},
			&cli.StringFlag{Name: "sort-by"},
			&cli.StringFlag{Name: "sort-order", Usage: "asc or desc"},
		},
		Action: run(func(c *cli.Context, e *env) error {
			if _, err := signedIn(c, e); err != nil {
				return err
			}
			page, err := session.Request[model.OrdersPage](c.Context, e.api, http.MethodGet, ordersEndpoint(c), nil, true)
			if err != nil {
				return err
			}
			return e.printJSON(page)
		}),
	}
}

func ordersEndpoint(c *cli.Context) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(c.Int("page")))
	q.Set("pageSize", strconv.Itoa(c.Int("page-size")))
	for flag, key := range map[string]string{
		"status":     "status",
		"search":     "search",
		"sort-by":    "sortBy",
		"sort-order": "sortOrder",
	} {
		if v := c.String(flag); v != "" {
			q.Set(key, v)
		}
	}
	return ordersPath + "?" + q.Encode()
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "print the dashboard summary",
		Action: run(func(c *cli.Context, e *env) error {
			if _, err := signedIn(c, e); err != nil {
				return err
			}
			raw, err := session.Request[json.RawMessage](c.Context, e.api, http.MethodGet, summaryPath, nil, true)
			if err != nil {
				return err
			}
			return e.printJSON(raw)
		}),
	}
}

func gateCommand() *cli.Command {
	return &cli.Command{
		Name:      "gate",
		Usage:     "show what the dashboard renders for a route",
		ArgsUsage: "<route>",
		Action: run(func(c *cli.Context, e *env) error {
			route := c.Args().First()
			if route == "" {
				route = "/dashboard"
			}

			st, err := e.manager.Bootstrap(c.Context)
			if err != nil {
				return err
			}
			view := gate.Resolve(route, gate.Snapshot{
				Authenticated:   st.IsAuthenticated,
				Profile:         st.Profile,
				CompletionScore: st.CompletionScore,
				Error:           st.Err,
			})
			fmt.Fprintf(e.out, "%s: %s (profile %d%% complete)\n", route, view, st.CompletionScore.Percentage())
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored session",
		Action: run(func(c *cli.Context, e *env) error {
			return e.manager.Logout(c.Context)
		}),
	}
}
