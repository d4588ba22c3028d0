package model

import (
	"encoding/json"
	"math"
)

// Tokens is the persisted credential pair. An empty string means the token
// is absent.
type Tokens struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

func (t Tokens) Empty() bool {
	return t.IDToken == "" && t.RefreshToken == ""
}

type CompletionScore struct {
	Completed      []string `json:"completed"`
	Left           []string `json:"left"`
	CompletedCount int      `json:"completedCount"`
	LeftCount      int      `json:"leftCount"`
}

// Percentage is round(100*completed/total), 0 when nothing is tracked.
func (s *CompletionScore) Percentage() int {
	if s == nil {
		return 0
	}
	total := s.CompletedCount + s.LeftCount
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.CompletedCount) / float64(total)))
}

func (s *CompletionScore) Consistent() bool {
	return s != nil && s.CompletedCount == len(s.Completed) && s.LeftCount == len(s.Left)
}

// VerifiedCreator is the verify-OTP payload: profile fields merged with the
// issued tokens and the completion score.
type VerifiedCreator struct {
	Profile
	IDToken         string           `json:"idToken"`
	RefreshToken    string           `json:"refreshToken"`
	CompletionScore *CompletionScore `json:"completionScore"`
}

func (v *VerifiedCreator) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &v.Profile); err != nil {
		return err
	}
	var extra struct {
		IDToken         string           `json:"idToken"`
		RefreshToken    string           `json:"refreshToken"`
		CompletionScore *CompletionScore `json:"completionScore"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	v.IDToken = extra.IDToken
	v.RefreshToken = extra.RefreshToken
	v.CompletionScore = extra.CompletionScore
	return nil
}

func (v VerifiedCreator) Tokens() Tokens {
	return Tokens{IDToken: v.IDToken, RefreshToken: v.RefreshToken}
}

// CreatorWithScore is the get-profile payload.
type CreatorWithScore struct {
	Profile
	CompletionScore *CompletionScore `json:"completionScore"`
}

func (c *CreatorWithScore) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &c.Profile); err != nil {
		return err
	}
	var extra struct {
		CompletionScore *CompletionScore `json:"completionScore"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	c.CompletionScore = extra.CompletionScore
	return nil
}

type VerifyOTPResponse struct {
	Verified VerifiedCreator `json:"verified"`
}

type ProfileResponse struct {
	Creator CreatorWithScore `json:"creator"`
}

type CreateProfileResponse struct {
	Profile Profile `json:"profile"`
}

type UpdateProfileResponse struct {
	Profile json.RawMessage `json:"profile"`
}

type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RefreshTokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}
