package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Approval string

const (
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
	ApprovalPending  Approval = "pending"
)

// Status maps the zero value and unknown strings to pending.
func (a Approval) Status() Approval {
	switch a {
	case ApprovalApproved, ApprovalRejected:
		return a
	default:
		return ApprovalPending
	}
}

func (a Approval) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a.Status()))
}

// UnmarshalJSON accepts the backend's string form as well as the legacy
// boolean form (true -> approved, false -> rejected, null -> pending).
func (a *Approval) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ApprovalPending
		return nil
	case bytes.Equal(data, []byte("true")):
		*a = ApprovalApproved
		return nil
	case bytes.Equal(data, []byte("false")):
		*a = ApprovalRejected
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("approved: unsupported value %s", data)
	}
	*a = Approval(s).Status()
	return nil
}

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
)

var platforms = map[Platform]struct{}{
	PlatformInstagram: {},
	PlatformYouTube:   {},
	PlatformTikTok:    {},
	PlatformTwitter:   {},
	PlatformFacebook:  {},
	PlatformLinkedIn:  {},
}

func (p Platform) Valid() bool {
	_, ok := platforms[p]
	return ok
}

type SocialMediaHandle struct {
	Platform Platform `json:"platform"`
	Handle   string   `json:"handle"`
}

type Profile struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Email               *string             `json:"email"`
	PhoneNumber         string              `json:"phoneNumber"`
	PhoneNumberVerified bool                `json:"phoneNumberVerified"`
	Approved            Approval            `json:"approved"`
	SocialMediaHandles  []SocialMediaHandle `json:"socialMediaHandles"`
	CreatedAt           int64               `json:"createdAt"`
}

func (p *Profile) IsPending() bool {
	return p != nil && p.Approved.Status() == ApprovalPending
}

// Merge overlays the JSON fields present in patch onto a copy of p. Keys
// missing from patch keep their current value.
func (p Profile) Merge(patch json.RawMessage) (Profile, error) {
	base, err := json.Marshal(p)
	if err != nil {
		return p, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return p, err
	}

	changes := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return p, fmt.Errorf("merge profile: %w", err)
	}
	for k, v := range changes {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return p, err
	}

	var out Profile
	if err := json.Unmarshal(merged, &out); err != nil {
		return p, fmt.Errorf("merge profile: %w", err)
	}
	return out, nil
}

// ProfileUpdate carries only the fields the caller wants to change.
type ProfileUpdate struct {
	Name               *string              `json:"name,omitempty"`
	Email              *string              `json:"email,omitempty"`
	PhoneNumber        *string              `json:"phoneNumber,omitempty"`
	SocialMediaHandles *[]SocialMediaHandle `json:"socialMediaHandles,omitempty"`
}

func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.PhoneNumber == nil && u.SocialMediaHandles == nil
}
