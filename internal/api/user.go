package api

import (
	"context"
	"net/http"
)

// ProfileUpdate carries the profile fields to change; nil fields are
// left untouched server-side.
type ProfileUpdate struct {
	Goals        []string      `json:"goals,omitempty"`
	Themes       []string      `json:"themes,omitempty"`
	VoiceProfile *VoiceProfile `json:"voice_profile,omitempty"`
	Preferences  *Preferences  `json:"preferences,omitempty"`
}

type voiceAnalysisRequest struct {
	Samples []string `json:"samples"`
}

// Profile fetches the user profile; the backend creates a default
// profile on first access.
func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "user/profile", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial profile update and returns the
// resulting profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodPut, "user/profile", nil, update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AnalyzeVoice submits writing samples for voice-profile analysis.
func (c *Client) AnalyzeVoice(ctx context.Context, samples []string) (*VoiceAnalysis, error) {
	var analysis VoiceAnalysis
	if err := c.do(ctx, http.MethodPost, "user/voice/analyze", nil, voiceAnalysisRequest{Samples: samples}, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}
