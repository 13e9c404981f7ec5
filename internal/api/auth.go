package api

import (
	"context"
	"fmt"

	"github.com/dormworry/dormclient/internal/domain"
	"github.com/dormworry/dormclient/internal/session"
)

// UserProfile is the backend's view of the logged-in user.
type UserProfile struct {
	ID        domain.FlexID    `json:"id"`
	Nickname  string           `json:"nickname"`
	Email     string           `json:"email,omitempty"`
	Dormitory string           `json:"dormitory,omitempty"`
	RoomNo    string           `json:"roomNumber,omitempty"`
	CreatedAt domain.Timestamp `json:"createdAt,omitzero"`
}

type kakaoExchangeRequest struct {
	Code string `json:"code"`
}

type kakaoExchangeResponse struct {
	AccessToken string      `json:"accessToken"`
	User        UserProfile `json:"user"`
}

// ExchangeKakaoCode swaps a Kakao authorization code for a backend-issued
// bearer token. Implements session.Exchanger.
func (c *Client) ExchangeKakaoCode(ctx context.Context, code string) (session.Credentials, error) {
	var resp kakaoExchangeResponse
	if err := c.post(ctx, "/auth/kakao", kakaoExchangeRequest{Code: code}, &resp); err != nil {
		return session.Credentials{}, err
	}
	if resp.AccessToken == "" {
		return session.Credentials{}, fmt.Errorf("auth/kakao: empty access token")
	}
	return session.Credentials{
		Token:    resp.AccessToken,
		UserID:   resp.User.ID.String(),
		Nickname: resp.User.Nickname,
	}, nil
}

// Me fetches the active user's profile.
func (c *Client) Me(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	if err := c.get(ctx, "/auth/me", nil, &profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// UpdateProfile submits profile fields collected after first login.
func (c *Client) UpdateProfile(ctx context.Context, profile UserProfile) (UserProfile, error) {
	var updated UserProfile
	if err := c.post(ctx, "/auth/profile", profile, &updated); err != nil {
		return UserProfile{}, err
	}
	return updated, nil
}
