package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dormworry/dormclient/internal/domain"
)

// RoommateProfile is a matching-quiz profile published to the roommate
// board.
type RoommateProfile struct {
	ID                string           `json:"id"`
	UserID            domain.FlexID    `json:"userId"`
	PersonalityTypeID int              `json:"myPersonalityTypeId"`
	PreferredTypeID   int              `json:"preferredPersonalityTypeId"`
	Introduction      string           `json:"introduction,omitempty"`
	KakaoTalkID       string           `json:"kakaoTalkId,omitempty"`
	Dormitory         string           `json:"dormitory,omitempty"`
	CreatedAt         domain.Timestamp `json:"createdAt,omitzero"`
}

// RoommatePage is one page of the roommate board.
type RoommatePage struct {
	Profiles   []RoommateProfile `json:"profiles"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// ListRoommateProfiles fetches a page of profiles, optionally filtered by
// the poster's personality type.
func (c *Client) ListRoommateProfiles(ctx context.Context, personalityTypeID, page, limit int) (RoommatePage, error) {
	q := url.Values{}
	if personalityTypeID > 0 {
		q.Set("myPersonalityTypeId", strconv.Itoa(personalityTypeID))
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result RoommatePage
	if err := c.get(ctx, "/roommate-profiles", q, &result); err != nil {
		return RoommatePage{}, err
	}
	return result, nil
}

// PublishRoommateProfile posts the active user's quiz result to the board.
func (c *Client) PublishRoommateProfile(ctx context.Context, profile RoommateProfile) (RoommateProfile, error) {
	var created RoommateProfile
	if err := c.post(ctx, "/roommate-profiles", profile, &created); err != nil {
		return RoommateProfile{}, err
	}
	return created, nil
}
