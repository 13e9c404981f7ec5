package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dormworry/dormclient/internal/domain"
)

// Delivery room lifecycle states.
const (
	RoomStatusRecruiting = "recruiting"
	RoomStatusOrdering   = "ordering"
	RoomStatusCompleted  = "completed"
)

// DeliveryRoom is a group food-delivery order room.
type DeliveryRoom struct {
	ID                  string           `json:"id"`
	RestaurantName      string           `json:"restaurantName"`
	Category            string           `json:"category,omitempty"`
	MinOrderAmount      int              `json:"minimumOrderAmount"`
	DeliveryFee         int              `json:"deliveryFee"`
	Status              string           `json:"status"`
	CreatorID           domain.FlexID    `json:"creatorId"`
	MaxParticipants     int              `json:"maxParticipants"`
	CurrentParticipants int              `json:"currentParticipants"`
	CreatedAt           domain.Timestamp `json:"createdAt,omitzero"`
}

// RoomPage is one page of the room listing.
type RoomPage struct {
	Rooms      []DeliveryRoom `json:"rooms"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// CreateRoomRequest carries the fields a creator fills in.
type CreateRoomRequest struct {
	RestaurantName  string `json:"restaurantName"`
	Category        string `json:"category,omitempty"`
	MinOrderAmount  int    `json:"minimumOrderAmount"`
	DeliveryFee     int    `json:"deliveryFee"`
	MaxParticipants int    `json:"maxParticipants"`
}

// ListRooms fetches a page of open delivery rooms, optionally filtered by
// category.
func (c *Client) ListRooms(ctx context.Context, category string, page, limit int) (RoomPage, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result RoomPage
	if err := c.get(ctx, "/delivery-rooms", q, &result); err != nil {
		return RoomPage{}, err
	}
	return result, nil
}

// CreateRoom opens a new delivery room owned by the active user.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (DeliveryRoom, error) {
	var room DeliveryRoom
	if err := c.post(ctx, "/delivery-rooms", req, &room); err != nil {
		return DeliveryRoom{}, err
	}
	return room, nil
}

// GetRoom fetches a single room.
func (c *Client) GetRoom(ctx context.Context, roomID string) (DeliveryRoom, error) {
	var room DeliveryRoom
	if err := c.get(ctx, "/delivery-rooms/"+roomID, nil, &room); err != nil {
		return DeliveryRoom{}, err
	}
	return room, nil
}

// JoinRoom registers the active user as a participant.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return c.post(ctx, "/delivery-rooms/"+roomID+"/join", nil, nil)
}

// LeaveRoom removes the active user from the room's participant list.
// Callers treat failures as best-effort; see the chat engine.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.post(ctx, "/delivery-rooms/"+roomID+"/leave", nil, nil)
}

// RoomParticipants fetches the current participant snapshot.
func (c *Client) RoomParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	var participants []domain.Participant
	if err := c.get(ctx, "/delivery-rooms/"+roomID+"/participants", nil, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}
