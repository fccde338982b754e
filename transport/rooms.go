package transport

import (
	"context"
	"fmt"
	"time"
)

// Room describes one conversation room on the backend.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ListRooms returns the rooms visible to the authenticated user.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.Get(ctx, "/api/v1/rooms", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room with the given name.
func (c *Client) CreateRoom(ctx context.Context, name string) (Room, error) {
	var room Room
	err := c.Post(ctx, "/api/v1/rooms", map[string]string{"name": name}, &room)
	return room, err
}

// DeleteRoom removes a room.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.Delete(ctx, fmt.Sprintf("/api/v1/rooms/%s", roomID))
}
