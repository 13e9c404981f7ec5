package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dormworry/dormclient/internal/domain"
)

// Letter is one anonymous letter in an exchange thread.
type Letter struct {
	ID          string           `json:"id"`
	ThreadID    string           `json:"threadId,omitempty"`
	SenderID    domain.FlexID    `json:"senderId,omitempty"`
	RecipientID domain.FlexID    `json:"recipientId"`
	Title       string           `json:"title,omitempty"`
	Content     string           `json:"content"`
	IsRead      bool             `json:"isRead"`
	CreatedAt   domain.Timestamp `json:"createdAt,omitzero"`
}

// LetterPage is one page of a mailbox listing.
type LetterPage struct {
	Letters    []Letter `json:"letters"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
}

type sendLetterRequest struct {
	RecipientID string `json:"recipientId"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
}

// ListLetters fetches a page of the active user's mailbox. box is
// "received" or "sent".
func (c *Client) ListLetters(ctx context.Context, box string, page, limit int) (LetterPage, error) {
	q := url.Values{}
	if box != "" {
		q.Set("box", box)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result LetterPage
	if err := c.get(ctx, "/letters", q, &result); err != nil {
		return LetterPage{}, err
	}
	return result, nil
}

// SendLetter delivers an anonymous letter to another user.
func (c *Client) SendLetter(ctx context.Context, recipientID, title, content string) (Letter, error) {
	var letter Letter
	req := sendLetterRequest{RecipientID: recipientID, Title: title, Content: content}
	if err := c.post(ctx, "/letters", req, &letter); err != nil {
		return Letter{}, err
	}
	return letter, nil
}

// MarkLetterRead flags a received letter as read.
func (c *Client) MarkLetterRead(ctx context.Context, letterID string) error {
	return c.post(ctx, "/letters/"+letterID+"/read", nil, nil)
}
