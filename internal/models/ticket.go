package models

import (
	"encoding/json"
	"strings"
)

// Ticket is a support request. Requester, assignee and organization are
// plain id references; nothing enforces them referentially.
type Ticket struct {
	record
	ID             int64     `json:"id"`
	Subject        *string   `json:"subject"`
	Description    *string   `json:"description"`
	Status         string    `json:"status"`
	Priority       *string   `json:"priority"`
	Type           *string   `json:"type"`
	RequesterID    *int64    `json:"requester_id"`
	AssigneeID     *int64    `json:"assignee_id"`
	OrganizationID *int64    `json:"organization_id"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`
	DueAt          Timestamp `json:"due_at"`
}

func (t *Ticket) Resource() Resource    { return ResourceTickets }
func (t *Ticket) EntityID() string      { return idString(t.ID) }
func (t *Ticket) ObservedAt() Timestamp { return t.UpdatedAt }

// IsClosed reports whether the ticket status is "closed", case-insensitively.
func (t *Ticket) IsClosed() bool {
	return strings.EqualFold(strings.TrimSpace(t.Status), "closed")
}

// Comment belongs to a ticket. TicketID is not part of the API payload and
// is set by the coordinator that fetched it.
type Comment struct {
	record
	ID          int64        `json:"id"`
	TicketID    int64        `json:"-"`
	AuthorID    *int64       `json:"author_id"`
	Public      bool         `json:"public"`
	Body        *string      `json:"body"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at"`
	Attachments []Attachment `json:"attachments"`
}

func (c *Comment) Resource() Resource { return ResourceComments }
func (c *Comment) EntityID() string   { return idString(c.ID) }

// ObservedAt falls back to created_at: comments are immutable upstream and
// usually carry no updated_at.
func (c *Comment) ObservedAt() Timestamp { return c.UpdatedAt.Or(c.CreatedAt) }

// Attachment is a file attached to a comment. TicketID, CommentID and
// LocalPath are filled in locally.
type Attachment struct {
	record
	ID          int64           `json:"id"`
	TicketID    int64           `json:"-"`
	CommentID   int64           `json:"-"`
	FileName    string          `json:"file_name"`
	ContentURL  string          `json:"content_url"`
	ContentType *string         `json:"content_type"`
	Size        *int64          `json:"size"`
	Thumbnails  json.RawMessage `json:"thumbnails"`
	CreatedAt   Timestamp       `json:"created_at"`
	LocalPath   *string         `json:"-"`
}

func (a *Attachment) Resource() Resource    { return ResourceAttachments }
func (a *Attachment) EntityID() string      { return idString(a.ID) }
func (a *Attachment) ObservedAt() Timestamp { return a.CreatedAt }

// UnmarshalJSON keeps the raw bytes of attachments nested inside comments
// and ticket events, which are never decoded on their own.
func (a *Attachment) UnmarshalJSON(b []byte) error {
	type plain Attachment
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Attachment(p)
	a.setRaw(b)
	return nil
}

// TicketEvent is one entry of the incremental ticket events feed.
type TicketEvent struct {
	record
	ID          int64        `json:"id"`
	TicketID    int64        `json:"ticket_id"`
	CreatedAt   Timestamp    `json:"created_at"`
	ChildEvents []ChildEvent `json:"child_events"`
}

// ChildEvent is a change inside a ticket event; only comment events are mirrored.
type ChildEvent struct {
	ID          int64        `json:"id"`
	EventType   string       `json:"event_type"`
	Type        string       `json:"type"`
	AuthorID    *int64       `json:"author_id"`
	Public      bool         `json:"public"`
	Body        *string      `json:"body"`
	CreatedAt   Timestamp    `json:"created_at"`
	Attachments []Attachment `json:"attachments"`
}

// IsComment reports whether the child event is a comment.
func (e ChildEvent) IsComment() bool {
	kind := e.EventType
	if kind == "" {
		kind = e.Type
	}
	return kind == "Comment"
}

// Comments synthesizes the comment records carried by the event's child
// events. The synthesized payload mirrors the shape of the comments endpoint.
func (ev *TicketEvent) Comments() ([]*Comment, error) {
	var out []*Comment
	for _, ce := range ev.ChildEvents {
		if !ce.IsComment() {
			continue
		}
		created := ce.CreatedAt.Or(ev.CreatedAt)
		attachments := ce.Attachments
		if attachments == nil {
			attachments = []Attachment{}
		}

		c := &Comment{
			ID:          ce.ID,
			TicketID:    ev.TicketID,
			AuthorID:    ce.AuthorID,
			Public:      ce.Public,
			Body:        ce.Body,
			CreatedAt:   created,
			UpdatedAt:   created,
			Attachments: attachments,
		}

		payload, err := json.Marshal(map[string]any{
			"id":          c.ID,
			"author_id":   c.AuthorID,
			"public":      c.Public,
			"body":        c.Body,
			"created_at":  c.CreatedAt,
			"updated_at":  c.UpdatedAt,
			"attachments": rawAttachments(attachments),
		})
		if err != nil {
			return nil, err
		}
		c.setRaw(payload)
		out = append(out, c)
	}
	return out, nil
}

func rawAttachments(as []Attachment) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(as))
	for i := range as {
		out = append(out, as[i].Payload())
	}
	return out
}
