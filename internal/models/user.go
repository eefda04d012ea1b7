package models

import "encoding/json"

// User is a helpdesk end user or agent.
type User struct {
	record
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Email          *string         `json:"email"`
	Role           string          `json:"role"`
	RoleType       *int64          `json:"role_type"`
	Active         bool            `json:"active"`
	Suspended      bool            `json:"suspended"`
	OrganizationID *int64          `json:"organization_id"`
	Phone          *string         `json:"phone"`
	Locale         *string         `json:"locale"`
	TimeZone       *string         `json:"time_zone"`
	CreatedAt      Timestamp       `json:"created_at"`
	UpdatedAt      Timestamp       `json:"updated_at"`
	LastLoginAt    Timestamp       `json:"last_login_at"`
	Tags           json.RawMessage `json:"tags"`
	UserFields     json.RawMessage `json:"user_fields"`
	Photo          json.RawMessage `json:"photo"`
}

func (u *User) Resource() Resource    { return ResourceUsers }
func (u *User) EntityID() string      { return idString(u.ID) }
func (u *User) ObservedAt() Timestamp { return u.UpdatedAt }

// Organization groups users and tickets.
type Organization struct {
	record
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	ExternalID         *string         `json:"external_id"`
	GroupID            *int64          `json:"group_id"`
	Details            *string         `json:"details"`
	Notes              *string         `json:"notes"`
	SharedTickets      bool            `json:"shared_tickets"`
	SharedComments     bool            `json:"shared_comments"`
	DomainNames        json.RawMessage `json:"domain_names"`
	Tags               json.RawMessage `json:"tags"`
	OrganizationFields json.RawMessage `json:"organization_fields"`
	CreatedAt          Timestamp       `json:"created_at"`
	UpdatedAt          Timestamp       `json:"updated_at"`
}

func (o *Organization) Resource() Resource    { return ResourceOrganizations }
func (o *Organization) EntityID() string      { return idString(o.ID) }
func (o *Organization) ObservedAt() Timestamp { return o.UpdatedAt }
