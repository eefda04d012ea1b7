package models

import "encoding/json"

// View is a saved ticket list definition.
type View struct {
	record
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Active      bool            `json:"active"`
	Position    *int64          `json:"position"`
	Default     bool            `json:"default"`
	Restriction json.RawMessage `json:"restriction"`
	Execution   json.RawMessage `json:"execution"`
	Conditions  json.RawMessage `json:"conditions"`
	CreatedAt   Timestamp       `json:"created_at"`
	UpdatedAt   Timestamp       `json:"updated_at"`
}

func (v *View) Resource() Resource    { return ResourceViews }
func (v *View) EntityID() string      { return idString(v.ID) }
func (v *View) ObservedAt() Timestamp { return v.UpdatedAt }

// Trigger is a business rule run on ticket create/update.
type Trigger struct {
	record
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Active      bool            `json:"active"`
	Position    *int64          `json:"position"`
	CategoryID  FlexID          `json:"category_id"`
	RawTitle    *string         `json:"raw_title"`
	Default     bool            `json:"default"`
	Conditions  json.RawMessage `json:"conditions"`
	Actions     json.RawMessage `json:"actions"`
	CreatedAt   Timestamp       `json:"created_at"`
	UpdatedAt   Timestamp       `json:"updated_at"`
}

func (t *Trigger) Resource() Resource    { return ResourceTriggers }
func (t *Trigger) EntityID() string      { return idString(t.ID) }
func (t *Trigger) ObservedAt() Timestamp { return t.UpdatedAt }

// TriggerCategory groups triggers. Its id is a string upstream.
type TriggerCategory struct {
	record
	ID        FlexID    `json:"id"`
	Name      string    `json:"name"`
	Position  *int64    `json:"position"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

func (c *TriggerCategory) Resource() Resource    { return ResourceTriggerCategories }
func (c *TriggerCategory) EntityID() string      { return string(c.ID) }
func (c *TriggerCategory) ObservedAt() Timestamp { return c.UpdatedAt }

// Macro is a canned set of ticket actions.
type Macro struct {
	record
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Active      bool            `json:"active"`
	Position    *int64          `json:"position"`
	Default     bool            `json:"default"`
	Restriction json.RawMessage `json:"restriction"`
	Actions     json.RawMessage `json:"actions"`
	CreatedAt   Timestamp       `json:"created_at"`
	UpdatedAt   Timestamp       `json:"updated_at"`
}

func (m *Macro) Resource() Resource    { return ResourceMacros }
func (m *Macro) EntityID() string      { return idString(m.ID) }
func (m *Macro) ObservedAt() Timestamp { return m.UpdatedAt }
