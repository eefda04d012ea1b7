// Package models holds the entity shapes mirrored from the helpdesk API.
//
// Each resource has one record type (User, Organization, Ticket, Comment,
// Attachment, View, Trigger, TriggerCategory, Macro). Records carry their
// typed columns plus the verbatim JSON they were decoded from, so unknown
// fields survive into the raw snapshot table even when the typed projection
// ignores them.
package models
