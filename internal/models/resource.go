package models

// Resource names an entity family. It is the key of sync checkpoints and
// the first half of the raw snapshot primary key.
type Resource string

const (
	ResourceUsers             Resource = "users"
	ResourceOrganizations     Resource = "organizations"
	ResourceTickets           Resource = "tickets"
	ResourceTicketEvents      Resource = "ticket_events"
	ResourceComments          Resource = "comments"
	ResourceAttachments       Resource = "attachments"
	ResourceViews             Resource = "views"
	ResourceTriggers          Resource = "triggers"
	ResourceTriggerCategories Resource = "trigger_categories"
	ResourceMacros            Resource = "macros"
)

func (r Resource) String() string { return string(r) }
