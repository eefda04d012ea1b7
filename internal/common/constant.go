package common

// UserAgent is sent on every request to the remote API.
const UserAgent = "zdbackup/1.0 (+go)"

// ClosedStatus is the only ticket status kept when closed-only filtering is on.
const ClosedStatus = "closed"
