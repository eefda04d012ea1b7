// Package config handles zdbackup configuration: defaults, an optional JSON
// file, environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/zdbackup/internal/common"
)

// Config holds runtime settings for one sync process. It is built once and
// treated as immutable afterwards.
type Config struct {
	// Remote API.
	Subdomain  string
	BaseURL    string
	Email      string
	APIToken   string
	OAuthToken string
	Timeout    time.Duration

	// Incremental export tuning.
	PerPage        int
	Include        string
	ExcludeDeleted bool
	BootstrapHours int

	// Ticket scope.
	ClosedTicketsOnly          bool
	UseTicketEventsForComments bool
	PruneReopened              bool

	// Organizations.
	OrgPerPage        int
	OrgPageDelay      time.Duration
	SkipOrganizations bool

	// Attachments.
	DownloadAttachments bool
	AttachmentsBackend  string
	AttachmentsDir      string
	S3Bucket            string
	S3Prefix            string
	S3Region            string
	S3Endpoint          string
	S3AccessKeyID       string
	S3SecretAccessKey   string
	S3UsePathStyle      bool

	// Store.
	DatabaseDSN string

	// HTTP trigger.
	TriggerAddr             string
	TriggerSecret           string
	TriggerTokenTTL         time.Duration
	TriggerDisableDownloads bool

	// Logging.
	LogLevel string
	LogFile  string
}

// LoadDefaults populates Config with the defaults of a local installation.
func (c *Config) LoadDefaults() {
	c.Timeout = 120 * time.Second
	c.PerPage = 500
	c.BootstrapHours = 24
	c.OrgPerPage = 100
	c.OrgPageDelay = 1500 * time.Millisecond
	c.DownloadAttachments = true
	c.AttachmentsBackend = BackendFS
	c.AttachmentsDir = "./attachments"
	c.DatabaseDSN = "sqlite://zendesk_backup.db"
	c.TriggerAddr = ":8080"
	c.TriggerTokenTTL = 24 * time.Hour
	c.TriggerDisableDownloads = true
	c.LogLevel = "info"
}

const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// APIBase returns the API root URL without a trailing slash.
func (c *Config) APIBase() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.zendesk.com", c.Subdomain)
}

// Bootstrap returns the lookback window used when a resource has no checkpoint.
func (c *Config) Bootstrap() time.Duration {
	return time.Duration(c.BootstrapHours) * time.Hour
}

// Validate reports the first setting that makes a sync impossible.
func (c *Config) Validate() error {
	if c.Subdomain == "" && c.BaseURL == "" {
		return fmt.Errorf("subdomain or base url: %w", common.ErrMissingCredentials)
	}
	if c.OAuthToken == "" && (c.Email == "" || c.APIToken == "") {
		return fmt.Errorf("email and api token, or oauth token: %w", common.ErrMissingCredentials)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.PerPage <= 0 || c.OrgPerPage <= 0 {
		return fmt.Errorf("page sizes must be positive (per_page=%d, org_per_page=%d)", c.PerPage, c.OrgPerPage)
	}
	if c.BootstrapHours < 0 {
		return fmt.Errorf("bootstrap hours must not be negative")
	}
	switch c.AttachmentsBackend {
	case BackendFS:
	case BackendS3:
		if c.DownloadAttachments && c.S3Bucket == "" {
			return fmt.Errorf("s3 attachments backend needs a bucket")
		}
	default:
		return fmt.Errorf("unknown attachments backend %q", c.AttachmentsBackend)
	}
	return nil
}
