package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// option ties one setting to its config-file key, environment variable and flag.
type option struct {
	key   string
	env   string
	flag  string
	usage string
	def   any
	set   func(c *Config, v *viper.Viper, key string)
}

func str(dst func(*Config) *string) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, k string) { *dst(c) = v.GetString(k) }
}

func integer(dst func(*Config) *int) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, k string) { *dst(c) = v.GetInt(k) }
}

func boolean(dst func(*Config) *bool) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, k string) { *dst(c) = v.GetBool(k) }
}

func duration(dst func(*Config) *time.Duration) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, k string) { *dst(c) = v.GetDuration(k) }
}

// seconds reads a (fractional) number of seconds, e.g. "1.5".
func seconds(dst func(*Config) *time.Duration) func(*Config, *viper.Viper, string) {
	return func(c *Config, v *viper.Viper, k string) {
		*dst(c) = time.Duration(v.GetFloat64(k) * float64(time.Second))
	}
}

func options(d *Config) []option {
	return []option{
		{"subdomain", "ZENDESK_SUBDOMAIN", "subdomain", "helpdesk subdomain", d.Subdomain, str(func(c *Config) *string { return &c.Subdomain })},
		{"base_url", "ZENDESK_BASE_URL", "base-url", "API root URL (overrides subdomain)", d.BaseURL, str(func(c *Config) *string { return &c.BaseURL })},
		{"email", "ZENDESK_EMAIL", "email", "agent email for token auth", d.Email, str(func(c *Config) *string { return &c.Email })},
		{"api_token", "ZENDESK_API_TOKEN", "api-token", "API token", d.APIToken, str(func(c *Config) *string { return &c.APIToken })},
		{"oauth_token", "ZENDESK_OAUTH_TOKEN", "oauth-token", "OAuth bearer token (overrides email/api token)", d.OAuthToken, str(func(c *Config) *string { return &c.OAuthToken })},
		{"timeout", "ZENDESK_TIMEOUT", "timeout", "per-request timeout", d.Timeout, duration(func(c *Config) *time.Duration { return &c.Timeout })},

		{"per_page", "ZENDESK_PER_PAGE", "per-page", "page size for incremental exports", d.PerPage, integer(func(c *Config) *int { return &c.PerPage })},
		{"include", "ZENDESK_INCLUDE", "include", "side-loads requested with tickets, views and macros", d.Include, str(func(c *Config) *string { return &c.Include })},
		{"exclude_deleted", "ZENDESK_EXCLUDE_DELETED", "exclude-deleted", "skip deleted tickets", d.ExcludeDeleted, boolean(func(c *Config) *bool { return &c.ExcludeDeleted })},
		{"bootstrap_hours", "ZENDESK_BOOTSTRAP_START_HOURS", "bootstrap-hours", "lookback for resources without a checkpoint", d.BootstrapHours, integer(func(c *Config) *int { return &c.BootstrapHours })},

		{"closed_tickets_only", "CLOSED_TICKETS_ONLY", "closed-only", "mirror closed tickets only", d.ClosedTicketsOnly, boolean(func(c *Config) *bool { return &c.ClosedTicketsOnly })},
		{"use_ticket_events_for_comments", "USE_TICKET_EVENTS_FOR_COMMENTS", "ticket-events", "source comments from the ticket events feed", d.UseTicketEventsForComments, boolean(func(c *Config) *bool { return &c.UseTicketEventsForComments })},
		{"prune_reopened", "PRUNE_REOPENED_FROM_DB", "prune-reopened", "delete mirrored tickets that are no longer closed", d.PruneReopened, boolean(func(c *Config) *bool { return &c.PruneReopened })},

		{"org_per_page", "ORG_PER_PAGE", "org-per-page", "page size for organizations", d.OrgPerPage, integer(func(c *Config) *int { return &c.OrgPerPage })},
		{"org_page_delay_secs", "ORG_PAGE_DELAY_SECS", "org-page-delay", "seconds to wait between organization pages", d.OrgPageDelay.Seconds(), seconds(func(c *Config) *time.Duration { return &c.OrgPageDelay })},
		{"skip_organizations", "SKIP_ORGANIZATIONS", "skip-organizations", "do not sync organizations", d.SkipOrganizations, boolean(func(c *Config) *bool { return &c.SkipOrganizations })},

		{"download_attachments", "DOWNLOAD_ATTACHMENTS", "download-attachments", "materialize attachment binaries", d.DownloadAttachments, boolean(func(c *Config) *bool { return &c.DownloadAttachments })},
		{"attachments_backend", "ATTACHMENTS_BACKEND", "attachments-backend", "attachment storage: fs or s3", d.AttachmentsBackend, str(func(c *Config) *string { return &c.AttachmentsBackend })},
		{"attachments_dir", "ATTACHMENTS_DIR", "attachments-dir", "attachment root directory (fs backend)", d.AttachmentsDir, str(func(c *Config) *string { return &c.AttachmentsDir })},
		{"s3_bucket", "S3_BUCKET", "s3-bucket", "attachment bucket (s3 backend)", d.S3Bucket, str(func(c *Config) *string { return &c.S3Bucket })},
		{"s3_prefix", "S3_PREFIX", "s3-prefix", "key prefix inside the bucket", d.S3Prefix, str(func(c *Config) *string { return &c.S3Prefix })},
		{"s3_region", "S3_REGION", "s3-region", "bucket region", d.S3Region, str(func(c *Config) *string { return &c.S3Region })},
		{"s3_endpoint", "S3_ENDPOINT", "s3-endpoint", "S3-compatible endpoint URL", d.S3Endpoint, str(func(c *Config) *string { return &c.S3Endpoint })},
		{"s3_access_key_id", "S3_ACCESS_KEY_ID", "s3-access-key-id", "static access key (default chain when empty)", d.S3AccessKeyID, str(func(c *Config) *string { return &c.S3AccessKeyID })},
		{"s3_secret_access_key", "S3_SECRET_ACCESS_KEY", "s3-secret-access-key", "static secret key", d.S3SecretAccessKey, str(func(c *Config) *string { return &c.S3SecretAccessKey })},
		{"s3_use_path_style", "S3_USE_PATH_STYLE", "s3-path-style", "use path-style bucket addressing", d.S3UsePathStyle, boolean(func(c *Config) *bool { return &c.S3UsePathStyle })},

		{"database_dsn", "DATABASE_DSN", "dsn", "postgres://... or sqlite://path", d.DatabaseDSN, str(func(c *Config) *string { return &c.DatabaseDSN })},

		{"trigger_addr", "TRIGGER_ADDR", "addr", "HTTP trigger listen address", d.TriggerAddr, str(func(c *Config) *string { return &c.TriggerAddr })},
		{"trigger_secret", "TRIGGER_SECRET", "trigger-secret", "HMAC secret for trigger tokens", d.TriggerSecret, str(func(c *Config) *string { return &c.TriggerSecret })},
		{"trigger_token_ttl", "TRIGGER_TOKEN_TTL", "token-ttl", "validity of minted trigger tokens", d.TriggerTokenTTL, duration(func(c *Config) *time.Duration { return &c.TriggerTokenTTL })},
		{"trigger_disable_downloads", "TRIGGER_DISABLE_DOWNLOADS", "trigger-disable-downloads", "force attachment downloads off for triggered runs", d.TriggerDisableDownloads, boolean(func(c *Config) *bool { return &c.TriggerDisableDownloads })},

		{"log_level", "LOG_LEVEL", "log-level", "debug, info, warn or error", d.LogLevel, str(func(c *Config) *string { return &c.LogLevel })},
		{"log_file", "LOG_FILE", "log-file", "rotating log file (stdout when empty)", d.LogFile, str(func(c *Config) *string { return &c.LogFile })},
	}
}

// ConfigFlag is the flag naming an optional JSON config file.
const ConfigFlag = "config"

// RegisterFlags adds every setting as a flag on fs, with defaults shown in help.
func RegisterFlags(fs *pflag.FlagSet) {
	d := &Config{}
	d.LoadDefaults()

	fs.StringP(ConfigFlag, "c", "", "path to a JSON config file")
	for _, o := range options(d) {
		switch def := o.def.(type) {
		case string:
			fs.String(o.flag, def, o.usage+" ["+o.env+"]")
		case int:
			fs.Int(o.flag, def, o.usage+" ["+o.env+"]")
		case bool:
			fs.Bool(o.flag, def, o.usage+" ["+o.env+"]")
		case float64:
			fs.Float64(o.flag, def, o.usage+" ["+o.env+"]")
		case time.Duration:
			fs.Duration(o.flag, def, o.usage+" ["+o.env+"]")
		}
	}
}

// Load builds a Config from defaults, the JSON file named by --config,
// the environment and the flags in fs, in that order of precedence.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	d := &Config{}
	d.LoadDefaults()

	v := viper.New()
	opts := options(d)
	for _, o := range opts {
		v.SetDefault(o.key, o.def)
		if err := v.BindEnv(o.key, o.env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", o.env, err)
		}
		if fs == nil {
			continue
		}
		if f := fs.Lookup(o.flag); f != nil {
			if err := v.BindPFlag(o.key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", o.flag, err)
			}
		}
	}

	if fs != nil {
		if file, _ := fs.GetString(ConfigFlag); file != "" {
			v.SetConfigFile(file)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", file, err)
			}
		}
	}

	cfg := &Config{}
	for _, o := range opts {
		o.set(cfg, v, o.key)
	}
	return cfg, nil
}
