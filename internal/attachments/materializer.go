// Package attachments copies attachment binaries into durable storage.
package attachments

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/dmitrijs2005/zdbackup/internal/logging"
	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/storage"
	"github.com/dustin/go-humanize"
)

// MaxFilenameLen caps the sanitized file name in bytes.
const MaxFilenameLen = 180

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)

// SanitizeFilename replaces runs of characters that are illegal on common
// filesystems with '_' and truncates the result on a rune boundary.
func SanitizeFilename(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	if len(s) <= MaxFilenameLen {
		return s
	}
	cut := MaxFilenameLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Key returns the storage key of an attachment: "<ticket>/<id>__<name>".
func Key(ticketID int64, a *models.Attachment) string {
	id := strconv.FormatInt(a.ID, 10)
	name := a.FileName
	if name == "" {
		name = "attachment_" + id
	}
	return strconv.FormatInt(ticketID, 10) + "/" + id + "__" + SanitizeFilename(name)
}

// Streamer is the streaming half of the fetcher.
type Streamer interface {
	FetchStream(ctx context.Context, rawURL string, query url.Values) (io.ReadCloser, error)
}

// Materializer downloads attachment content into a Storage.
type Materializer struct {
	enabled bool
	fetcher Streamer
	store   storage.Storage
	logger  logging.Logger
}

// NewMaterializer returns a Materializer. With enabled false (or a nil
// store) every call is a no-op.
func NewMaterializer(enabled bool, f Streamer, store storage.Storage, logger logging.Logger) *Materializer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Materializer{enabled: enabled && store != nil, fetcher: f, store: store, logger: logger}
}

// Materialize returns the location of the attachment's content, downloading
// it if needed. ok is false when downloads are off, the attachment has no
// content URL, or the transfer failed; failures are logged, never returned.
func (m *Materializer) Materialize(ctx context.Context, ticketID, commentID int64, a *models.Attachment) (string, bool) {
	if !m.enabled || a == nil || a.ContentURL == "" {
		return "", false
	}

	key := Key(ticketID, a)
	log := m.logger.With("ticket_id", ticketID, "comment_id", commentID, "attachment_id", a.ID)

	loc, ok, err := m.store.Lookup(ctx, key)
	if err != nil {
		log.Warn(ctx, "attachment lookup failed", "key", key, "error", err.Error())
		return "", false
	}
	if ok {
		log.Debug(ctx, "attachment already materialized", "location", loc)
		return loc, true
	}

	loc, n, err := m.download(ctx, key, a.ContentURL)
	if err != nil {
		log.Warn(ctx, "attachment download failed", "error", err.Error())
		return "", false
	}

	log.Debug(ctx, "attachment materialized", "location", loc, "size", humanize.Bytes(uint64(n)))
	return loc, true
}

func (m *Materializer) download(ctx context.Context, key, contentURL string) (string, int64, error) {
	body, err := m.fetcher.FetchStream(ctx, contentURL, nil)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	loc, n, err := m.store.Put(ctx, key, body)
	if err != nil {
		return "", n, fmt.Errorf("store %s: %w", key, err)
	}
	return loc, n, nil
}
