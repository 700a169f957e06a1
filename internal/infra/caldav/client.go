package caldav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"schedcore/internal/pkg/config"
	"schedcore/internal/pkg/errs"
)

const (
	contentTypeFull = "text/calendar; charset=utf-8; component=VEVENT"
	contentTypeBare = "text/calendar"
)

// SyncError reports a calendar round-trip that failed. Callers treat it as
// non-fatal: the booking survives, only its sync state degrades.
type SyncError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("caldav %s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("caldav %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Client talks WebDAV/CalDAV to one calendar server. The collection URL is a
// template expanded per staff member.
type Client struct {
	collectionURL string
	username      string
	password      string
	http          *http.Client
	logger        *slog.Logger
}

func NewClient(cfg config.CalDAVConfig, logger *slog.Logger) *Client {
	return &Client{
		collectionURL: strings.TrimRight(cfg.CollectionURL, "/"),
		username:      cfg.Username,
		password:      cfg.Password,
		http:          &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}
}

func (c *Client) objectURL(staffID int64, uid string) string {
	collection := c.collectionURL
	if strings.Contains(collection, "%d") {
		collection = fmt.Sprintf(collection, staffID)
	}
	return collection + "/" + ObjectPath(uid)
}

// redactURL strips userinfo and query from a URL before it reaches logs or
// error messages.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SyncError{Op: req.Method, URL: redactURL(req.URL.String()), Err: errs.Wrap(err, "calendar server unreachable")}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// PutEvent uploads the event under its UID and returns the ETag the server
// assigned, when it reports one. A fresh object is guarded with
// If-None-Match so a concurrent writer cannot be silently overwritten.
//
// Two downgrade retries cover common server quirks: a 415 response retries
// with a bare text/calendar content type, and a 412 retries without the
// precondition header (the object already exists under this UID, which for
// our minted UIDs means an earlier attempt of the same write landed).
func (c *Client) PutEvent(ctx context.Context, staffID int64, ev Event) (string, error) {
	target := c.objectURL(staffID, ev.UID)
	body := ev.Render()

	contentType := contentTypeFull
	resp, err := c.putOnce(ctx, target, body, contentType, true)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusUnsupportedMediaType {
		drain(resp)
		contentType = contentTypeBare
		resp, err = c.putOnce(ctx, target, body, contentType, true)
		if err != nil {
			return "", err
		}
	}
	if resp.StatusCode == http.StatusPreconditionFailed {
		drain(resp)
		// Keep whichever content type the server last accepted, so a server
		// with both quirks still converges.
		resp, err = c.putOnce(ctx, target, body, contentType, false)
		if err != nil {
			return "", err
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SyncError{Op: "PUT", URL: redactURL(target), StatusCode: resp.StatusCode}
	}
	etag := resp.Header.Get("ETag")
	c.logger.Debug("calendar event stored",
		slog.String("uid", ev.UID),
		slog.Int64("staff_id", staffID),
		slog.Int("status", resp.StatusCode))
	return etag, nil
}

func (c *Client) putOnce(ctx context.Context, target, body, contentType string, guard bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewBufferString(body))
	if err != nil {
		return nil, errs.Wrap(err, "build calendar request")
	}
	req.Header.Set("Content-Type", contentType)
	if guard {
		req.Header.Set("If-None-Match", "*")
	}
	return c.do(req)
}

// DeleteEvent removes the object for a UID. A 404 counts as success: the
// object is gone either way, and cancel must stay idempotent.
func (c *Client) DeleteEvent(ctx context.Context, staffID int64, uid string) error {
	target := c.objectURL(staffID, uid)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return errs.Wrap(err, "build calendar request")
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SyncError{Op: "DELETE", URL: redactURL(target), StatusCode: resp.StatusCode}
	}
	return nil
}

const probeBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:"><d:prop><d:resourcetype/></d:prop></d:propfind>`

// ProbeCollection issues a depth-0 PROPFIND against a staff collection to
// verify that it exists and credentials work.
func (c *Client) ProbeCollection(ctx context.Context, staffID int64) error {
	collection := c.collectionURL
	if strings.Contains(collection, "%d") {
		collection = fmt.Sprintf(collection, staffID)
	}
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", collection+"/", strings.NewReader(probeBody))
	if err != nil {
		return errs.Wrap(err, "build calendar request")
	}
	req.Header.Set("Depth", "0")
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SyncError{Op: "PROPFIND", URL: redactURL(collection), StatusCode: resp.StatusCode}
	}
	return nil
}
