//go:build unit

package caldav

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schedcore/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	cfg := config.CalDAVConfig{
		CollectionURL: serverURL + "/cal/staff-%d",
		Username:      "sync",
		Password:      "secret",
		Timeout:       2 * time.Second,
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testEvent(uid string) Event {
	return Event{
		UID:     uid,
		Summary: "Deep Tissue Massage",
		Start:   time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 9, 14, 11, 0, 0, 0, time.UTC),
		Created: time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC),
	}
}

func TestPutEventSendsGuardedVEvent(t *testing.T) {
	var gotPath, gotContentType, gotPrecondition, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotPrecondition = r.Header.Get("If-None-Match")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	etag, err := newTestClient(srv.URL).PutEvent(context.Background(), 7, testEvent("tdbkg-abc"))
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, etag)
	assert.Equal(t, "/cal/staff-7/tdbkg-abc.ics", gotPath)
	assert.Equal(t, "text/calendar; charset=utf-8; component=VEVENT", gotContentType)
	assert.Equal(t, "*", gotPrecondition)
	assert.Contains(t, gotBody, "UID:tdbkg-abc\r\n")
	assert.Contains(t, gotBody, "DTSTART:20260914T100000Z\r\n")
	assert.Contains(t, gotBody, "SUMMARY:Deep Tissue Massage\r\n")
}

func TestPutEventRetriesBareContentTypeOn415(t *testing.T) {
	var contentTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		contentTypes = append(contentTypes, ct)
		if strings.Contains(ct, "component=") {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PutEvent(context.Background(), 7, testEvent("tdbkg-abc"))
	require.NoError(t, err)
	require.Len(t, contentTypes, 2)
	assert.Equal(t, "text/calendar", contentTypes[1])
}

func TestPutEventRetriesWithoutGuardOn412(t *testing.T) {
	var preconditions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pre := r.Header.Get("If-None-Match")
		preconditions = append(preconditions, pre)
		if pre != "" {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PutEvent(context.Background(), 7, testEvent("tdbkg-abc"))
	require.NoError(t, err)
	require.Len(t, preconditions, 2)
	assert.Empty(t, preconditions[1])
}

func TestPutEventKeepsDowngradedContentTypeOn412(t *testing.T) {
	type attempt struct {
		contentType  string
		precondition string
	}
	var attempts []attempt
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := attempt{r.Header.Get("Content-Type"), r.Header.Get("If-None-Match")}
		attempts = append(attempts, a)
		switch {
		case strings.Contains(a.contentType, "component="):
			w.WriteHeader(http.StatusUnsupportedMediaType)
		case a.precondition != "":
			w.WriteHeader(http.StatusPreconditionFailed)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PutEvent(context.Background(), 7, testEvent("tdbkg-abc"))
	require.NoError(t, err, "a server with both quirks must still converge")
	require.Len(t, attempts, 3)
	assert.Equal(t, "text/calendar", attempts[2].contentType)
	assert.Empty(t, attempts[2].precondition)
}

func TestPutEventServerErrorIsSyncError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).PutEvent(context.Background(), 7, testEvent("tdbkg-abc"))
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, http.StatusBadGateway, syncErr.StatusCode)
}

func TestPutEventUnreachableServerIsSyncError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestClient(srv.URL).PutEvent(context.Background(), 7, testEvent("tdbkg-abc"))
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Zero(t, syncErr.StatusCode)
}

func TestDeleteEventTreats404AsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteEvent(context.Background(), 7, "tdbkg-abc")
	assert.NoError(t, err)
}

func TestDeleteEventServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteEvent(context.Background(), 7, "tdbkg-abc")
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, http.StatusForbidden, syncErr.StatusCode)
}

func TestProbeCollectionDepthZero(t *testing.T) {
	var gotMethod, gotDepth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotDepth = r.Header.Get("Depth")
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ProbeCollection(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "PROPFIND", gotMethod)
	assert.Equal(t, "0", gotDepth)
}

func TestFreshEventUIDNeverRepeatsBase(t *testing.T) {
	base := EventUID("abc")
	fresh := FreshEventUID("abc")
	assert.NotEqual(t, base, fresh)
	assert.True(t, strings.HasPrefix(fresh, base+"-"))
	assert.NotEqual(t, fresh, FreshEventUID("abc"))
}

func TestSyncErrorRedactsCredentials(t *testing.T) {
	e := &SyncError{Op: "PUT", URL: redactURL("https://user:pw@cal.example.com/staff-1/x.ics?token=abc"), StatusCode: 500}
	assert.NotContains(t, e.Error(), "pw")
	assert.NotContains(t, e.Error(), "token=")
	assert.Contains(t, e.Error(), "cal.example.com")
}
