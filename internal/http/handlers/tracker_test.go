package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ritasuite/internal/domain"
)

type fakeTrackers struct {
	links map[string]*domain.TrackingLink
	logs  map[string][]domain.LocationLog
}

func newFakeTrackers(links ...*domain.TrackingLink) *fakeTrackers {
	r := &fakeTrackers{links: make(map[string]*domain.TrackingLink), logs: make(map[string][]domain.LocationLog)}
	for _, l := range links {
		r.links[l.ID] = l
	}
	return r
}

func (r *fakeTrackers) CreateLink(ctx context.Context, link *domain.TrackingLink) error {
	link.CreatedAt = time.Now()
	r.links[link.ID] = link
	return nil
}

func (r *fakeTrackers) GetLinkByTrackingID(ctx context.Context, trackingID string) (*domain.TrackingLink, error) {
	for _, l := range r.links {
		if l.TrackingID == trackingID {
			return l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeTrackers) ListLinksByUser(ctx context.Context, userID string) ([]domain.TrackingLink, error) {
	var out []domain.TrackingLink
	for _, l := range r.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeTrackers) ListLogs(ctx context.Context, linkID string) ([]domain.LocationLog, error) {
	return r.logs[linkID], nil
}

func (r *fakeTrackers) AddLog(ctx context.Context, log *domain.LocationLog) error {
	log.CreatedAt = time.Now()
	r.logs[log.LinkID] = append(r.logs[log.LinkID], *log)
	return nil
}

func (r *fakeTrackers) DeleteLink(ctx context.Context, userID, id string) error {
	l, ok := r.links[id]
	if !ok || l.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.links, id)
	delete(r.logs, id)
	return nil
}

func TestTrackerCreateLinkMintsShortID(t *testing.T) {
	app := testApp()
	trackers := newFakeTrackers()
	app.Trackers = trackers

	rec := httptest.NewRecorder()
	app.TrackerCreateLink(rec, authedRequest(http.MethodPost, "/api/tracker/links",
		`{"url":"https://example.com/page","require_consent":true}`, "u1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	trackingID, ok := body["tracking_id"].(string)
	require.True(t, ok)
	require.Len(t, trackingID, 8)
	require.Equal(t, true, body["require_consent"])
}

func TestTrackRedirect(t *testing.T) {
	app := testApp()
	app.Trackers = newFakeTrackers(&domain.TrackingLink{
		ID: "l1", UserID: "u1", OriginalURL: "https://example.com/dest", TrackingID: "abcd1234",
	})

	rec := httptest.NewRecorder()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/t/abcd1234", nil),
		map[string]string{"trackingID": "abcd1234"})
	app.TrackRedirect(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://example.com/dest", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	req = withURLParams(httptest.NewRequest(http.MethodGet, "/t/unknown", nil),
		map[string]string{"trackingID": "unknown"})
	app.TrackRedirect(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackLocationRecordsCountry(t *testing.T) {
	app := testApp()
	trackers := newFakeTrackers(&domain.TrackingLink{ID: "l1", UserID: "u1", TrackingID: "abcd1234"})
	app.Trackers = trackers
	app.Country = func(ip string) (string, error) { return "DE", nil }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/track/location",
		jsonBody(`{"tracking_id":"abcd1234","latitude":52.52,"longitude":13.405}`))
	req.RemoteAddr = "203.0.113.7:1234"
	app.TrackLocation(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	logs := trackers.logs["l1"]
	require.Len(t, logs, 1)
	require.Equal(t, "DE", logs[0].Country)
	require.InDelta(t, 52.52, logs[0].Latitude, 1e-9)
}

func TestTrackLocationRejectsBadCoordinates(t *testing.T) {
	app := testApp()
	app.Trackers = newFakeTrackers(&domain.TrackingLink{ID: "l1", TrackingID: "abcd1234"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/track/location",
		jsonBody(`{"tracking_id":"abcd1234","latitude":123.0,"longitude":0}`))
	app.TrackLocation(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackLocationUnknownLink(t *testing.T) {
	app := testApp()
	app.Trackers = newFakeTrackers()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/track/location",
		jsonBody(`{"tracking_id":"nope","latitude":1,"longitude":1}`))
	app.TrackLocation(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackerDeleteLinkOwnerScoped(t *testing.T) {
	app := testApp()
	trackers := newFakeTrackers(&domain.TrackingLink{ID: "l1", UserID: "owner", TrackingID: "abcd1234"})
	app.Trackers = trackers

	rec := httptest.NewRecorder()
	req := withURLParams(authedRequest(http.MethodPost, "/api/tracker/links/l1/delete", "", "intruder"),
		map[string]string{"id": "l1"})
	app.TrackerDeleteLink(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req = withURLParams(authedRequest(http.MethodPost, "/api/tracker/links/l1/delete", "", "owner"),
		map[string]string{"id": "l1"})
	app.TrackerDeleteLink(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, trackers.links)
}
