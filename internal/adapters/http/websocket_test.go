package http

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/usecases"
)

type stubSource struct{}

func (stubSource) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	o := domain.MuseumObject{
		ID:        "1",
		Longitude: domain.Float(5.6037),
		Latitude:  domain.Float(6.335),
		Institution: domain.Institution{
			Name:      "Pitt Rivers Museum",
			Longitude: domain.Float(-1.2546),
			Latitude:  domain.Float(51.7587),
		},
	}
	return &domain.ObjectPage{Objects: []domain.MuseumObject{o}, Page: q.Page, PageSize: q.PageSize, PageCount: 1, Total: 1}, nil
}

func (stubSource) FetchStats(ctx context.Context) ([]domain.StatRow, error) { return nil, nil }

type stubGeocoder struct{}

func (stubGeocoder) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	if query == "Oxford" {
		return &domain.SearchResult{Name: "Oxford, England", Longitude: -1.2577, Latitude: 51.752}, nil
	}
	return nil, nil
}

// startWS runs a session and returns the messages it sends, decoded.
func startWS(t *testing.T, search *usecases.SearchService) (*wsSession, <-chan map[string]interface{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan map[string]interface{}, 16)
	send := func(v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		out <- m
		return nil
	}

	deps := &Dependencies{
		Objects:    usecases.NewObjectService(stubSource{}, nil, 5),
		Search:     search,
		SyncConfig: usecases.SyncConfig{Debounce: 10 * time.Millisecond, Threshold: 0.1, PageSize: 10},
	}
	ws := newWSSession(ctx, deps, "client-1", send)
	go ws.sess.Run(ctx)
	return ws, out
}

func nextMessage(t *testing.T, out <-chan map[string]interface{}) map[string]interface{} {
	t.Helper()
	select {
	case m := <-out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func TestWSSession_BoundsStreamArcs(t *testing.T) {
	ws, out := startWS(t, nil)

	ws.handle(context.Background(), []byte(`{"type":"bounds","bounds":{"north":60,"south":-10,"east":20,"west":-10}}`))

	m := nextMessage(t, out)
	if m["type"] != "arcs" {
		t.Fatalf("expected arcs message, got %v", m)
	}
	if m["unique_arcs"].(float64) != 1 || m["objects"].(float64) != 1 {
		t.Errorf("unexpected arcs message: %v", m)
	}
	status := m["status"].(map[string]interface{})
	if status["has_more"] != false || status["total"].(float64) != 1 {
		t.Errorf("unexpected status: %v", status)
	}
}

func TestWSSession_HelloReportsMissingToken(t *testing.T) {
	ws, out := startWS(t, usecases.NewSearchService(nil, nil))

	ws.hello()
	if m := nextMessage(t, out); m["type"] != "config_error" {
		t.Errorf("expected config_error first, got %v", m)
	}
	if m := nextMessage(t, out); m["type"] != "recent" {
		t.Errorf("expected recent list, got %v", m)
	}

	ws.handle(context.Background(), []byte(`{"type":"search","query":"Oxford"}`))
	if m := nextMessage(t, out); m["type"] != "config_error" {
		t.Errorf("expected config_error on search, got %v", m)
	}
}

func TestWSSession_SearchFlyTo(t *testing.T) {
	ws, out := startWS(t, usecases.NewSearchService(stubGeocoder{}, nil))

	ws.handle(context.Background(), []byte(`{"type":"search","query":"Oxford"}`))
	m := nextMessage(t, out)
	if m["type"] != "fly_to" || m["name"] != "Oxford, England" || m["zoom"].(float64) != 8 {
		t.Fatalf("unexpected message: %v", m)
	}
	recent := m["recent"].([]interface{})
	if len(recent) != 1 || recent[0] != "Oxford" {
		t.Errorf("expected Oxford in recent, got %v", recent)
	}

	ws.handle(context.Background(), []byte(`{"type":"search","query":"Atlantis"}`))
	if m := nextMessage(t, out); m["type"] != "no_match" {
		t.Errorf("expected no_match, got %v", m)
	}
}

func TestWSSession_BadMessages(t *testing.T) {
	ws, out := startWS(t, nil)

	for _, raw := range []string{
		`not json`,
		`{"type":"bounds"}`,
		`{"type":"bounds","bounds":{"north":0,"south":10,"east":0,"west":0}}`,
		`{"type":"dance"}`,
	} {
		ws.handle(context.Background(), []byte(raw))
		if m := nextMessage(t, out); m["type"] != "error" {
			t.Errorf("%s: expected error, got %v", raw, m)
		}
	}
}
