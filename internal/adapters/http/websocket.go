package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/exsitu/internal/adapters/nats"
	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/provenance"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

// wsInbound is a client message.
//
//	{"type":"bounds","bounds":{"north":..,"south":..,"east":..,"west":..}}
//	{"type":"load_more"}
//	{"type":"search","query":"Benin City"}
//	{"type":"recent"}
type wsInbound struct {
	Type   string            `json:"type"`
	Bounds *domain.MapBounds `json:"bounds,omitempty"`
	Query  string            `json:"query,omitempty"`
}

// wsArcs is pushed after every settled page fetch.
type wsArcs struct {
	Type       string                       `json:"type"`
	Arcs       provenance.FeatureCollection `json:"arcs"`
	UniqueArcs int                          `json:"unique_arcs"`
	Objects    int                          `json:"objects"`
	Added      int                          `json:"added"`
	Bounds     domain.MapBounds             `json:"bounds"`
	Status     domain.StatusView            `json:"status"`
}

// wsFlyTo is pushed after a search that matched a place.
type wsFlyTo struct {
	Type string `json:"type"`
	FlyTo
	Recent []string `json:"recent"`
}

// wsSession speaks the map protocol for one client. It is independent of the
// socket so it can be driven directly.
type wsSession struct {
	sess   *usecases.Session
	search *usecases.SearchService
	send   func(v interface{}) error
	log    *slog.Logger
}

func newWSSession(ctx context.Context, deps *Dependencies, clientID string, send func(v interface{}) error) *wsSession {
	ws := &wsSession{
		search: deps.Search,
		send:   send,
		log:    slog.Default().With("client_id", clientID),
	}
	ws.sess = usecases.NewSession(ctx, clientID, deps.Objects, deps.Search, deps.SyncConfig, ws.onUpdate)
	return ws
}

// hello announces missing configuration up front so the map can disable
// search instead of failing on first use.
func (ws *wsSession) hello() {
	if ws.search == nil || !ws.search.Configured() {
		_ = ws.send(map[string]string{"type": "config_error", "message": domain.ErrMissingToken.Error()})
	}
	_ = ws.send(map[string]interface{}{"type": "recent", "searches": ws.sess.Recent.List()})
}

// onUpdate runs on the session's sync goroutine.
func (ws *wsSession) onUpdate(u usecases.SyncUpdate) {
	if u.Err != nil {
		_ = ws.send(map[string]interface{}{
			"type":    "error",
			"message": u.Err.Error(),
			"status":  u.Status.View(),
		})
		return
	}

	arcs := ws.sess.Arcs(u.Snapshot)
	_ = ws.send(wsArcs{
		Type:       "arcs",
		Arcs:       provenance.ToGeoJSON(arcs),
		UniqueArcs: len(arcs),
		Objects:    len(u.Snapshot.Objects),
		Added:      u.Added,
		Bounds:     u.Bounds,
		Status:     u.Status.View(),
	})
}

// handle processes one client message.
func (ws *wsSession) handle(ctx context.Context, raw []byte) {
	var m wsInbound
	if err := json.Unmarshal(raw, &m); err != nil {
		ws.sendError("invalid JSON")
		return
	}

	switch m.Type {
	case "bounds":
		if m.Bounds == nil {
			ws.sendError("bounds are required")
			return
		}
		if err := ws.sess.Sync.BoundsChanged(ctx, *m.Bounds); err != nil {
			ws.sendError(err.Error())
		}

	case "load_more":
		ws.sess.Sync.LoadMore()

	case "search":
		ws.searchPlace(ctx, m.Query)

	case "recent":
		_ = ws.send(map[string]interface{}{"type": "recent", "searches": ws.sess.Recent.List()})

	default:
		ws.sendError("unknown message type: " + m.Type)
	}
}

func (ws *wsSession) searchPlace(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		ws.sendError("query is required")
		return
	}

	res, err := ws.sess.Search(ctx, query)
	switch {
	case errors.Is(err, domain.ErrMissingToken):
		_ = ws.send(map[string]string{"type": "config_error", "message": err.Error()})
	case err != nil:
		ws.log.Warn("place search failed", "query", query, "error", err)
		ws.sendError(err.Error())
	case res == nil:
		_ = ws.send(map[string]string{"type": "no_match", "query": query})
	default:
		_ = ws.send(wsFlyTo{Type: "fly_to", FlyTo: newFlyTo(res), Recent: ws.sess.Recent.List()})
	}
}

func (ws *wsSession) sendError(msg string) {
	_ = ws.send(map[string]string{"type": "error", "message": msg})
}

// relay forwards broker events to the client until the returned function is
// called.
func (ws *wsSession) relay(nc *nats.Conn) func() {
	if nc == nil {
		return func() {}
	}

	var subs []*nats.Subscription
	mirrorSub, err := nc.Subscribe(natsadapter.SubjectMirrorCompleted, func(msg *nats.Msg) {
		var ev natsadapter.MirrorCompleted
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		_ = ws.send(map[string]interface{}{"type": "mirror_updated", "objects": ev.Objects, "at": ev.At})
	})
	if err != nil {
		ws.log.Warn("subscribe failed", "subject", natsadapter.SubjectMirrorCompleted, "error", err)
	} else {
		subs = append(subs, mirrorSub)
	}

	statsSub, err := nc.Subscribe(natsadapter.SubjectStatsRefreshed, func(msg *nats.Msg) {
		var ev natsadapter.StatsRefreshed
		if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.Summary == nil {
			return
		}
		_ = ws.send(map[string]interface{}{"type": "stats", "stats": ev.Summary})
	})
	if err != nil {
		ws.log.Warn("subscribe failed", "subject", natsadapter.SubjectStatsRefreshed, "error", err)
	} else {
		subs = append(subs, statsSub)
	}

	return func() {
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
	}
}

// WebSocketHandler returns a handler that runs a viewport sync session per
// connection. Bounds updates stream back as arc layers; broker events about
// the mirror and stats are relayed as they arrive.
// Clients identify themselves with ?client_id= to keep recent searches across
// connections.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Query("client_id")
		if id == "" {
			id, _ = c.Locals("requestid").(string)
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ws := newWSSession(ctx, deps, id, writeJSON)
		ws.log.Info("ws client connected", "remote", c.RemoteAddr().String())

		syncDone := make(chan struct{})
		go func() {
			defer close(syncDone)
			if err := ws.sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				ws.log.Error("viewport sync stopped", "error", err)
			}
		}()

		stopRelay := ws.relay(deps.NATS)
		defer stopRelay()

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		ws.hello()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			ws.handle(ctx, msg)
		}

		cancel()
		<-syncDone
		ws.log.Info("ws client disconnected")
	}
}
