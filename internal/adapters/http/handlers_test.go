package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/exsitu/internal/adapters/http"
	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/usecases"
)

// ---- Mocks ----

type mockSource struct {
	fetchPageFn  func(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error)
	fetchStatsFn func(ctx context.Context) ([]domain.StatRow, error)
}

func (m *mockSource) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	if m.fetchPageFn != nil {
		return m.fetchPageFn(ctx, q)
	}
	return &domain.ObjectPage{Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockSource) FetchStats(ctx context.Context) ([]domain.StatRow, error) {
	if m.fetchStatsFn != nil {
		return m.fetchStatsFn(ctx)
	}
	return nil, nil
}

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string) (*domain.SearchResult, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	src := &mockSource{}
	d := &handler.Dependencies{
		Objects:    usecases.NewObjectService(src, nil, 5),
		Stats:      usecases.NewStatsService(src, nil, nil),
		Search:     usecases.NewSearchService(nil, nil),
		SyncConfig: usecases.DefaultSyncConfig(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withSource(src ports.ObjectSource) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Objects = usecases.NewObjectService(src, nil, 5)
		d.Stats = usecases.NewStatsService(src, nil, nil)
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func object(id string, srcLon, srcLat, dstLon, dstLat float64) domain.MuseumObject {
	return domain.MuseumObject{
		ID:        id,
		Title:     "Object " + id,
		Longitude: domain.Float(srcLon),
		Latitude:  domain.Float(srcLat),
		PlaceName: "Benin City",
		Institution: domain.Institution{
			Name:      "Pitt Rivers Museum",
			Longitude: domain.Float(dstLon),
			Latitude:  domain.Float(dstLat),
		},
	}
}

const viewport = "north=60&south=-10&east=20&west=-10"

// beninToOxford returns n objects on one arc plus one self-loop and one
// record without coordinates.
func beninToOxford(n int) *mockSource {
	return &mockSource{
		fetchPageFn: func(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
			var objs []domain.MuseumObject
			for i := 0; i < n; i++ {
				objs = append(objs, object(fmt.Sprintf("b%d", i), 5.6037, 6.335, -1.2546, 51.7587))
			}
			objs = append(objs, object("local", -1.2546, 51.7587, -1.2546, 51.7587))
			objs = append(objs, domain.MuseumObject{ID: "nocoords", Title: "Lost"})
			return &domain.ObjectPage{Objects: objs, Page: 1, PageSize: q.PageSize, PageCount: 1, Total: len(objs)}, nil
		},
	}
}

// ---- Object handler tests ----

func TestListObjects_Success(t *testing.T) {
	var got domain.ObjectQuery
	app := setupApp(makeDeps(withSource(&mockSource{
		fetchPageFn: func(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
			got = q
			o := object("1", 5.6, 6.3, -1.25, 51.75)
			o.SourceLink = "https://example.org/1"
			return &domain.ObjectPage{Objects: []domain.MuseumObject{o}, Page: 2, PageSize: 10, PageCount: 4, Total: 31}, nil
		},
	})))

	req := httptest.NewRequest("GET", "/v1/objects?"+viewport+"&page=2&page_size=10", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if got.Page != 2 || got.PageSize != 10 || got.Bounds.North != 60 || got.Bounds.West != -10 {
		t.Errorf("unexpected query passed to source: %+v", got)
	}

	var result struct {
		Data []struct {
			ID       string `json:"id"`
			LinkURL  string `json:"link_url"`
			LinkText string `json:"link_text"`
		} `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 1 || result.Data[0].LinkURL != "https://example.org/1" {
		t.Errorf("unexpected data: %+v", result.Data)
	}
	if result.Pagination.Total != 31 || result.Pagination.PageCount != 4 {
		t.Errorf("unexpected pagination: %+v", result.Pagination)
	}

	link := resp.Header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="prev"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
	if !strings.Contains(link, "page=4") || !strings.Contains(link, "north=60") {
		t.Errorf("expected last page link with filters kept, got %s", link)
	}
}

func TestListObjects_MissingBounds(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/objects?north=10&south=0&east=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" || !strings.Contains(apiErr.Message, "west") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestListObjects_InvertedBounds(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/objects?north=0&south=10&east=5&west=0", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListObjects_UpstreamError(t *testing.T) {
	app := setupApp(makeDeps(withSource(&mockSource{
		fetchPageFn: func(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
			return nil, fmt.Errorf("status 503: %w", domain.ErrUpstream)
		},
	})))

	req := httptest.NewRequest("GET", "/v1/objects?"+viewport, nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestExportObjects_CSV(t *testing.T) {
	app := setupApp(makeDeps(withSource(beninToOxford(2))))

	req := httptest.NewRequest("GET", "/v1/objects/export.csv?"+viewport, nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cd := resp.Header.Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "ex-situ-objects-") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if resp.Header.Get("ETag") != "" {
		t.Error("attachments should not carry an ETag")
	}

	body := readBody(t, resp.Body)
	lines := strings.Split(string(body), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d lines:\n%s", len(lines), body)
	}
	if !strings.HasPrefix(lines[0], "ID,Title,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `b0,"Object b0",`) {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

// ---- Arc handler tests ----

func TestArcs_GeoJSON(t *testing.T) {
	app := setupApp(makeDeps(withSource(beninToOxford(3))))

	req := httptest.NewRequest("GET", "/v1/arcs?"+viewport, nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Origin      string   `json:"origin"`
				Destination string   `json:"destination"`
				Count       int      `json:"count"`
				Width       float64  `json:"width"`
				ObjectIDs   []string `json:"object_ids"`
			} `json:"properties"`
		} `json:"features"`
		UniqueArcs int `json:"unique_arcs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || fc.UniqueArcs != 1 || len(fc.Features) != 1 {
		t.Fatalf("expected one arc, got %+v", fc)
	}
	f := fc.Features[0]
	if f.Properties.Count != 3 || f.Properties.Width != 3.5 {
		t.Errorf("expected count 3 width 3.5, got %+v", f.Properties)
	}
	if f.Properties.Origin != "Benin City" || f.Properties.Destination != "Pitt Rivers Museum" {
		t.Errorf("unexpected names: %+v", f.Properties)
	}
	if f.Geometry.Coordinates[0] != [2]float64{5.6037, 6.335} {
		t.Errorf("expected [lon, lat] source, got %v", f.Geometry.Coordinates[0])
	}
}

func TestArcObjects_GridPages(t *testing.T) {
	app := setupApp(makeDeps(withSource(beninToOxford(14))))
	key := "5.6037,6.3350--1.2546,51.7587"

	req := httptest.NewRequest("GET", "/v1/arcs/objects?key="+key+"&page=2&"+viewport, nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		Data       []domain.MuseumObject `json:"data"`
		Pagination handler.Pagination    `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 2 || result.Pagination.PageCount != 2 || result.Pagination.Total != 14 {
		t.Errorf("expected the last 2 of 14 objects on page 2, got %d items %+v", len(result.Data), result.Pagination)
	}

	// Out of range pages are served as the last page and reported as such.
	req = httptest.NewRequest("GET", "/v1/arcs/objects?key="+key+"&page=9&"+viewport, nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Page != 2 || len(result.Data) != 2 {
		t.Errorf("expected page 9 to clamp to page 2, got %d items %+v", len(result.Data), result.Pagination)
	}
}

func TestArcObjects_UnknownKey(t *testing.T) {
	app := setupApp(makeDeps(withSource(beninToOxford(1))))

	req := httptest.NewRequest("GET", "/v1/arcs/objects?key=0,0-1,1&"+viewport, nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Stats handler tests ----

func TestStats_Grouped(t *testing.T) {
	nigeria, ghana := "Nigeria", "Ghana"
	app := setupApp(makeDeps(withSource(&mockSource{
		fetchStatsFn: func(ctx context.Context) ([]domain.StatRow, error) {
			return []domain.StatRow{
				{Country: &nigeria, InstitutionName: "British Museum", TotalObjects: "10"},
				{Country: &ghana, InstitutionName: "British Museum", TotalObjects: "4"},
				{Country: &nigeria, InstitutionName: "Pitt Rivers Museum", TotalObjects: "7"},
			}, nil
		},
	})))

	req := httptest.NewRequest("GET", "/v1/stats", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	var s domain.StatsSummary
	json.NewDecoder(resp.Body).Decode(&s)
	if s.TotalCount != 21 {
		t.Errorf("expected total 21, got %d", s.TotalCount)
	}
	if len(s.Countries) != 2 || s.Countries[0].Name != "Nigeria" || s.Countries[0].TotalObjects != 17 {
		t.Errorf("unexpected countries: %+v", s.Countries)
	}
	if len(s.Institutions) != 2 || s.Institutions[0].Name != "British Museum" {
		t.Errorf("unexpected institutions: %+v", s.Institutions)
	}
}

// ---- Search handler tests ----

func TestSearch_MissingToken(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/search?q=Lagos", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "configuration_error" {
		t.Errorf("expected configuration_error, got %+v", apiErr)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/search", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSearch_FlyToAndRecent(t *testing.T) {
	cache := newMockCache()
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string) (*domain.SearchResult, error) {
			if query == "Lagos" {
				return &domain.SearchResult{Name: "Lagos, Nigeria", Longitude: 3.3792, Latitude: 6.5244}, nil
			}
			return nil, nil
		},
	}
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Search = usecases.NewSearchService(geo, cache)
	}))

	req := httptest.NewRequest("GET", "/v1/search?q=Lagos", nil)
	req.Header.Set("X-Client-ID", "map-1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Result domain.SearchResult `json:"result"`
		FlyTo  handler.FlyTo       `json:"fly_to"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.FlyTo.Zoom != 8 || result.FlyTo.Center != [2]float64{3.3792, 6.5244} {
		t.Errorf("unexpected fly_to: %+v", result.FlyTo)
	}
	b := result.FlyTo.Bounds
	if !(b.South < 6.5244 && 6.5244 < b.North && b.West < 3.3792 && 3.3792 < b.East) {
		t.Errorf("fly_to bounds should contain the place: %+v", b)
	}

	// No match is a normal answer with a null result and is not remembered.
	req = httptest.NewRequest("GET", "/v1/search?q=Atlantis&client_id=map-1", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for no match, got %d", resp.StatusCode)
	}
	var miss map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&miss); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if r, ok := miss["result"]; !ok || r != nil {
		t.Errorf("expected a null result, got %v", miss)
	}

	req = httptest.NewRequest("GET", "/v1/search/recent", nil)
	req.Header.Set("X-Client-ID", "map-1")
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "private, no-store" {
		t.Errorf("recent searches must not be cached publicly, got %q", cc)
	}

	var recent struct {
		Searches []string `json:"searches"`
	}
	json.NewDecoder(resp.Body).Decode(&recent)
	if len(recent.Searches) != 1 || recent.Searches[0] != "Lagos" {
		t.Errorf("expected [Lagos], got %v", recent.Searches)
	}
}

func TestRecentSearches_RequiresClient(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/search/recent", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- GraphQL ----

func TestGraphQL_ArcsAndStats(t *testing.T) {
	app := setupApp(makeDeps(withSource(beninToOxford(2))))

	body := `{"query":"{ arcs(north: 60, south: -10, east: 20, west: -10) { key count origin source { lat lon } } stats { total_count } }"}`
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Arcs []struct {
				Key    string `json:"key"`
				Count  int    `json:"count"`
				Origin string `json:"origin"`
				Source struct {
					Lat float64 `json:"lat"`
					Lon float64 `json:"lon"`
				} `json:"source"`
			} `json:"arcs"`
			Stats struct {
				TotalCount int `json:"total_count"`
			} `json:"stats"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Data.Arcs) != 1 || result.Data.Arcs[0].Count != 2 || result.Data.Arcs[0].Source.Lat != 6.335 {
		t.Errorf("unexpected arcs: %+v", result.Data.Arcs)
	}
}

func TestGraphQL_InvalidBody(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
	if result["search"] != false {
		t.Errorf("expected search disabled without a token, got %v", result["search"])
	}
}

func TestReady_NothingConfigured(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	// Unconfigured optional dependencies do not block readiness.
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ---- Middleware ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(withSource(beninToOxford(1))))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/arcs?"+viewport, nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/arcs?"+viewport, nil)
	req.Header.Set("If-None-Match", `W/"other", `+etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp.Body); !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", body)
	}
}
