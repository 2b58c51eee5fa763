package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/analysis"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/database"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/repository"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/routing"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServerConfig() *config.Config {
	return &config.Config{
		JWTSecret: "", // dev mode: identity from X-Courier-ID

		ServiceArea: config.BoundingBox{
			MinLat: 3.90, MinLng: 9.55, MaxLat: 4.20, MaxLng: 9.90,
		},
		CellSizeDeg:      0.0018,
		FreeFlowSpeedKmh: 50,
		LevelFluideRatio: 0.8,
		LevelModereRatio: 0.5,
		LevelDenseRatio:  0.2,
		EWMAAlpha:        0.3,
		SampleMaxAge:     2 * time.Minute,
		CellStaleAfter:   10 * time.Minute,
		CellSweepEvery:   2 * time.Minute,
		PresenceWindow:   3 * time.Minute,
		EventSweepEvery:  time.Minute,

		EarlyExpiryMargin:   3,
		ConfidenceSmoothing: 5,
		EventTTL: map[string]time.Duration{
			"accident":    2 * time.Hour,
			"police":      time.Hour,
			"road_closed": 6 * time.Hour,
			"traffic_jam": 45 * time.Minute,
			"other":       time.Hour,
		},

		SlowdownRatio:       0.4,
		SlowdownMinDuration: 90 * time.Second,
		SlowdownMinSamples:  3,

		RoutingTimeout:   time.Second,
		GeocodingTimeout: time.Second,
		CorridorWidthM:   300,
		DelayModereMinKm: 1.5,
		DelayDenseMinKm:  4,
		DelayBloqueMinKm: 8,
	}
}

// newTestRouter builds the full engine over an in-memory database and the
// given routing base URL.
func newTestRouter(t *testing.T, routingURL string) *gin.Engine {
	t.Helper()
	cfg := testServerConfig()
	cfg.RoutingBaseURL = routingURL

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	grid := spatial.NewGrid(cfg.CellSizeDeg)
	presence := service.NewPresenceTracker(cfg.PresenceWindow)
	agg := service.NewAggregatorService(cfg, grid, presence)

	traces := analysis.NewTraceArena(16, 30*time.Minute)
	detector := analysis.NewSlowdownDetector(cfg.SlowdownRatio, cfg.SlowdownMinDuration, cfg.SlowdownMinSamples)
	ingest := service.NewIngestService(cfg, grid, agg, presence, traces, detector)

	events := service.NewEventService(cfg, repository.NewEventRepository(db), nil)
	provider := routing.NewClient(cfg.RoutingBaseURL, cfg.RoutingTimeout)
	routeSvc := service.NewRouteService(cfg, grid, agg, events, provider)
	optimizer := service.NewOptimizerService()

	return SetupRouter(cfg, agg, events, routeSvc, ingest, optimizer)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path, courierID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if courierID != "" {
		req.Header.Set("X-Courier-ID", courierID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope from %s %s: %v (body %s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, "http://localhost:1")

	w, _ := doJSON(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
}

func TestLocationUpdateRequiresIdentity(t *testing.T) {
	r := newTestRouter(t, "http://localhost:1")

	w, _ := doJSON(t, r, http.MethodPost, "/mobile/location/update", "", gin.H{
		"lat": 4.05, "lng": 9.76, "speed": 30,
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLocationUpdateFeedsHeatmap(t *testing.T) {
	r := newTestRouter(t, "http://localhost:1")

	w, env := doJSON(t, r, http.MethodPost, "/mobile/location/update", "courier-1", gin.H{
		"lat": 4.05, "lng": 9.76, "speed": 12,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	var ack struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.Unmarshal(env.Data, &ack); err != nil || !ack.Accepted {
		t.Fatalf("update not accepted: %s", env.Data)
	}

	w, env = doJSON(t, r, http.MethodGet, "/traffic/heatmap", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("heatmap status = %d", w.Code)
	}
	var heatmap struct {
		Cells []struct {
			CellID   string  `json:"cell_id"`
			AvgSpeed float64 `json:"avg_speed"`
			Level    string  `json:"level"`
		} `json:"cells"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &heatmap); err != nil {
		t.Fatalf("decode heatmap: %v", err)
	}
	if heatmap.Count != 1 || len(heatmap.Cells) != 1 {
		t.Fatalf("heatmap count = %d, want 1", heatmap.Count)
	}
	if heatmap.Cells[0].AvgSpeed != 12 || heatmap.Cells[0].Level != "DENSE" {
		t.Errorf("cell = %+v, want 12 km/h DENSE", heatmap.Cells[0])
	}

	w, env = doJSON(t, r, http.MethodGet, "/traffic/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats struct {
		ActiveCells    int `json:"active_cells"`
		OnlineCouriers int `json:"online_couriers"`
	}
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ActiveCells != 1 || stats.OnlineCouriers != 1 {
		t.Errorf("stats = %+v, want one cell and one courier", stats)
	}
}

func TestHeatmapRejectsMalformedBBox(t *testing.T) {
	r := newTestRouter(t, "http://localhost:1")

	w, _ := doJSON(t, r, http.MethodGet,
		"/traffic/heatmap?min_lat=4.1&min_lng=9.8&max_lat=4.0&max_lng=9.7", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEventLifecycle(t *testing.T) {
	r := newTestRouter(t, "http://localhost:1")

	// Anonymous reports are rejected.
	w, _ := doJSON(t, r, http.MethodPost, "/traffic/events", "", gin.H{
		"type": "accident", "severity": "high", "lat": 4.05, "lng": 9.76,
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous report status = %d, want 401", w.Code)
	}

	w, env := doJSON(t, r, http.MethodPost, "/traffic/events", "courier-1", gin.H{
		"type": "accident", "severity": "high", "lat": 4.05, "lng": 9.76,
		"description": "Camion en travers",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d, body %s", w.Code, w.Body.String())
	}
	var event struct {
		ID         string  `json:"id"`
		Confidence float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal(env.Data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.ID == "" || event.Confidence != 50 {
		t.Fatalf("event = %+v, want id and neutral confidence", event)
	}

	// Listed in the area feed.
	w, env = doJSON(t, r, http.MethodGet, "/traffic/events", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || list.Count != 1 {
		t.Fatalf("list count = %d, want 1", list.Count)
	}

	// Another courier upvotes; the reporter cannot vote at all.
	w, env = doJSON(t, r, http.MethodPost, "/traffic/events/"+event.ID+"/vote", "courier-2",
		gin.H{"direction": "up"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote status = %d, body %s", w.Code, w.Body.String())
	}
	var vote struct {
		Confidence float64 `json:"confidence_score"`
	}
	if err := json.Unmarshal(env.Data, &vote); err != nil {
		t.Fatalf("decode vote: %v", err)
	}
	if vote.Confidence <= 50 {
		t.Errorf("confidence after upvote = %v, want above neutral", vote.Confidence)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/traffic/events/"+event.ID+"/vote", "courier-1",
		gin.H{"direction": "up"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("self-vote status = %d, want 403", w.Code)
	}

	// Only the reporter may delete.
	w, _ = doJSON(t, r, http.MethodDelete, "/traffic/events/"+event.ID, "courier-2", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d, want 403", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodDelete, "/traffic/events/"+event.ID, "courier-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodGet, "/traffic/events/"+event.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", w.Code)
	}
}

func TestEstimateWithOSRMStub(t *testing.T) {
	osrm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"Ok","routes":[{"distance":2500,"duration":420,
			"geometry":{"coordinates":[[9.76,4.04],[9.76,4.05],[9.76,4.06]]}}]}`)
	}))
	defer osrm.Close()

	r := newTestRouter(t, osrm.URL)

	w, env := doJSON(t, r, http.MethodPost, "/traffic/estimate", "", gin.H{
		"origin":      gin.H{"lat": 4.04, "lng": 9.76},
		"destination": gin.H{"lat": 4.06, "lng": 9.76},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("estimate status = %d, body %s", w.Code, w.Body.String())
	}
	var res struct {
		DistanceMeters float64 `json:"distance_meters"`
		Degraded       bool    `json:"degraded"`
		Waypoints      []struct {
			Lat float64 `json:"lat"`
		} `json:"waypoints"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode estimate: %v", err)
	}
	if res.Degraded {
		t.Error("estimate degraded with a healthy provider")
	}
	if res.DistanceMeters != 2500 {
		t.Errorf("distance = %v, want provider's 2500", res.DistanceMeters)
	}
	if len(res.Waypoints) != 3 {
		t.Errorf("waypoints = %d, want provider geometry", len(res.Waypoints))
	}
}

func TestEstimateDegradesWhenProviderDown(t *testing.T) {
	// Nothing listens on port 1.
	r := newTestRouter(t, "http://localhost:1")

	w, env := doJSON(t, r, http.MethodPost, "/traffic/estimate", "", gin.H{
		"origin":      gin.H{"lat": 4.04, "lng": 9.76},
		"destination": gin.H{"lat": 4.06, "lng": 9.76},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("estimate status = %d, want 200 even with the provider down", w.Code)
	}
	var res struct {
		DistanceMeters float64 `json:"distance_meters"`
		Degraded       bool    `json:"degraded"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode estimate: %v", err)
	}
	if !res.Degraded {
		t.Error("estimate not marked degraded")
	}
	if res.DistanceMeters <= 0 {
		t.Errorf("degraded distance = %v, want positive", res.DistanceMeters)
	}
}

func TestRoutePlanEndpoints(t *testing.T) {
	r := newTestRouter(t, "http://localhost:1")

	stops := []gin.H{
		{"delivery_id": "D1", "role": "pickup", "lat": 4.05, "lng": 9.76},
		{"delivery_id": "D1", "role": "dropoff", "lat": 4.06, "lng": 9.77},
	}

	w, env := doJSON(t, r, http.MethodPost, "/mobile/route/optimize", "courier-1", gin.H{
		"current": gin.H{"lat": 4.04, "lng": 9.75},
		"stops":   stops,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("optimize status = %d, body %s", w.Code, w.Body.String())
	}
	var plan struct {
		Optimized bool `json:"optimized"`
		Stops     []struct {
			DeliveryID string `json:"delivery_id"`
			Role       string `json:"role"`
		} `json:"stops"`
	}
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if !plan.Optimized || len(plan.Stops) != 2 {
		t.Fatalf("plan = %+v, want optimized with 2 stops", plan)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/mobile/route/plan", "courier-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plan status = %d", w.Code)
	}

	// A courier without a plan gets a 404, not someone else's plan.
	w, _ = doJSON(t, r, http.MethodGet, "/mobile/route/plan", "courier-2", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign plan status = %d, want 404", w.Code)
	}

	// A manual order that drops before picking up is rejected.
	w, _ = doJSON(t, r, http.MethodPost, "/mobile/route/reorder", "courier-1", gin.H{
		"current": gin.H{"lat": 4.04, "lng": 9.75},
		"stops": []gin.H{
			{"delivery_id": "D1", "role": "dropoff", "lat": 4.06, "lng": 9.77},
			{"delivery_id": "D1", "role": "pickup", "lat": 4.05, "lng": 9.76},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("broken reorder status = %d, want 400", w.Code)
	}
}
