package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"flightdelay/db"
	"flightdelay/model"
	"flightdelay/monitoring"
)

func TestMain(m *testing.M) {
	if err := db.InitDB("./test.db"); err != nil {
		panic(err)
	}
	code := m.Run()
	os.Remove("./test.db")
	os.Exit(code)
}

func testRecords() []model.FlightRecord {
	var records []model.FlightRecord
	for i := 0; i < 10; i++ {
		records = append(records, model.FlightRecord{
			Opera: "Grupo LATAM", TipoVuelo: "I", Mes: 7,
			FechaI: "2017-07-01 12:00:00", FechaO: "2017-07-01 12:40:00",
		})
		records = append(records, model.FlightRecord{
			Opera: "Sky Airline", TipoVuelo: "N", Mes: 3,
			FechaI: "2017-03-01 12:00:00", FechaO: "2017-03-01 12:05:00",
		})
	}
	return records
}

func newTestHandler(t *testing.T) (http.Handler, *monitoring.MetricsCollector) {
	t.Helper()

	delayModel := model.NewDelayModel(func() ([]model.FlightRecord, error) {
		return testRecords(), nil
	}, "", nil)
	if err := delayModel.EnsureTrained(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	metrics := monitoring.NewMetricsCollector()
	mux := http.NewServeMux()
	RegisterHandlers(mux, HandlerDeps{Model: delayModel, Metrics: metrics})
	return mux, metrics
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "OK" {
		t.Errorf("expected status OK, got %q", body["status"])
	}
}

func TestPredictHandler(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := PredictRequest{Flights: []FlightRequest{
		{Opera: "Grupo LATAM", TipoVuelo: "I", Mes: 7},
		{Opera: "Sky Airline", TipoVuelo: "N", Mes: 3},
	}}
	rec := doRequest(t, handler, "POST", "/predict", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Predict) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(resp.Predict))
	}
	for i, label := range resp.Predict {
		if label != 0 && label != 1 {
			t.Errorf("prediction %d: expected 0 or 1, got %d", i, label)
		}
	}
}

func TestPredictHandlerValidation(t *testing.T) {
	handler, _ := newTestHandler(t)

	cases := []struct {
		name string
		req  PredictRequest
	}{
		{"month out of range", PredictRequest{Flights: []FlightRequest{
			{Opera: "Grupo LATAM", TipoVuelo: "N", Mes: 13},
		}}},
		{"bad flight type", PredictRequest{Flights: []FlightRequest{
			{Opera: "Grupo LATAM", TipoVuelo: "X", Mes: 7},
		}}},
		{"empty operator", PredictRequest{Flights: []FlightRequest{
			{Opera: "", TipoVuelo: "N", Mes: 7},
		}}},
		{"no flights", PredictRequest{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, handler, "POST", "/predict", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPredictHandlerBadJSON(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/predict", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestPredictHandlerCacheHit(t *testing.T) {
	handler, metrics := newTestHandler(t)

	req := PredictRequest{Flights: []FlightRequest{
		{Opera: "Copa Air", TipoVuelo: "I", Mes: 10},
	}}

	first := doRequest(t, handler, "POST", "/predict", req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request failed: %d", first.Code)
	}
	second := doRequest(t, handler, "POST", "/predict", req)
	if second.Code != http.StatusOK {
		t.Fatalf("second request failed: %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached prediction differs from the computed one")
	}

	snapshot := metrics.Snapshot()
	if snapshot.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", snapshot.CacheHits)
	}
	if snapshot.Requests != 2 {
		t.Errorf("expected 2 requests counted, got %d", snapshot.Requests)
	}
}

func TestPredictHandlerRefitInvalidatesCache(t *testing.T) {
	// Toggling the dataset flips which flights are delayed, so a refit must
	// change the served label for the same request.
	lawDelayed := true
	loader := func() ([]model.FlightRecord, error) {
		lawO, otherO := "2017-05-01 12:40:00", "2017-05-01 12:05:00"
		if !lawDelayed {
			lawO, otherO = otherO, lawO
		}
		var records []model.FlightRecord
		for i := 0; i < 10; i++ {
			records = append(records, model.FlightRecord{
				Opera: "Latin American Wings", TipoVuelo: "N", Mes: 5,
				FechaI: "2017-05-01 12:00:00", FechaO: lawO,
			})
			records = append(records, model.FlightRecord{
				Opera: "Aerolineas Argentinas", TipoVuelo: "N", Mes: 5,
				FechaI: "2017-05-01 12:00:00", FechaO: otherO,
			})
		}
		return records, nil
	}

	delayModel := model.NewDelayModel(loader, "", nil)
	if err := delayModel.EnsureTrained(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux, HandlerDeps{Model: delayModel})

	req := PredictRequest{Flights: []FlightRequest{
		{Opera: "Latin American Wings", TipoVuelo: "N", Mes: 5},
	}}

	first := doRequest(t, mux, "POST", "/predict", req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request failed: %d", first.Code)
	}
	var firstResp PredictResponse
	if err := json.Unmarshal(first.Body.Bytes(), &firstResp); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if firstResp.Predict[0] != 1 {
		t.Fatalf("expected delayed before refit, got %d", firstResp.Predict[0])
	}

	// Refit directly, the way the dataset watcher does, bypassing the
	// retrain endpoint.
	lawDelayed = false
	if err := delayModel.Refit(); err != nil {
		t.Fatalf("Refit failed: %v", err)
	}

	second := doRequest(t, mux, "POST", "/predict", req)
	if second.Code != http.StatusOK {
		t.Fatalf("second request failed: %d", second.Code)
	}
	var secondResp PredictResponse
	if err := json.Unmarshal(second.Body.Bytes(), &secondResp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if secondResp.Predict[0] != 0 {
		t.Fatalf("cached label survived refit: got %d, current model says 0", secondResp.Predict[0])
	}
}

func TestModelInfoHandler(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, "GET", "/api/model/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var info map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info["trained"] != true {
		t.Error("expected trained=true")
	}
	features, ok := info["features"].([]interface{})
	if !ok || len(features) != model.FeatureCount() {
		t.Errorf("expected %d feature names, got %v", model.FeatureCount(), info["features"])
	}
}

func TestRetrainHandler(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, "POST", "/api/model/retrain", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "retrained" {
		t.Errorf("expected status retrained, got %q", body["status"])
	}
}

func TestMetricsHandler(t *testing.T) {
	handler, _ := newTestHandler(t)

	doRequest(t, handler, "POST", "/predict", PredictRequest{Flights: []FlightRequest{
		{Opera: "Grupo LATAM", TipoVuelo: "I", Mes: 7},
	}})

	rec := doRequest(t, handler, "GET", "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snapshot monitoring.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snapshot.Requests != 1 {
		t.Errorf("expected 1 request counted, got %d", snapshot.Requests)
	}
	if snapshot.PredictedOnTime+snapshot.PredictedDelayed != 1 {
		t.Errorf("expected 1 prediction counted, got %+v", snapshot)
	}
}

func TestPredictionLogHandler(t *testing.T) {
	handler, _ := newTestHandler(t)

	doRequest(t, handler, "POST", "/predict", PredictRequest{Flights: []FlightRequest{
		{Opera: "Grupo LATAM", TipoVuelo: "N", Mes: 12},
	}})

	rec := doRequest(t, handler, "GET", "/api/predictions?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Predictions []db.PredictionRow `json:"predictions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Predictions) == 0 {
		t.Error("expected at least one logged prediction")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, "GET", "/predict", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /predict, got %d", rec.Code)
	}
}
