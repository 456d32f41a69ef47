package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"flightdelay/db"
	"flightdelay/model"
	"flightdelay/monitoring"
)

// placeholderFechaI satisfies the feature builder's date parsing at inference
// time. It never produces a label: no Fecha-O exists on the request path.
const placeholderFechaI = "2017-01-01 12:00:00"

const predictionCacheSize = 4096

// HandlerDeps carries the collaborators the handlers close over.
type HandlerDeps struct {
	Model   *model.DelayModel
	Hub     *monitoring.Hub
	Metrics *monitoring.MetricsCollector
	Logger  *zap.Logger
}

type handlerSet struct {
	deps     HandlerDeps
	cache    *lru.Cache[string, int]
	modelGen atomic.Uint64
}

// syncCache purges cached labels once the served snapshot changes, whichever
// path retrained it: the retrain endpoint, a dataset-watch refit, or the
// lazy bootstrap.
func (hs *handlerSet) syncCache() {
	gen := hs.deps.Model.Generation()
	if hs.modelGen.Swap(gen) != gen {
		hs.cache.Purge()
	}
}

// RegisterHandlers mounts all routes on the mux.
func RegisterHandlers(mux *http.ServeMux, deps HandlerDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cache, _ := lru.New[string, int](predictionCacheSize)
	hs := &handlerSet{deps: deps, cache: cache}

	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("POST /predict", hs.handlePredict)
	mux.HandleFunc("GET /api/predictions", hs.handlePredictionLog)
	mux.HandleFunc("GET /api/model/info", hs.handleModelInfo)
	mux.HandleFunc("POST /api/model/retrain", hs.handleRetrain)
	mux.HandleFunc("GET /api/metrics", hs.handleMetrics)
	if deps.Hub != nil {
		mux.HandleFunc("GET /api/ws/predictions", deps.Hub.ServeWS)
	}
}

// FlightRequest mirrors the wire field names of the upstream dataset.
type FlightRequest struct {
	Opera     string `json:"OPERA"`
	TipoVuelo string `json:"TIPOVUELO"`
	Mes       int    `json:"MES"`
}

type PredictRequest struct {
	Flights []FlightRequest `json:"flights"`
}

type PredictResponse struct {
	Predict []int `json:"predict"`
}

func (hs *handlerSet) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func validateFlight(f FlightRequest) error {
	if f.Opera == "" {
		return &model.ValidationError{Field: "OPERA", Message: "must not be empty"}
	}
	if f.TipoVuelo != "I" && f.TipoVuelo != "N" {
		return &model.ValidationError{Field: "TIPOVUELO", Message: "must be I or N"}
	}
	if f.Mes < 1 || f.Mes > 12 {
		return &model.ValidationError{Field: "MES", Message: "must be between 1 and 12"}
	}
	return nil
}

func cacheKey(f FlightRequest) string {
	return fmt.Sprintf("%s|%s|%d", f.Opera, f.TipoVuelo, f.Mes)
}

func (hs *handlerSet) handlePredict(w http.ResponseWriter, r *http.Request) {
	if hs.deps.Metrics != nil {
		hs.deps.Metrics.IncRequests()
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Flights) == 0 {
		writeError(w, http.StatusBadRequest, "flights must not be empty")
		return
	}
	for _, flight := range req.Flights {
		if err := validateFlight(flight); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	hs.syncCache()

	predictions := make([]int, len(req.Flights))
	pending := make([]int, 0, len(req.Flights))
	for i, flight := range req.Flights {
		if label, ok := hs.cache.Get(cacheKey(flight)); ok {
			predictions[i] = label
		} else {
			pending = append(pending, i)
		}
	}
	if hits := len(req.Flights) - len(pending); hits > 0 && hs.deps.Metrics != nil {
		hs.deps.Metrics.IncCacheHits(hits)
	}

	if len(pending) > 0 {
		records := make([]model.FlightRecord, len(pending))
		for j, idx := range pending {
			flight := req.Flights[idx]
			records[j] = model.FlightRecord{
				Opera:     flight.Opera,
				TipoVuelo: flight.TipoVuelo,
				Mes:       flight.Mes,
				FechaI:    placeholderFechaI,
			}
		}

		features, _, err := model.BuildFeatures(records, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		labels, err := hs.deps.Model.Predict(features)
		if err != nil {
			status := http.StatusInternalServerError
			var shapeErr *model.ShapeMismatchError
			if errors.As(err, &shapeErr) {
				status = http.StatusBadRequest
			}
			hs.deps.Logger.Error("prediction failed", zap.Error(err))
			writeError(w, status, err.Error())
			return
		}

		for j, idx := range pending {
			predictions[idx] = labels[j]
			hs.cache.Add(cacheKey(req.Flights[idx]), labels[j])
		}
	}

	hs.recordPredictions(req.Flights, predictions)
	writeJSON(w, http.StatusOK, PredictResponse{Predict: predictions})
}

func (hs *handlerSet) recordPredictions(flights []FlightRequest, labels []int) {
	now := time.Now().UTC()
	rows := make([]db.PredictionRow, len(flights))
	for i, flight := range flights {
		rows[i] = db.PredictionRow{
			Opera:          flight.Opera,
			TipoVuelo:      flight.TipoVuelo,
			Mes:            flight.Mes,
			PredictedLabel: labels[i],
			CreatedAt:      now,
		}
		if hs.deps.Hub != nil {
			hs.deps.Hub.BroadcastPrediction(monitoring.PredictionEvent{
				Opera:          flight.Opera,
				TipoVuelo:      flight.TipoVuelo,
				Mes:            flight.Mes,
				PredictedLabel: labels[i],
				Timestamp:      now,
			})
		}
	}

	if err := db.SavePredictions(rows); err != nil {
		hs.deps.Logger.Warn("failed to log predictions", zap.Error(err))
	}
	if hs.deps.Metrics != nil {
		hs.deps.Metrics.AddPredictions(labels)
	}
}

func (hs *handlerSet) handlePredictionLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	rows, err := db.QueryPredictions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": rows})
}

func (hs *handlerSet) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"trained":  hs.deps.Model.Trained(),
		"features": model.FeatureNames(),
	}
	if clf := hs.deps.Model.Snapshot(); clf != nil && clf.Trained() {
		info["pos_weight"] = clf.PosWeight
		info["neg_weight"] = clf.NegWeight
	}
	if logs, err := db.LoadTrainingLog(5); err == nil {
		info["training_log"] = logs
	}
	writeJSON(w, http.StatusOK, info)
}

func (hs *handlerSet) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := hs.deps.Model.Refit(); err != nil {
		hs.deps.Logger.Error("retrain failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hs.syncCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "retrained"})
}

func (hs *handlerSet) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if hs.deps.Metrics == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	writeJSON(w, http.StatusOK, hs.deps.Metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
