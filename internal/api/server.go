package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fixed-pool/internal/events"
	"fixed-pool/internal/logger"
	"fixed-pool/internal/metrics"
	"fixed-pool/internal/scenario"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Server はAPIサーバー
type Server struct {
	addr      string
	bus       *events.Bus
	registry  *prometheus.Registry
	collector *metrics.Collector
	log       *logger.Logger

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	engine     *scenario.Engine
	config     scenario.Config
	lastResult *scenario.Result
	lastError  string
	wsClients  map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector, err := metrics.NewCollector(registry, "fixedpool")
	if err != nil {
		return nil, fmt.Errorf("failed to register pool metrics: %w", err)
	}

	return &Server{
		addr:      addr,
		bus:       events.NewBus(),
		registry:  registry,
		collector: collector,
		log:       logger.Default,
		wsClients: make(map[*websocket.Conn]bool),
	}, nil
}

// SetLogger はロガーを設定する
func (s *Server) SetLogger(l *logger.Logger) {
	s.log = l
}

// EventBus はサーバーのイベントバスを返す
func (s *Server) EventBus() *events.Bus {
	return s.bus
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/run/stop", s.handleRunStop)
	mux.HandleFunc("/api/result", s.handleResult)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する。ctx がキャンセルされるとシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドで状態とイベントを配信
	go s.broadcastLoop(ctx)
	go s.forwardEvents(ctx)

	s.log.Info("api", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		s.stopRun()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.bus.Close()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running       bool   `json:"running"`
	RunID         string `json:"run_id,omitempty"`
	ScenarioName  string `json:"scenario_name,omitempty"`
	Workers       int    `json:"workers"`
	BusyWorkers   int    `json:"busy_workers"`
	IdleWorkers   int    `json:"idle_workers"`
	FailedWorkers int    `json:"failed_workers"`
	Items         int    `json:"items"`
	Produced      uint64 `json:"produced"`
	Processed     uint64 `json:"processed"`
	Joined        bool   `json:"joined"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Running:      s.running,
		ScenarioName: s.config.Name,
		Items:        s.config.Items,
	}

	if s.engine != nil {
		resp.RunID = s.engine.RunID()
		resp.Produced = s.engine.Produced()
		if stats := s.engine.Stats(); stats != nil {
			resp.Workers = stats.Size
			resp.BusyWorkers = stats.BusyWorkers
			resp.IdleWorkers = stats.IdleWorkers
			resp.FailedWorkers = stats.FailedWorkers
			resp.Processed = stats.Metrics.Processed
			resp.Joined = stats.Joined
		}
	}

	return resp
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	// 未実行でも null ではなく空配列を返す
	workers := []any{}
	if engine != nil {
		for _, info := range engine.WorkerStates() {
			workers = append(workers, info)
		}
	}

	s.writeJSON(w, workers)
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	Dispatched   uint64  `json:"dispatched"`
	Processed    uint64  `json:"processed"`
	Failed       uint64  `json:"failed"`
	Throughput   float64 `json:"throughput"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
	AvgWaitMs    float64 `json:"avg_wait_ms"`
	FailureRate  float64 `json:"failure_rate"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	resp := MetricsResponse{}
	if engine != nil {
		if snap := engine.Metrics(); snap != nil {
			resp = MetricsResponse{
				Dispatched:   snap.Dispatched,
				Processed:    snap.Processed,
				Failed:       snap.Failed,
				Throughput:   snap.OverallThroughput,
				AvgLatencyMs: durationMs(snap.AverageLatency),
				P99LatencyMs: durationMs(snap.P99Latency),
				AvgWaitMs:    durationMs(snap.AverageWait),
				FailureRate:  snap.FailureRate,
			}
		}
	}

	s.writeJSON(w, resp)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RunRequest はシナリオ実行リクエスト
type RunRequest struct {
	Preset  string  `json:"preset"`
	Workers int     `json:"workers,omitempty"`
	Items   int     `json:"items,omitempty"`
	Rate    float64 `json:"rate,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// プリセット取得（未指定なら quick）
	config := scenario.QuickScenario()
	if req.Preset != "" {
		preset, ok := scenario.GetPreset(req.Preset)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown preset: %s", req.Preset), http.StatusBadRequest)
			return
		}
		config = preset
	}

	// オーバーライド
	if req.Workers > 0 {
		config.Workers = req.Workers
	}
	if req.Items > 0 {
		config.Items = req.Items
	}
	if req.Rate > 0 {
		config.Rate = req.Rate
	}

	if err := s.startRun(config); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	s.writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started", "scenario": config.Name})
}

// startRun はシナリオをバックグラウンドで実行する
func (s *Server) startRun(config scenario.Config) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return scenario.ErrAlreadyRunning
	}

	engine := scenario.New(config)
	engine.SetEventBus(s.bus)
	engine.SetMetricsCollector(s.collector)
	engine.SetLogger(s.log)

	ctx, cancel := context.WithCancel(context.Background())
	s.config = config
	s.engine = engine
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	go func() {
		defer cancel()
		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.lastResult = result
		s.lastError = ""
		if err != nil {
			s.lastError = err.Error()
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Error("api", "Scenario failed: %v", err)
		} else {
			s.log.Info("api", "Scenario completed: %d items processed", result.Processed)
		}

		s.broadcast(map[string]any{
			"type":   "run_complete",
			"result": result,
		})
	}()

	return nil
}

// stopRun は実行中のシナリオをキャンセルする
func (s *Server) stopRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Server) handleRunStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.stopRun() {
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// ResultResponse は直近の実行結果レスポンス
type ResultResponse struct {
	Result *scenario.Result `json:"result"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	resp := ResultResponse{Result: s.lastResult, Error: s.lastError}
	s.mu.RUnlock()

	if resp.Result == nil {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}

	s.writeJSON(w, resp)
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Workers     int    `json:"workers"`
	Items       int    `json:"items"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        config.Name,
			Description: config.Description,
			Workers:     config.Workers,
			Items:       config.Items,
		})
	}

	s.writeJSON(w, presets)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中のWebSocketクライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		s.log.Error("api", "Failed to encode broadcast: %v", err)
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// forwardEvents はイベントバスのイベントをWebSocketクライアントへ流す
func (s *Server) forwardEvents(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": e,
			})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}

			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("api", "Failed to encode JSON: %v", err)
	}
}
