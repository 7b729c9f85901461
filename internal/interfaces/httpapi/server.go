package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"balscan/internal/application"
	"balscan/internal/config"
	"balscan/internal/domain"

	"github.com/shopspring/decimal"
)

const weiDecimals = 18

// CycleStatus exposes the last emitted cycle.
type CycleStatus interface {
	Latest() (application.CycleReport, bool)
}

type CycleStore interface {
	RecentCycles(ctx context.Context, limit int) ([]domain.CycleSummary, error)
	Ping(ctx context.Context) error
}

// BalanceLookup resolves one ETH address to its balance in wei.
type BalanceLookup interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
}

// Pinger is an optional backend whose health gates /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	cfg       config.Config
	status    CycleStatus
	cycles    CycleStore
	balances  BalanceLookup
	metrics   *Metrics
	buildInfo BuildInfo
	checks    []readinessCheck
}

type readinessCheck struct {
	name   string
	pinger Pinger
}

// NewServer requires status. cycles and balances may be nil, which disables /cycles and
// /eth/balance respectively.
func NewServer(cfg config.Config, status CycleStatus, cycles CycleStore, balances BalanceLookup, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if status == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, status: status, cycles: cycles, balances: balances, metrics: metrics, buildInfo: buildInfo}, nil
}

// AddReadinessCheck makes /readyz fail while p does not answer. Call it before serving.
func (s *Server) AddReadinessCheck(name string, p Pinger) {
	if p == nil {
		return
	}
	s.checks = append(s.checks, readinessCheck{name: name, pinger: p})
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/results", s.handleResults)
	mux.HandleFunc("/cycles", s.handleCycles)
	mux.HandleFunc("/eth/balance", s.handleETHBalance)
	mux.HandleFunc("/config", s.handleConfig)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once a cycle has emitted and the ledger and other checked
// backends answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.cycles != nil {
		if err := s.cycles.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "ledger not ready")
			return
		}
	}
	for _, check := range s.checks {
		if err := check.pinger.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, check.name+" not ready")
			return
		}
	}
	if _, ok := s.status.Latest(); !ok {
		respondError(w, http.StatusServiceUnavailable, "no cycle completed yet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type cycleView struct {
	ID            string    `json:"id"`
	Mode          string    `json:"mode"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	DurationMS    int64     `json:"duration_ms"`
	Addresses     int       `json:"addresses"`
	Batches       int       `json:"batches"`
	FailedBatches int       `json:"failed_batches"`
	Hits          int       `json:"hits"`
	NewHits       int       `json:"new_hits"`
	Emitted       bool      `json:"emitted"`
	Error         string    `json:"error,omitempty"`
}

func toCycleView(summary domain.CycleSummary) cycleView {
	return cycleView{
		ID:            summary.ID,
		Mode:          summary.Mode,
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
		DurationMS:    summary.Duration().Milliseconds(),
		Addresses:     summary.Addresses,
		Batches:       summary.Batches,
		FailedBatches: summary.FailedBatches,
		Hits:          summary.Hits,
		NewHits:       summary.NewHits,
		Emitted:       summary.Emitted,
		Error:         summary.Error,
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	report, ok := s.status.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, "no results yet")
		return
	}
	addresses := make([]string, len(report.Results))
	for i, addr := range report.Results {
		addresses[i] = string(addr)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"cycle":     toCycleView(report.Summary),
		"addresses": addresses,
	})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if s.cycles == nil {
		respondError(w, http.StatusNotFound, "cycle ledger disabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cycles, err := s.cycles.RecentCycles(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	views := make([]cycleView, 0, len(cycles))
	for _, c := range cycles {
		views = append(views, toCycleView(c))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleETHBalance(w http.ResponseWriter, r *http.Request) {
	if s.balances == nil {
		respondError(w, http.StatusNotFound, "eth balance lookup disabled")
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	wei, err := s.balances.Balance(r.Context(), address)
	if err != nil {
		respondError(w, http.StatusBadGateway, "balance lookup failed: "+string(domain.KindOf(err)))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"address": address,
		"wei":     wei.String(),
		"eth":     WeiToEther(wei),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"run_mode":       s.cfg.RunMode,
		"cycle_interval": s.cfg.CycleInterval.String(),
		"input_file":     s.cfg.InputFile,
		"output_file":    s.cfg.OutputFile,
		"eth": map[string]any{
			"provider":      s.cfg.ETHProvider,
			"api_url":       s.cfg.ETHAPIURL,
			"rate_limit":    s.cfg.ETHRateLimit,
			"max_pack_size": s.cfg.ETHMaxPackSize,
			"enabled":       s.cfg.EtherscanAPIKey != "" || s.cfg.ETHProvider == "rpc",
		},
		"btc": map[string]any{
			"api_url":        s.cfg.BTCAPIURL,
			"rate_limit":     s.cfg.BTCRateLimit,
			"max_pack_size":  s.cfg.BTCMaxPackSize,
			"response_shape": s.cfg.BTCResponseShape,
		},
		"http_timeout": s.cfg.HTTPTimeout.String(),
		"max_workers":  s.cfg.MaxWorkers,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

// WeiToEther renders a wei amount in ether without losing precision.
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -weiDecimals).String()
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 20, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
