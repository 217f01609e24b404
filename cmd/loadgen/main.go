// Command loadgen drives synthetic traffic against a running infra-mind
// instance: health checks, metric ingestion and risk assessments.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/inframind/infra-mind/internal/utils"
)

type generator struct {
	logger    *slog.Logger
	client    *http.Client
	baseURL   string
	resources []string
	rng       *rand.Rand
}

func main() {
	var (
		target    string
		resources string
		cycles    int
		interval  time.Duration
		spikeRate float64
	)
	flag.StringVar(&target, "target", "http://localhost:8080", "Base URL of the infra-mind API")
	flag.StringVar(&resources, "resources", "server-001,server-002,db-01", "Comma-separated resource IDs")
	flag.IntVar(&cycles, "cycles", 20, "Number of traffic cycles (0 runs until interrupted)")
	flag.DurationVar(&interval, "interval", 500*time.Millisecond, "Delay between cycles")
	flag.Float64Var(&spikeRate, "spike-rate", 0.05, "Probability of an anomalous CPU spike per sample")
	flag.Parse()

	logger := utils.NewLogger("info", false)

	gen := &generator{
		logger:    logger,
		client:    &http.Client{Timeout: 5 * time.Second},
		baseURL:   strings.TrimRight(target, "/") + "/api/v1",
		resources: strings.Split(resources, ","),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("generating traffic", slog.String("target", gen.baseURL), slog.Int("cycles", cycles))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := 0
	for cycles == 0 || done < cycles {
		select {
		case <-ctx.Done():
			logger.Info("interrupted", slog.Int("cycles", done))
			return
		case <-ticker.C:
		}
		gen.cycle(ctx, spikeRate)
		done++
	}
	logger.Info("done", slog.Int("cycles", done))
}

// cycle mirrors one round of real client behaviour: a health probe, one
// ingested sample and a risk read for the same resource.
func (g *generator) cycle(ctx context.Context, spikeRate float64) {
	g.get(ctx, "/health")

	resource := g.resources[g.rng.Intn(len(g.resources))]
	cpu := 20 + g.rng.Float64()*45
	if g.rng.Float64() < spikeRate {
		cpu = 90 + g.rng.Float64()*10
	}
	sample := map[string]any{
		"resource_id":  resource,
		"cpu_usage":    cpu,
		"memory_usage": 30 + g.rng.Float64()*60,
		"gpu_usage":    g.rng.Float64() * 50,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	g.post(ctx, "/metrics/ingest", sample)

	g.get(ctx, fmt.Sprintf("/sla/%s/risk", resource))
}

func (g *generator) get(ctx context.Context, path string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return
	}
	g.do(req, path)
}

func (g *generator) post(ctx context.Context, path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	g.do(req, path)
}

func (g *generator) do(req *http.Request, path string) {
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("request failed", slog.String("path", path), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		g.logger.Warn("server error", slog.String("path", path), slog.Int("status", resp.StatusCode))
	}
}
