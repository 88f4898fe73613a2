package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ryanyen2/Scholet/pkg/types/common"
)

// Probe checks one dependency. A failing required probe makes the service
// not ready; a failing optional one only degrades it.
type Probe struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

type HealthHandler struct {
	probes  []Probe
	version string
	startAt time.Time
	timeout time.Duration
}

func NewHealthHandler(version string, probes ...Probe) *HealthHandler {
	return &HealthHandler{
		probes:  probes,
		version: version,
		startAt: time.Now(),
		timeout: 5 * time.Second,
	}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/readyz", h.Readiness)
	r.Get("/healthz/detail", h.Detailed)
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type DetailedResponse struct {
	common.HealthReport
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// Liveness never touches dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  h.uptime(),
	}, nil)
}

// Readiness returns 503 only when a required probe fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	report := h.check(r.Context())
	status := http.StatusOK
	if report.Status == common.HealthDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, report, nil)
}

func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	report := h.check(r.Context())
	status := http.StatusOK
	if report.Status != common.HealthUp {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, DetailedResponse{
		HealthReport: report,
		Version:      h.version,
		Uptime:       h.uptime(),
	}, nil)
}

func (h *HealthHandler) uptime() string {
	return time.Since(h.startAt).Truncate(time.Second).String()
}

// check runs every probe concurrently. Components are sorted by name.
func (h *HealthHandler) check(ctx context.Context) common.HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	components := make([]common.ComponentHealth, len(h.probes))
	var wg sync.WaitGroup
	for i, p := range h.probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			start := time.Now()
			err := p.Check(ctx)
			c := common.ComponentHealth{
				Name:    p.Name,
				Status:  common.HealthUp,
				Latency: time.Since(start).Truncate(time.Microsecond).String(),
			}
			if err != nil {
				c.Status = common.HealthDown
				c.Message = err.Error()
			}
			components[i] = c
		}(i, p)
	}
	wg.Wait()

	report := common.HealthReport{Status: common.HealthUp, Components: components}
	for i, c := range components {
		if c.Status == common.HealthUp {
			continue
		}
		if h.probes[i].Required {
			report.Status = common.HealthDown
		} else if report.Status == common.HealthUp {
			report.Status = common.HealthDegraded
		}
	}
	sort.Slice(report.Components, func(a, b int) bool {
		return report.Components[a].Name < report.Components[b].Name
	})
	return report
}
