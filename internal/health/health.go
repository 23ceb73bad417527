// Package health aggregates the health of the downstream services the gateway
// fronts, plus local dependencies such as the route cache.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusError     = "error"

	DefaultTimeout = 5 * time.Second
)

// Service is a remote health endpoint
type Service struct {
	Name string
	URL  string
}

// LocalCheck probes an in-process dependency. A failure makes the whole
// report an error rather than degraded.
type LocalCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ServiceStatus is one entry of a report
type ServiceStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is the aggregated health answer
type Report struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Services []ServiceStatus `json:"services,omitempty"`
}

// HTTPStatus maps the report status to a response code
func (r Report) HTTPStatus() int {
	switch r.Status {
	case StatusHealthy:
		return http.StatusOK
	case StatusDegraded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Reporter produces health reports
type Reporter interface {
	Check(ctx context.Context) Report
}

// Checker polls every service concurrently
type Checker struct {
	services   []Service
	locals     []LocalCheck
	httpClient *http.Client
	logger     *zap.Logger
}

// NewChecker creates a checker. A non-positive timeout uses DefaultTimeout.
func NewChecker(services []Service, locals []LocalCheck, timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		services:   services,
		locals:     locals,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("health"),
	}
}

// Check runs all probes. Results keep the configured service order.
func (c *Checker) Check(ctx context.Context) Report {
	for _, local := range c.locals {
		if err := local.Check(ctx); err != nil {
			c.logger.Error("local health check failed", zap.String("check", local.Name), zap.Error(err))
			return Report{Status: StatusError, Message: fmt.Sprintf("%s: %v", local.Name, err)}
		}
	}

	statuses := make([]ServiceStatus, len(c.services))
	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range c.services {
		g.Go(func() error {
			statuses[i] = c.probe(gctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Services: statuses}
	for _, s := range statuses {
		if s.Status != StatusHealthy {
			report.Status = StatusDegraded
			break
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, svc Service) ServiceStatus {
	status := ServiceStatus{Service: svc.Name, Status: StatusHealthy}

	err := c.get(ctx, svc.URL)
	status.Timestamp = time.Now().UTC()
	if err != nil {
		c.logger.Warn("service unhealthy", zap.String("service", svc.Name), zap.Error(err))
		status.Status = StatusUnhealthy
		status.Error = err.Error()
	}
	return status
}

func (c *Checker) get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
