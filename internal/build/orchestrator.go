// Package build triggers cube builds and waits for them to finish.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cube-sync/internal/domain"
)

// DefaultInterval is the pause between two status polls.
const DefaultInterval = time.Second

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInterval sets the pause between status polls.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout bounds the whole wait. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// Orchestrator runs a build to completion.
type Orchestrator struct {
	gw       domain.BuildGateway
	baseURL  string
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewOrchestrator creates an Orchestrator. baseURL is the platform address used
// to point operators at a failed cube.
func NewOrchestrator(gw domain.BuildGateway, baseURL string, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:       gw,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CubeURL returns the platform UI page of a datamodel.
func (o *Orchestrator) CubeURL(datamodelOID string) string {
	return fmt.Sprintf("%s/app/data/cubes/%s", o.baseURL, datamodelOID)
}

// Run triggers a build of the datamodel and polls until it reaches a terminal
// status. A "failed" build returns *domain.BuildFailedError; every other
// terminal status is success.
func (o *Orchestrator) Run(ctx context.Context, datamodelOID string, buildType domain.BuildType) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	buildOID, err := o.gw.TriggerBuild(ctx, datamodelOID, buildType)
	if err != nil {
		return fmt.Errorf("trigger build: %w", err)
	}
	o.logger.Info("build triggered", "build", buildOID, "datamodel", datamodelOID, "build_type", string(buildType))

	limiter := rate.NewLimiter(rate.Every(o.interval), 1)
	var last domain.BuildStatus
	for {
		if err := pace(ctx, limiter); err != nil {
			return fmt.Errorf("wait for build %s: %w", buildOID, err)
		}

		status, err := o.gw.GetBuildStatus(ctx, buildOID)
		if err != nil {
			return fmt.Errorf("get build status: %w", err)
		}

		if status == domain.BuildStatusFailed {
			o.logger.Error("build status", "build", buildOID, "status", string(status))
			return &domain.BuildFailedError{DatamodelOID: datamodelOID, URL: o.CubeURL(datamodelOID)}
		}
		if status != last {
			o.logger.Info("build status", "build", buildOID, "status", string(status))
			last = status
		}
		if !status.InProgress() {
			return nil
		}
	}
}

// pace blocks until the limiter grants the next poll. Unlike rate.Limiter.Wait
// it keeps waiting up to the context deadline, so a poll due before the
// deadline is never skipped and the deadline error surfaces only once it
// has actually passed.
func pace(ctx context.Context, limiter *rate.Limiter) error {
	r := limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
