package main

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/config"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/fyrsmithlabs/dtiset/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// runGauges are the per-run gauges pushed to a Prometheus Pushgateway.
type runGauges struct {
	registry *prometheus.Registry

	success      prometheus.Gauge
	duration     prometheus.Gauge
	completed    prometheus.Gauge
	measurements prometheus.Gauge
	conflicts    prometheus.Gauge
	backfilled   prometheus.Gauge
	pairs        *prometheus.GaugeVec
	violations   *prometheus.GaugeVec
}

func newRunGauges() *runGauges {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: "dtiset", Subsystem: "run", Name: name, Help: help})
	}

	return &runGauges{
		registry:     reg,
		success:      gauge("success", "Whether the last run succeeded (1) or failed (0)"),
		duration:     gauge("duration_seconds", "Wall time of the last run in seconds"),
		completed:    gauge("last_completion_timestamp_seconds", "Unix time the last run finished"),
		measurements: gauge("measurements", "Activity rows read by the last run"),
		conflicts:    gauge("conflicts", "Keys excluded for conflicting variant metadata"),
		backfilled:   gauge("backfilled_pairs", "Pairs added from mechanism data without measurements"),
		pairs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dtiset",
			Subsystem: "run",
			Name:      "pairs",
			Help:      "Pairs in the dataset by DTI label",
		}, []string{"label"}),
		violations: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dtiset",
			Subsystem: "run",
			Name:      "violations",
			Help:      "Invariant violations by invariant",
		}, []string{"invariant"}),
	}
}

func (g *runGauges) observe(rep *pipeline.Report, elapsed time.Duration, ok bool) {
	if ok {
		g.success.Set(1)
	} else {
		g.success.Set(0)
	}
	g.duration.Set(elapsed.Seconds())
	g.completed.SetToCurrentTime()
	if rep == nil {
		return
	}

	g.measurements.Set(float64(rep.Measurements))
	g.conflicts.Set(float64(len(rep.Conflicts)))
	g.backfilled.Set(float64(rep.Backfilled))
	for label, n := range rep.Labels {
		g.pairs.WithLabelValues(string(label)).Set(float64(n))
	}
	if rep.Invariants != nil {
		for _, v := range rep.Invariants.Violations {
			g.violations.WithLabelValues(string(v.Invariant)).Inc()
		}
	}
}

// pushRunMetrics pushes the run gauges grouped by run id. Push failures are
// logged only.
func pushRunMetrics(ctx context.Context, cfg config.MetricsConfig, rep *pipeline.Report, elapsed time.Duration, ok bool, logger *logging.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}

	g := newRunGauges()
	g.observe(rep, elapsed, ok)

	pusher := push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(g.registry)
	if rep != nil && rep.RunID != "" {
		pusher = pusher.Grouping("run_id", rep.RunID)
	}

	// The run context may already be cancelled.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := pusher.PushContext(pushCtx); err != nil {
		logger.Warn(ctx, "pushing run metrics failed", logging.Endpoint("pushgateway", cfg.PushgatewayURL), zap.Error(err))
		return
	}
	logger.Debug(ctx, "run metrics pushed", logging.Endpoint("pushgateway", cfg.PushgatewayURL))
}
