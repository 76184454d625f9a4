package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the engine's Prometheus collectors. A nil *Registry is valid
// and records nothing.
type Registry struct {
	reg *prometheus.Registry

	Signals         *prometheus.CounterVec
	SignalsDropped  *prometheus.CounterVec
	TargetsRanked   prometheus.Gauge
	Admissions      *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Trades          *prometheus.CounterVec
	ProviderCalls   *prometheus.CounterVec
	BatchOps        *prometheus.CounterVec
	LoopTicks       *prometheus.CounterVec
	LoopErrors      *prometheus.CounterVec
	LoopDuration    *prometheus.HistogramVec
	FeeUnitPrice    prometheus.Gauge
	OpenPositions   prometheus.Gauge
	VolumeDecisions *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_signals_total",
			Help: "Normalized signals by kind and source",
		}, []string{"kind", "source"}),
		SignalsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_signals_dropped_total",
			Help: "Raw records dropped before scoring",
		}, []string{"reason"}),
		TargetsRanked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_targets_ranked",
			Help: "Targets currently held by the ranker",
		}),
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_admissions_total",
			Help: "Admission decisions by outcome and reason",
		}, []string{"outcome", "reason"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_position_transitions_total",
			Help: "Position state transitions",
		}, []string{"from", "to"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_trades_total",
			Help: "Trade executor calls by side and result",
		}, []string{"side", "result"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_provider_calls_total",
			Help: "Market data provider calls by provider and result",
		}, []string{"provider", "result"}),
		BatchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_wallet_batch_ops_total",
			Help: "Wallet batch per-account operations by op and result",
		}, []string{"op", "result"}),
		LoopTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_loop_ticks_total",
			Help: "Engine loop iterations",
		}, []string{"loop"}),
		LoopErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_loop_errors_total",
			Help: "Engine loop iterations that returned an error",
		}, []string{"loop"}),
		LoopDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sniper_loop_duration_seconds",
			Help:    "Engine loop iteration duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"loop"}),
		FeeUnitPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_fee_unit_price_microlamports",
			Help: "Last recommended compute unit price",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_open_positions",
			Help: "Open or pending positions",
		}),
		VolumeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sniper_volume_decisions_total",
			Help: "Volume strategy triggers by strategy and result",
		}, []string{"strategy", "result"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Signals, r.SignalsDropped, r.TargetsRanked, r.Admissions, r.Transitions,
		r.Trades, r.ProviderCalls, r.BatchOps, r.LoopTicks, r.LoopErrors,
		r.LoopDuration, r.FeeUnitPrice, r.OpenPositions, r.VolumeDecisions,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

func (r *Registry) Signal(kind, source string) {
	if r == nil {
		return
	}
	r.Signals.WithLabelValues(kind, source).Inc()
}

func (r *Registry) SignalDropped(reason string) {
	if r == nil {
		return
	}
	r.SignalsDropped.WithLabelValues(reason).Inc()
}

func (r *Registry) SetTargets(n int) {
	if r == nil {
		return
	}
	r.TargetsRanked.Set(float64(n))
}

func (r *Registry) Admission(allowed bool, reason string) {
	if r == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	r.Admissions.WithLabelValues(outcome, reason).Inc()
}

func (r *Registry) Transition(from, to string) {
	if r == nil {
		return
	}
	r.Transitions.WithLabelValues(from, to).Inc()
}

func (r *Registry) Trade(side string, err error) {
	if r == nil {
		return
	}
	r.Trades.WithLabelValues(side, result(err)).Inc()
}

func (r *Registry) Provider(provider string, err error) {
	if r == nil {
		return
	}
	r.ProviderCalls.WithLabelValues(provider, result(err)).Inc()
}

func (r *Registry) BatchOp(op string, err error) {
	if r == nil {
		return
	}
	r.BatchOps.WithLabelValues(op, result(err)).Inc()
}

func (r *Registry) LoopTick(loop string, seconds float64, err error) {
	if r == nil {
		return
	}
	r.LoopTicks.WithLabelValues(loop).Inc()
	r.LoopDuration.WithLabelValues(loop).Observe(seconds)
	if err != nil {
		r.LoopErrors.WithLabelValues(loop).Inc()
	}
}

func (r *Registry) SetFeeUnitPrice(v uint64) {
	if r == nil {
		return
	}
	r.FeeUnitPrice.Set(float64(v))
}

func (r *Registry) SetOpenPositions(n int) {
	if r == nil {
		return
	}
	r.OpenPositions.Set(float64(n))
}

func (r *Registry) VolumeDecision(strategy, res string) {
	if r == nil {
		return
	}
	r.VolumeDecisions.WithLabelValues(strategy, res).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
