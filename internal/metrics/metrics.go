// Package metrics exposes settlement and treasury counters for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Set struct {
	registry *prometheus.Registry

	settlementsTotal   *prometheus.CounterVec
	settlementFailures *prometheus.CounterVec
	withdrawalsTotal   *prometheus.CounterVec
	withdrawnAmount    *prometheus.CounterVec
	lastWithdrawCycle  prometheus.Gauge
}

func New() *Set {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Set{
		registry: registry,
		settlementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiwager_settlements_total",
			Help: "Settled bets by outcome and settlement path.",
		}, []string{"outcome", "path"}),
		settlementFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiwager_settlement_failures_total",
			Help: "Settlement attempts that left the bet pending, by failure code.",
		}, []string{"code"}),
		withdrawalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiwager_fee_withdrawals_total",
			Help: "Successful treasury fee withdrawals by currency.",
		}, []string{"currency"}),
		withdrawnAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suiwager_fee_withdrawn_amount",
			Help: "Cumulative withdrawn fee amount by currency, in whole coins.",
		}, []string{"currency"}),
		lastWithdrawCycle: factory.NewGauge(prometheus.GaugeOpts{
			Name: "suiwager_last_withdraw_cycle_timestamp_seconds",
			Help: "Unix time of the most recent auto-withdraw cycle, successful or not.",
		}),
	}
}

func (s *Set) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Set) IncSettlement(outcome, path string) {
	if s == nil {
		return
	}
	s.settlementsTotal.WithLabelValues(outcome, path).Inc()
}

func (s *Set) IncSettlementFailure(code string) {
	if s == nil {
		return
	}
	s.settlementFailures.WithLabelValues(code).Inc()
}

func (s *Set) ObserveWithdrawal(currency string, amount float64) {
	if s == nil {
		return
	}
	s.withdrawalsTotal.WithLabelValues(currency).Inc()
	s.withdrawnAmount.WithLabelValues(currency).Add(amount)
}

func (s *Set) MarkWithdrawCycle(ts time.Time) {
	if s == nil {
		return
	}
	s.lastWithdrawCycle.Set(float64(ts.Unix()))
}
