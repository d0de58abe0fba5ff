package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	operations        *prometheus.CounterVec
	operationFailures *prometheus.CounterVec
	absorbedAccounts  prometheus.Counter
	collateralSales   prometheus.Counter
	utilization       prometheus.Gauge
	totalSupplyBase   prometheus.Gauge
	totalBorrowBase   prometheus.Gauge
	reserves          prometheus.Gauge
	pausedFlags       *prometheus.GaugeVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_operations_total",
				Help: "Count of completed market operations by name.",
			}, []string{"operation"}),
			operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_operation_failures_total",
				Help: "Count of rejected market operations by name.",
			}, []string{"operation"}),
			absorbedAccounts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_absorbed_accounts_total",
				Help: "Number of accounts absorbed by liquidators.",
			}),
			collateralSales: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_collateral_sales_total",
				Help: "Number of storefront collateral purchases.",
			}),
			utilization: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_utilization",
				Help: "Current borrow utilization of the market, scaled to [0,1].",
			}),
			totalSupplyBase: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_total_supply_base",
				Help: "Aggregate supply-side principal in base units.",
			}),
			totalBorrowBase: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_total_borrow_base",
				Help: "Aggregate borrow-side principal in base units.",
			}),
			reserves: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_reserves_base",
				Help: "Protocol reserves in base units.",
			}),
			pausedFlags: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "market_paused",
				Help: "Circuit breaker state by flag, 1 when paused.",
			}, []string{"flag"}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.operationFailures,
			marketRegistry.absorbedAccounts,
			marketRegistry.collateralSales,
			marketRegistry.utilization,
			marketRegistry.totalSupplyBase,
			marketRegistry.totalBorrowBase,
			marketRegistry.reserves,
			marketRegistry.pausedFlags,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveOperation(name string, err error) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	if err != nil {
		m.operationFailures.WithLabelValues(name).Inc()
		return
	}
	m.operations.WithLabelValues(name).Inc()
}

func (m *MarketMetrics) AddAbsorbedAccounts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.absorbedAccounts.Add(float64(n))
}

func (m *MarketMetrics) IncCollateralSale() {
	if m == nil {
		return
	}
	m.collateralSales.Inc()
}

func (m *MarketMetrics) SetUtilization(factor *big.Int, scale *big.Int) {
	if m == nil {
		return
	}
	m.utilization.Set(bigRatio(factor, scale))
}

func (m *MarketMetrics) SetAggregates(supply, borrow, reserves *big.Int) {
	if m == nil {
		return
	}
	m.totalSupplyBase.Set(bigFloat(supply))
	m.totalBorrowBase.Set(bigFloat(borrow))
	m.reserves.Set(bigFloat(reserves))
}

func (m *MarketMetrics) SetPaused(flag string, paused bool) {
	if m == nil || flag == "" {
		return
	}
	value := 0.0
	if paused {
		value = 1.0
	}
	m.pausedFlags.WithLabelValues(flag).Set(value)
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	out, _ := new(big.Float).SetInt(v).Float64()
	return out
}

func bigRatio(num, den *big.Int) float64 {
	if num == nil || den == nil || den.Sign() == 0 {
		return 0
	}
	out, _ := new(big.Rat).SetFrac(num, den).Float64()
	return out
}
