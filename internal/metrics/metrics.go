package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del engine. Viven en un paquete aparte para que los managers
// puedan incrementarlas sin depender del paquete HTTP.

var (
	RateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Decisiones del rate limiter por acción y resultado",
	}, []string{"action", "outcome"})

	RateFailOpen = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_fail_open_total",
		Help: "Checks del rate limiter que fallaron abiertos por error del store",
	}, []string{"action"})

	OTPVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verifications_total",
		Help: "Verificaciones de OTP por resultado",
	}, []string{"outcome"})

	Revocations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credential_revocations_total",
		Help: "Credenciales agregadas al registro de revocación",
	})

	RefreshRotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_rotations_total",
		Help: "Rotaciones de refresh por resultado",
	}, []string{"outcome"})

	StateConsumptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_state_consumptions_total",
		Help: "Consumos de state OAuth por resultado",
	}, []string{"outcome"})

	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ttl_store_op_latency_ms",
		Help:    "Latencia de operaciones contra el TTL store en milisegundos",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"op"})
)

func all() []prometheus.Collector {
	return []prometheus.Collector{
		RateDecisions, RateFailOpen, OTPVerifications, Revocations,
		RefreshRotations, StateConsumptions, StoreLatency,
	}
}

// Register registra las métricas en el registry dado (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range all() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
