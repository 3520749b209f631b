// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts keychain operations. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	keys       *prometheus.GaugeVec
}

// NewMetrics creates the keychain collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keychain_operations_total",
				Help: "Keychain operations by operation and result.",
			},
			[]string{"op", "result"}),
		keys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keychain_keys",
				Help: "Number of stored keys by kind.",
			},
			[]string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.keys} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe records the outcome of one operation. Errors are bucketed by the
// condition they represent so the label set stays small.
func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
}

// setKeyCounts updates the stored key gauges.
func (m *Metrics) setKeyCounts(private, publicOnly int) {
	if m == nil {
		return
	}
	m.keys.WithLabelValues("private").Set(float64(private))
	m.keys.WithLabelValues("public_only").Set(float64(publicOnly))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrFingerprintExists):
		return "fingerprint_exists"
	case errors.Is(err, ErrFingerprintNotFound):
		return "fingerprint_not_found"
	case errors.Is(err, ErrLabelExists):
		return "label_exists"
	case errors.Is(err, ErrLabelInvalid):
		return "label_invalid"
	case errors.Is(err, ErrInvalidMnemonic), errors.Is(err, ErrInvalidPublicKey):
		return "invalid_input"
	default:
		return "error"
	}
}
