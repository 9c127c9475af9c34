// Copyright 2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package metrics exports netsnmp request statistics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shanept/netsnmp"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultTimeout = "timeout"
	ResultFailed  = "failed" // the agent answered with an error-status or report
	ResultError   = "error"
)

// Collector is a netsnmp.Observer that counts requests, retries and results
// by PDU type, and records request latency.
type Collector struct {
	sent    *prometheus.CounterVec
	retried *prometheus.CounterVec
	results *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var _ netsnmp.Observer = (*Collector)(nil)

// NewCollector creates a Collector whose metrics carry the target label,
// and registers it with reg.
func NewCollector(reg prometheus.Registerer, target string) (*Collector, error) {
	labels := prometheus.Labels{"target": target}
	c := &Collector{
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "snmp_requests_sent_total",
				Help:        "Number of SNMP requests sent, not counting retries",
				ConstLabels: labels,
			},
			[]string{"pdu"},
		),
		retried: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "snmp_request_retries_total",
				Help:        "Number of SNMP requests resent after a timeout",
				ConstLabels: labels,
			},
			[]string{"pdu"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "snmp_request_results_total",
				Help:        "Number of completed SNMP requests by result",
				ConstLabels: labels,
			},
			[]string{"pdu", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "snmp_response_duration_seconds",
				Help:        "SNMP request latency, from first send to completion",
				ConstLabels: labels,
				Buckets:     []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"pdu"},
		),
	}
	for _, m := range []prometheus.Collector{c.sent, c.retried, c.results, c.latency} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RequestSent implements netsnmp.Observer.
func (c *Collector) RequestSent(t netsnmp.PDUType) {
	c.sent.WithLabelValues(t.String()).Inc()
}

// RequestRetried implements netsnmp.Observer.
func (c *Collector) RequestRetried(t netsnmp.PDUType) {
	c.retried.WithLabelValues(t.String()).Inc()
}

// RequestCompleted implements netsnmp.Observer.
func (c *Collector) RequestCompleted(t netsnmp.PDUType, elapsed time.Duration, err error) {
	c.results.WithLabelValues(t.String(), Result(err)).Inc()
	c.latency.WithLabelValues(t.String()).Observe(elapsed.Seconds())
}

// Result classifies the outcome of a request for the result label.
func Result(err error) string {
	var failed *netsnmp.RequestFailedError
	switch {
	case err == nil:
		return ResultOK
	case netsnmp.IsTimeout(err):
		return ResultTimeout
	case errors.As(err, &failed):
		return ResultFailed
	}
	return ResultError
}
