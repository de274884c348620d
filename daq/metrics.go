// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the acquisition counters of a device.
// Metrics are only exported when a registerer was provided.
type metrics struct {
	events     prometheus.Counter
	drops      prometheus.Counter
	recoveries prometheus.Counter
	faults     prometheus.Counter
	occupancy  prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, name string, occ func() float64) *metrics {
	var (
		f      = promauto.With(reg)
		labels = prometheus.Labels{"device": name}
	)
	return &metrics{
		events: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "silena",
			Subsystem:   "daq",
			Name:        "events_total",
			Help:        "Number of events stored in the ring.",
			ConstLabels: labels,
		}),
		drops: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "silena",
			Subsystem:   "daq",
			Name:        "drops_total",
			Help:        "Number of times the ring was found full.",
			ConstLabels: labels,
		}),
		recoveries: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "silena",
			Subsystem:   "daq",
			Name:        "recoveries_total",
			Help:        "Number of recoveries from the hanging state.",
			ConstLabels: labels,
		}),
		faults: f.NewCounter(prometheus.CounterOpts{
			Namespace:   "silena",
			Subsystem:   "daq",
			Name:        "faults_total",
			Help:        "Number of hardware faults.",
			ConstLabels: labels,
		}),
		occupancy: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "silena",
			Subsystem:   "daq",
			Name:        "occupancy",
			Help:        "Number of events waiting in the ring.",
			ConstLabels: labels,
		}, occ),
	}
}
