// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesReceived tracks inbound messages accepted at the envelope layer.
	MessagesReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "received_total",
			Help:      "Total number of inbound messages unpacked",
		},
		[]string{"protocol"},
	)

	// MessagesStored tracks messages persisted to a recipient inbox/outbox.
	MessagesStored = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "stored_total",
			Help:      "Total number of messages written to the store",
		},
	)

	// MessagesDelivered tracks messages pushed over a live-delivery channel.
	MessagesDelivered = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "delivered_total",
			Help:      "Total number of messages pushed via live delivery",
		},
	)

	// MessagesExpired tracks messages removed by the expiry sweeper.
	MessagesExpired = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "expired_total",
			Help:      "Total number of messages removed by the expiry sweeper",
		},
	)

	// ProblemReportsSent tracks problem-report responses produced by the processor.
	ProblemReportsSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "problem_reports_total",
			Help:      "Total number of problem reports returned to senders",
		},
		[]string{"code"},
	)

	// ProcessingDuration tracks end-to-end processor latency.
	ProcessingDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processing_duration_seconds",
			Help:      "Time spent unpacking, dispatching and responding to a message",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)
)
