/*
 * MailHook - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message outcomes, used as the "outcome" label.
const (
	OutcomeProcessed   = "processed"
	OutcomeDropped     = "dropped"
	OutcomeDecodeError = "decode_error"
	OutcomeTransient   = "transient_error"
	OutcomeFailed      = "failed"
)

type Metrics struct {
	Messages           *prometheus.CounterVec
	ConnectionFailures prometheus.Counter
	PollCycles         prometheus.Counter
	Connected          prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	f := promauto.With(reg)
	return &Metrics{
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailhook_messages_total",
			Help: "Messages handled, by handler and outcome",
		}, []string{"handler", "outcome"}),
		ConnectionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mailhook_connection_failures_total",
			Help: "Failed connect, select, search or fetch attempts",
		}),
		PollCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "mailhook_poll_cycles_total",
			Help: "Completed poll cycles",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailhook_connected",
			Help: "1 if the mailbox connection is up",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
