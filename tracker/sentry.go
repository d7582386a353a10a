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

package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

var errEventDropped = errors.New("event dropped by sentry client")

type SentryConfig struct {
	DSN         string
	Environment string
	Debug       bool
	// Transport overrides the default asynchronous HTTP transport.
	Transport    sentry.Transport
	FlushTimeout time.Duration
}

type SentryReporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

func NewSentryReporter(cfg *SentryConfig) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
		Transport:   cfg.Transport,
	})
	if err != nil {
		return nil, err
	}

	flushTimeout := cfg.FlushTimeout
	if flushTimeout == 0 {
		flushTimeout = 5 * time.Second
	}

	return &SentryReporter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: flushTimeout,
	}, nil
}

// Report queues the event. Delivery is asynchronous; a nil error only means
// the client accepted it. Close flushes anything still queued, so ctx
// cancellation does not discard the event.
func (r *SentryReporter) Report(_ context.Context, ev *Event) error {
	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	event.Message = ev.Message
	event.Timestamp = ev.Timestamp
	event.Exception = []sentry.Exception{{Type: ev.Category, Value: ev.Message}}
	event.Extra = ev.Data

	if serverName, ok := ev.Data["server_name"].(string); ok {
		event.ServerName = serverName
	}

	id := r.hub.CaptureEvent(event)
	if id == nil {
		return errEventDropped
	}

	log.WithFields(log.Fields{
		"event_id":  *id,
		"timestamp": ev.Timestamp,
	}).Debug("tracker_event_captured")
	return nil
}

func (r *SentryReporter) Close() {
	if !r.hub.Flush(r.flushTimeout) {
		log.WithField("timeout", r.flushTimeout).Warn("tracker_flush_timed_out")
	}
}
