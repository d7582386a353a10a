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

package poller

import (
	"context"
	"time"

	"github.com/emersion/go-imap"
	"github.com/vs49688/mailhook/handler"
	imap2 "github.com/vs49688/mailhook/imap"
	"github.com/vs49688/mailhook/metrics"
)

const DefaultPollInterval = 5 * time.Second

type Config struct {
	Connection imap2.ConnectionConfig
	Factory    imap2.ClientFactory
	// Handlers are polled in order, once per cycle.
	Handlers []handler.Handler
	// PollInterval is both the delay between cycles and the fixed delay
	// before reconnecting after a failure.
	PollInterval time.Duration
	Metrics      *metrics.Metrics
}

type state int

const (
	StateDisconnected state = 0
	StateConnecting   state = 1
	StateSelecting    state = 2
	StatePolling      state = 3
)

func (s state) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSelecting:
		return "selecting"
	case StatePolling:
		return "polling"
	default:
		panic("invalid_state")
	}
}

type Poller struct {
	cfg           Config
	client        imap2.Client
	state         state
	rfc822Section *imap.BodySectionName
	metrics       *metrics.Metrics

	// sleep returns false if ctx was cancelled first.
	sleep func(ctx context.Context, d time.Duration) bool
}
