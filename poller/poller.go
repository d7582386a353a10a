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
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailhook/handler"
	"github.com/vs49688/mailhook/mailmsg"
	"github.com/vs49688/mailhook/metrics"
)

var (
	errNoFactory  = errors.New("no client factory configured")
	errNoHandlers = errors.New("no handlers configured")
)

func NewPoller(cfg *Config) (*Poller, error) {
	if cfg.Factory == nil {
		return nil, errNoFactory
	}

	if len(cfg.Handlers) == 0 {
		return nil, errNoHandlers
	}

	rfc822Section, err := imap.ParseBodySectionName(imap.FetchRFC822)
	if err != nil {
		panic(err)
	}

	ourCfg := *cfg
	ourCfg.Handlers = append([]handler.Handler{}, cfg.Handlers...)
	if ourCfg.PollInterval <= 0 {
		ourCfg.PollInterval = DefaultPollInterval
	}

	if ourCfg.Connection.Mailbox == "" {
		ourCfg.Connection.Mailbox = "INBOX"
	}

	m := ourCfg.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	return &Poller{
		cfg:           ourCfg,
		state:         StateDisconnected,
		rfc822Section: rfc822Section,
		metrics:       m,
		sleep:         sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *Poller) log() *log.Entry {
	return log.WithFields(log.Fields{
		"host":    p.cfg.Connection.HostPort,
		"mailbox": p.cfg.Connection.Mailbox,
	})
}

func (p *Poller) setState(s state) {
	p.log().WithFields(log.Fields{
		"old": p.state,
		"new": s,
	}).Trace("poller_state_change")
	p.state = s
}

// Run polls until ctx is cancelled. Connection failures are retried forever
// after PollInterval; nothing a handler does can stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	defer p.teardown()

	for {
		if ctx.Err() != nil {
			p.log().WithField("state", p.state).Info("poller_stopping")
			return nil
		}

		switch p.state {
		case StateDisconnected:
			p.setState(StateConnecting)

		case StateConnecting:
			p.log().WithField("tls", p.cfg.Connection.TLS).Info("poller_connecting")
			c, err := p.cfg.Factory.NewClient(&p.cfg.Connection)
			if err != nil {
				p.fail(ctx, fmt.Errorf("connect failed: %w", err))
				continue
			}

			p.client = c
			p.metrics.Connected.Set(1)
			p.log().Info("poller_connected")
			p.setState(StateSelecting)

		case StateSelecting:
			if _, err := p.client.Select(p.cfg.Connection.Mailbox, false); err != nil {
				p.fail(ctx, fmt.Errorf("select failed: %w", err))
				continue
			}
			p.setState(StatePolling)

		case StatePolling:
			complete, err := p.poll(ctx)
			if err != nil {
				p.fail(ctx, err)
				continue
			}

			if !complete {
				continue
			}

			p.metrics.PollCycles.Inc()
			p.sleep(ctx, p.cfg.PollInterval)
		}
	}
}

// fail logs err, drops the connection and waits before the next attempt.
func (p *Poller) fail(ctx context.Context, err error) {
	p.metrics.ConnectionFailures.Inc()
	p.log().WithError(err).WithFields(log.Fields{
		"state": p.state,
		"retry": p.cfg.PollInterval,
	}).Error("poller_connection_error")

	p.teardown()
	p.setState(StateDisconnected)
	p.sleep(ctx, p.cfg.PollInterval)
}

func (p *Poller) teardown() {
	if p.client == nil {
		return
	}

	if err := p.client.Logout(); err != nil {
		p.log().WithError(err).Debug("poller_logout_failed")
	} else {
		p.log().Info("poller_logged_out")
	}

	p.client = nil
	p.metrics.Connected.Set(0)
}

// poll runs one search/fetch/process pass over every handler. Only mailbox
// errors are returned; handler failures are logged and swallowed. complete is
// false if ctx was cancelled before every handler was polled.
func (p *Poller) poll(ctx context.Context) (complete bool, err error) {
	for _, h := range p.cfg.Handlers {
		if ctx.Err() != nil {
			return false, nil
		}

		if err := p.pollHandler(ctx, h); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (p *Poller) pollHandler(ctx context.Context, h handler.Handler) error {
	entry := p.log().WithFields(log.Fields{
		"handler": h.Name(),
		"tag":     h.SubjectTag(),
	})
	entry.Debug("poller_checking_handler")

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Subject", h.SubjectTag())
	criteria.WithoutFlags = []string{imap.SeenFlag}

	ids, err := p.client.Search(criteria)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(ids) == 0 {
		entry.Debug("poller_no_new_messages")
		return nil
	}

	entry.WithField("count", len(ids)).Info("poller_fetching_messages")

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	ch := make(chan *imap.Message)
	done := make(chan error, 1)
	go func() {
		done <- p.client.Fetch(seqset, []imap.FetchItem{imap.FetchRFC822}, ch)
	}()

	messages := readMessages(ch)
	if err := <-done; err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	// Fetched messages are already \Seen, so the batch is finished even if
	// ctx is cancelled part way through.
	batchCtx := context.WithoutCancel(ctx)
	for _, m := range messages {
		p.dispatch(batchCtx, h, m)
	}

	return nil
}

func (p *Poller) dispatch(ctx context.Context, h handler.Handler, m *imap.Message) {
	entry := p.log().WithFields(log.Fields{
		"handler": h.Name(),
		"seq":     m.SeqNum,
	})

	body := m.GetBody(p.rfc822Section)
	if body == nil {
		entry.Warn("poller_message_without_body")
		return
	}

	msg, err := mailmsg.Parse(body)
	if err != nil {
		entry.WithError(err).Warn("poller_message_unparseable")
		p.count(h, metrics.OutcomeDropped)
		return
	}

	entry = entry.WithFields(log.Fields{
		"subject":      msg.Subject,
		"message_id":   msg.MessageID,
		"content_type": msg.ContentType(),
	})

	err = safeProcess(ctx, h, msg)

	var decodeErr *handler.PayloadDecodeError
	var transientErr *handler.TransientError
	switch {
	case err == nil:
		entry.Info("poller_message_processed")
		p.count(h, metrics.OutcomeProcessed)
	case errors.Is(err, handler.ErrDropped):
		p.count(h, metrics.OutcomeDropped)
	case errors.As(err, &decodeErr):
		entry.WithError(err).Error("poller_payload_decode_failed")
		p.count(h, metrics.OutcomeDecodeError)
	case errors.As(err, &transientErr):
		entry.WithError(err).Error("poller_message_io_failed")
		p.count(h, metrics.OutcomeTransient)
	default:
		entry.WithError(err).Error("poller_message_failed")
		p.count(h, metrics.OutcomeFailed)
	}
}

func (p *Poller) count(h handler.Handler, outcome string) {
	p.metrics.Messages.WithLabelValues(h.Name(), outcome).Inc()
}

func safeProcess(ctx context.Context, h handler.Handler, msg *mailmsg.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h.Process(ctx, msg)
}
