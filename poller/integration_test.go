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
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailhook/handler"
	imap2 "github.com/vs49688/mailhook/imap"
	"github.com/vs49688/mailhook/imap/client"
	"github.com/vs49688/mailhook/internal"
	"github.com/vs49688/mailhook/metrics"
	"github.com/vs49688/mailhook/storage"
	"github.com/vs49688/mailhook/tracker"
)

type syncReporter struct {
	mu     sync.Mutex
	events []*tracker.Event
}

func (r *syncReporter) Report(_ context.Context, ev *tracker.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *syncReporter) Events() []*tracker.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*tracker.Event{}, r.events...)
}

func TestPollerIntegration(t *testing.T) {
	_, addr, mailbox := internal.BuildTestIMAPServer(t)

	internal.AddTestMessage(mailbox, internal.MakeTestMail(t, "[sentry] crash",
		`SENTRY_EVENT_MAIL {"message": "it broke", "date": "2022-03-04T05:06:07Z", "server_name": "web1", "data": {"n": 1}}`,
	))
	internal.AddTestMessage(mailbox, internal.MakeTestMail(t, "[j5_parsable] metrics", "CARBON_FILE_MAIL",
		internal.TestAttachment{Filename: "a.b.metric.wsp", Data: []byte("whisper")},
	))
	internal.AddTestMessage(mailbox, internal.MakeTestMail(t, "[sentry] already seen",
		`SENTRY_EVENT_MAIL {"message": "old", "server_name": "web1"}`,
	), `\Seen`)
	internal.AddTestMessage(mailbox, internal.MakePlainTestMail(t, "hello", "unrelated"))

	fs := afero.NewMemMapFs()
	reporter := &syncReporter{}
	m := metrics.New(nil)

	p, err := NewPoller(&Config{
		Connection: imap2.ConnectionConfig{
			HostPort: addr,
			Auth:     imap2.NewNormalAuthenticator("username", "password"),
			Mailbox:  "INBOX",
			Timeout:  5 * time.Second,
		},
		Factory: &client.Factory{},
		Handlers: []handler.Handler{
			handler.NewReportHandler(&handler.ReportConfig{
				SubjectTag: "sentry",
				Marker:     []byte("SENTRY_EVENT_MAIL"),
				Reporter:   reporter,
			}),
			handler.NewAttachmentHandler(&handler.AttachmentConfig{
				SubjectTag: "j5_parsable",
				Marker:     []byte("CARBON_FILE_MAIL"),
				Store:      storage.NewStore(fs, "/srv/files"),
			}),
		},
		PollInterval: 50 * time.Millisecond,
		Metrics:      m,
	})
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		ok, _ := afero.Exists(fs, "/srv/files/a/metric.wsp")
		return ok && len(reporter.Events()) > 0
	}, 10*time.Second, 20*time.Millisecond)

	// Fetched mail is \Seen, so later cycles must find nothing new.
	cycles := testutil.ToFloat64(m.PollCycles)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.PollCycles) >= cycles+3
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("poller did not stop")
	}

	events := reporter.Events()
	if assert.Len(t, events, 1) {
		assert.Equal(t, "it broke", events[0].Message)
		assert.Equal(t, "web1", events[0].Data["server_name"])
		assert.Equal(t, time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC), events[0].Timestamp)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("attachment", metrics.OutcomeProcessed)))

	data, err := afero.ReadFile(fs, "/srv/files/a/metric.wsp")
	assert.NoError(t, err)
	assert.Equal(t, []byte("whisper"), data)
}
