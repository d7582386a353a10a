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

package config

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/vs49688/mailhook/handler"
	"github.com/vs49688/mailhook/poller"
	"github.com/vs49688/mailhook/tracker"
)

const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultReportTag        = "sentry"
	DefaultReportMarker     = "SENTRY_EVENT_MAIL"
	DefaultAttachmentTag    = "j5_parsable"
	DefaultAttachmentMarker = "CARBON_FILE_MAIL"
)

// Resolved is everything the run command needs, validated. Collaborators
// (reporter, store, metrics) are attached by the caller.
type Resolved struct {
	Poller        poller.Config
	Report        handler.ReportConfig
	Attachment    handler.AttachmentConfig
	StorageRoot   string
	Sentry        tracker.SentryConfig
	MetricsListen string
}

func DefaultConfig() CliConfig {
	return CliConfig{
		IMAP:             DefaultIMAPConfig(),
		PollInterval:     poller.DefaultPollInterval,
		ReportTag:        DefaultReportTag,
		ReportMarker:     DefaultReportMarker,
		AttachmentTag:    DefaultAttachmentTag,
		AttachmentMarker: DefaultAttachmentMarker,
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
	}
}

func (cfg *CliConfig) Parameters() []cli.Flag {
	def := DefaultConfig()

	var flags []cli.Flag
	flags = append(flags, cfg.IMAP.Parameters()...)
	flags = append(flags, []cli.Flag{
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "delay between poll cycles and reconnect attempts",
			EnvVars:     []string{"MAILHOOK_POLL_INTERVAL"},
			Destination: &cfg.PollInterval,
			Value:       def.PollInterval,
		},
		&cli.StringFlag{
			Name:        "report-tag",
			Usage:       "subject tag of error report mail",
			EnvVars:     []string{"MAILHOOK_REPORT_TAG"},
			Destination: &cfg.ReportTag,
			Value:       def.ReportTag,
		},
		&cli.StringFlag{
			Name:        "report-marker",
			Usage:       "body marker of error report mail",
			EnvVars:     []string{"MAILHOOK_REPORT_MARKER"},
			Destination: &cfg.ReportMarker,
			Value:       def.ReportMarker,
		},
		&cli.StringFlag{
			Name:        "attachment-tag",
			Usage:       "subject tag of attachment mail",
			EnvVars:     []string{"MAILHOOK_ATTACHMENT_TAG"},
			Destination: &cfg.AttachmentTag,
			Value:       def.AttachmentTag,
		},
		&cli.StringFlag{
			Name:        "attachment-marker",
			Usage:       "body marker of attachment mail",
			EnvVars:     []string{"MAILHOOK_ATTACHMENT_MARKER"},
			Destination: &cfg.AttachmentMarker,
			Value:       def.AttachmentMarker,
		},
		&cli.StringFlag{
			Name:        "storage-root",
			Usage:       "directory attachments are written under",
			EnvVars:     []string{"MAILHOOK_STORAGE_ROOT"},
			Destination: &cfg.StorageRoot,
			Value:       def.StorageRoot,
		},
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "sentry dsn error reports are forwarded to",
			EnvVars:     []string{"MAILHOOK_SENTRY_DSN", "SENTRY_DSN"},
			Destination: &cfg.SentryDSN,
			Value:       def.SentryDSN,
		},
		&cli.StringFlag{
			Name:        "sentry-environment",
			Usage:       "sentry environment",
			EnvVars:     []string{"MAILHOOK_SENTRY_ENVIRONMENT"},
			Destination: &cfg.SentryEnvironment,
			Value:       def.SentryEnvironment,
		},
		&cli.BoolFlag{
			Name:        "sentry-debug",
			Usage:       "enable sentry client debug output",
			EnvVars:     []string{"MAILHOOK_SENTRY_DEBUG"},
			Destination: &cfg.SentryDebug,
			Value:       def.SentryDebug,
			Hidden:      true,
		},
		&cli.StringFlag{
			Name:        "metrics-listen",
			Usage:       "address to serve prometheus metrics on, disabled if empty",
			EnvVars:     []string{"MAILHOOK_METRICS_LISTEN"},
			Destination: &cfg.MetricsListen,
			Value:       def.MetricsListen,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"MAILHOOK_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"MAILHOOK_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
	}...)

	return flags
}

func required(name string, value string) error {
	if value == "" {
		return fmt.Errorf("\"%v\" is required", name)
	}
	return nil
}

func (cfg *CliConfig) Resolve() (*Resolved, error) {
	def := DefaultConfig()

	connConfig, factory, err := cfg.IMAP.Resolve()
	if err != nil {
		return nil, err
	}

	for _, r := range []struct{ name, value string }{
		{"report-tag", cfg.ReportTag},
		{"report-marker", cfg.ReportMarker},
		{"attachment-tag", cfg.AttachmentTag},
		{"attachment-marker", cfg.AttachmentMarker},
		{"storage-root", cfg.StorageRoot},
		{"sentry-dsn", cfg.SentryDSN},
	} {
		if err := required(r.name, r.value); err != nil {
			return nil, err
		}
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = def.PollInterval
	}

	return &Resolved{
		Poller: poller.Config{
			Connection:   connConfig,
			Factory:      factory,
			PollInterval: pollInterval,
		},
		Report: handler.ReportConfig{
			SubjectTag: cfg.ReportTag,
			Marker:     []byte(cfg.ReportMarker),
		},
		Attachment: handler.AttachmentConfig{
			SubjectTag: cfg.AttachmentTag,
			Marker:     []byte(cfg.AttachmentMarker),
		},
		StorageRoot: cfg.StorageRoot,
		Sentry: tracker.SentryConfig{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Debug:       cfg.SentryDebug,
		},
		MetricsListen: cfg.MetricsListen,
	}, nil
}
