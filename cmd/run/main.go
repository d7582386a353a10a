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

package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vs49688/mailhook/cmd/config"
	"github.com/vs49688/mailhook/handler"
	"github.com/vs49688/mailhook/metrics"
	"github.com/vs49688/mailhook/poller"
	"github.com/vs49688/mailhook/storage"
	"github.com/vs49688/mailhook/tracker"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.CliConfig{}
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Poll the mailbox and dispatch matching mail",
		Flags:  cfg.Parameters(),
		Action: func(context *cli.Context) error { return run(context, cfg) },
	})
	return app
}

func configureLogging(cfg *config.CliConfig) {
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err == nil {
		log.SetLevel(logLevel)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).WithField("listen", addr).Error("metrics_server_failed")
		}
	}()

	return srv
}

func run(cliCtx *cli.Context, cfg *config.CliConfig) error {
	configureLogging(cfg)

	log.WithFields(log.Fields{
		"url":                cfg.IMAP.URL,
		"auth_method":        cfg.IMAP.AuthMethod,
		"username":           cfg.IMAP.Username,
		"password_file":      cfg.IMAP.PasswordFile,
		"systemd_credential": cfg.IMAP.SystemdCredential,
		"tls_skip_verify":    cfg.IMAP.TLSSkipVerify,
		"timeout":            cfg.IMAP.Timeout,
		"debug":              cfg.IMAP.Debug,
		"poll_interval":      cfg.PollInterval,
		"report_tag":         cfg.ReportTag,
		"attachment_tag":     cfg.AttachmentTag,
		"storage_root":       cfg.StorageRoot,
		"sentry_environment": cfg.SentryEnvironment,
		"metrics_listen":     cfg.MetricsListen,
		"log_level":          cfg.LogLevel,
		"log_format":         cfg.LogFormat,
	}).Info("starting")

	resolved, err := cfg.Resolve()
	if err != nil {
		return err
	}

	reporter, err := tracker.NewSentryReporter(&resolved.Sentry)
	if err != nil {
		return err
	}
	defer reporter.Close()

	store := storage.NewOSStore(resolved.StorageRoot)
	if _, err := store.EnsureDirectory(nil); err != nil {
		return err
	}
	log.WithField("root", store.Root()).Info("storage_ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	resolved.Report.Reporter = reporter
	resolved.Attachment.Store = store

	pollerConfig := resolved.Poller
	pollerConfig.Metrics = m
	pollerConfig.Handlers = []handler.Handler{
		handler.NewReportHandler(&resolved.Report),
		handler.NewAttachmentHandler(&resolved.Attachment),
	}

	p, err := poller.NewPoller(&pollerConfig)
	if err != nil {
		return err
	}

	if resolved.MetricsListen != "" {
		srv := serveMetrics(resolved.MetricsListen, m)
		defer func() { _ = srv.Close() }()
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	doneChan := make(chan error, 1)
	go func() { doneChan <- p.Run(ctx) }()

	sigchan := make(chan os.Signal, 10)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigchan)

	sigcount := 0
	for {
		select {
		case sig := <-sigchan:
			log.WithFields(log.Fields{"signal": sig, "count": sigcount}).Trace("caught_signal")

			sigcount += 1
			if sigcount > 1 {
				log.WithFields(log.Fields{"signal": sig}).Warn("received_interrupt_force_exit")
				os.Exit(1)
			}
			log.WithFields(log.Fields{"signal": sig}).Info("received_interrupt")

			cancel()
		case err := <-doneChan:
			log.Info("poller_terminated")
			return err
		}
	}
}
