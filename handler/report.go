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

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailhook/mailmsg"
	"github.com/vs49688/mailhook/tracker"
)

const (
	ReportHandlerName = "report"
	ReportCategory    = "Exception"
)

type ReportConfig struct {
	SubjectTag string
	Marker     []byte
	Reporter   tracker.Reporter
	// Now defaults to time.Now. Used when a report carries no usable date.
	Now func() time.Time
}

type ReportHandler struct {
	subjectTag string
	marker     []byte
	reporter   tracker.Reporter
	now        func() time.Time
}

func NewReportHandler(cfg *ReportConfig) *ReportHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &ReportHandler{
		subjectTag: cfg.SubjectTag,
		marker:     append([]byte{}, cfg.Marker...),
		reporter:   cfg.Reporter,
		now:        now,
	}
}

func (h *ReportHandler) Name() string {
	return ReportHandlerName
}

func (h *ReportHandler) SubjectTag() string {
	return h.subjectTag
}

func (h *ReportHandler) Process(ctx context.Context, msg *mailmsg.Message) error {
	body, ok := mailmsg.ExtractValidatedBody(msg, h.marker)
	if !ok {
		return logDrop(h.Name(), msg, ErrFormatMismatch)
	}

	ev, err := h.decodeEvent(stripMarker(body, len(h.marker)))
	if err != nil {
		return &PayloadDecodeError{Handler: h.Name(), Err: err}
	}

	if err := h.reporter.Report(ctx, ev); err != nil {
		return &TransientError{Handler: h.Name(), Op: "report", Err: err}
	}

	log.WithFields(log.Fields{
		"handler":    h.Name(),
		"message_id": msg.MessageID,
		"server":     ev.Data["server_name"],
		"timestamp":  ev.Timestamp,
	}).Info("report_forwarded")
	return nil
}

// stripMarker drops the marker and the single separator byte after it.
func stripMarker(body []byte, markerLen int) []byte {
	if len(body) <= markerLen+1 {
		return nil
	}
	return body[markerLen+1:]
}

// normalizeSoftBreaks undoes transport line folding: CRLF followed by a space
// is removed, then every remaining LF.
func normalizeSoftBreaks(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n "), nil)
	return bytes.ReplaceAll(b, []byte("\n"), nil)
}

func (h *ReportHandler) decodeEvent(payload []byte) (*tracker.Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(normalizeSoftBreaks(payload), &fields); err != nil {
		return nil, err
	}

	var message string
	if raw, ok := fields["message"]; !ok {
		return nil, errors.New("missing \"message\"")
	} else if err := json.Unmarshal(raw, &message); err != nil {
		return nil, fmt.Errorf("invalid \"message\": %w", err)
	}

	rawServerName, ok := fields["server_name"]
	if !ok {
		return nil, errors.New("missing \"server_name\"")
	}

	var serverName interface{}
	if err := decodeNumbers(rawServerName, &serverName); err != nil {
		return nil, fmt.Errorf("invalid \"server_name\": %w", err)
	}

	data := map[string]interface{}{}
	if raw, ok := fields["data"]; ok && !isNull(raw) {
		if err := decodeNumbers(raw, &data); err != nil {
			return nil, fmt.Errorf("invalid \"data\": %w", err)
		}
	}
	data["server_name"] = serverName

	return &tracker.Event{
		Category:  ReportCategory,
		Message:   message,
		Timestamp: h.parseDate(fields["date"]),
		Data:      data,
	}, nil
}

// parseDate accepts any date layout dateparse understands. Anything else,
// including a missing field, yields the current UTC time.
func (h *ReportHandler) parseDate(raw json.RawMessage) time.Time {
	var s string
	if raw != nil && json.Unmarshal(raw, &s) == nil {
		t, err := dateparse.ParseIn(s, time.UTC)
		if err == nil {
			return t.UTC()
		}
		log.WithError(err).WithField("date", s).Debug("report_date_unparseable")
	}

	return h.now().UTC()
}

func decodeNumbers(raw json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
