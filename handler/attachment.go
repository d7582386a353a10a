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
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailhook/mailmsg"
	"github.com/vs49688/mailhook/storage"
)

const AttachmentHandlerName = "attachment"

// FileStore is satisfied by *storage.Store.
type FileStore interface {
	WriteFile(dir []string, name string, data []byte) (string, error)
}

type AttachmentConfig struct {
	SubjectTag string
	Marker     []byte
	Store      FileStore
}

type AttachmentHandler struct {
	subjectTag string
	marker     []byte
	store      FileStore
}

type attachmentFile struct {
	Dir  []string
	Leaf string
	Data []byte
}

func NewAttachmentHandler(cfg *AttachmentConfig) *AttachmentHandler {
	return &AttachmentHandler{
		subjectTag: cfg.SubjectTag,
		marker:     append([]byte{}, cfg.Marker...),
		store:      cfg.Store,
	}
}

func (h *AttachmentHandler) Name() string {
	return AttachmentHandlerName
}

func (h *AttachmentHandler) SubjectTag() string {
	return h.subjectTag
}

// SplitFilename maps a dotted attachment name onto a storage location. All
// but the last two segments become directories; the last two form the file
// name, e.g. "a.b.c.metric.wsp" is "a/b/c" + "metric.wsp".
func SplitFilename(filename string) ([]string, string) {
	segs := strings.Split(filename, ".")
	if len(segs) < 3 {
		return nil, filename
	}

	return segs[:len(segs)-2], strings.Join(segs[len(segs)-2:], ".")
}

func (h *AttachmentHandler) Process(_ context.Context, msg *mailmsg.Message) error {
	if _, ok := mailmsg.ExtractValidatedBody(msg, h.marker); !ok {
		return logDrop(h.Name(), msg, ErrFormatMismatch)
	}

	files := h.collect(msg)

	written := 0
	for _, f := range files {
		path, err := h.store.WriteFile(f.Dir, f.Leaf, f.Data)
		if errors.Is(err, storage.ErrInvalidPath) {
			log.WithError(err).WithFields(log.Fields{
				"handler":    h.Name(),
				"message_id": msg.MessageID,
			}).Warn("attachment_invalid_path")
			continue
		} else if err != nil {
			return &TransientError{Handler: h.Name(), Op: "write", Err: err}
		}

		log.WithFields(log.Fields{
			"handler":    h.Name(),
			"message_id": msg.MessageID,
			"path":       path,
			"size":       len(f.Data),
		}).Info("attachment_written")
		written++
	}

	if written == 0 {
		return logDrop(h.Name(), msg, ErrNoAttachments)
	}

	return nil
}

// collect returns every leaf part carrying a Content-Disposition header.
func (h *AttachmentHandler) collect(msg *mailmsg.Message) []attachmentFile {
	var files []attachmentFile
	msg.Walk(func(p *mailmsg.Part) bool {
		if !p.HasDisposition() || p.IsMultipart() {
			return true
		}

		if p.Filename == "" {
			log.WithFields(log.Fields{
				"handler":      h.Name(),
				"message_id":   msg.MessageID,
				"content_type": p.ContentType,
			}).Warn("attachment_missing_filename")
			return true
		}

		dir, leaf := SplitFilename(p.Filename)
		files = append(files, attachmentFile{Dir: dir, Leaf: leaf, Data: p.Body})
		return true
	})

	return files
}
