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
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailhook/internal"
	"github.com/vs49688/mailhook/storage"
)

const attachmentMarker = "CARBON_FILE_MAIL"

func newTestAttachmentHandler(fs afero.Fs) *AttachmentHandler {
	return NewAttachmentHandler(&AttachmentConfig{
		SubjectTag: "j5_parsable",
		Marker:     []byte(attachmentMarker),
		Store:      storage.NewStore(fs, "/whisper"),
	})
}

func readTestFile(t *testing.T, fs afero.Fs, path ...string) []byte {
	data, err := afero.ReadFile(fs, filepath.Join(append([]string{"/whisper"}, path...)...))
	assert.NoError(t, err)
	return data
}

func TestSplitFilename(t *testing.T) {
	for _, tc := range []struct {
		filename string
		dir      []string
		leaf     string
	}{
		{"a.b.c.metric.wsp", []string{"a", "b", "c"}, "metric.wsp"},
		{"a.metric.wsp", []string{"a"}, "metric.wsp"},
		{"metric.wsp", nil, "metric.wsp"},
		{"metric", nil, "metric"},
		{"a..metric.wsp", []string{"a", ""}, "metric.wsp"},
	} {
		t.Run(tc.filename, func(t *testing.T) {
			dir, leaf := SplitFilename(tc.filename)
			assert.Equal(t, tc.dir, dir)
			assert.Equal(t, tc.leaf, leaf)
		})
	}
}

func TestAttachmentHandler(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := newTestAttachmentHandler(fs)
	assert.Equal(t, "attachment", h.Name())
	assert.Equal(t, "j5_parsable", h.SubjectTag())

	msg := parseTestMail(t, internal.MakeTestMail(t, "j5_parsable", attachmentMarker,
		internal.TestAttachment{Filename: "a.b.c.metric.wsp", Data: []byte("\x00\x01nested")},
		internal.TestAttachment{Filename: "metric.wsp", Data: []byte("\x00\x02root")},
	))

	assert.NoError(t, h.Process(context.Background(), msg))

	assert.Equal(t, []byte("\x00\x01nested"), readTestFile(t, fs, "a", "b", "c", "metric.wsp"))
	assert.Equal(t, []byte("\x00\x02root"), readTestFile(t, fs, "metric.wsp"))

	// The text body is not an attachment.
	entries, err := afero.ReadDir(fs, "/whisper")
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAttachmentHandlerOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := newTestAttachmentHandler(fs)

	for _, payload := range []string{"first payload, longer", "second"} {
		msg := parseTestMail(t, internal.MakeTestMail(t, "j5_parsable", attachmentMarker,
			internal.TestAttachment{Filename: "x.y.metric.wsp", Data: []byte(payload)},
		))
		assert.NoError(t, h.Process(context.Background(), msg))
	}

	assert.Equal(t, []byte("second"), readTestFile(t, fs, "x", "y", "metric.wsp"))
}

func TestAttachmentHandlerDropped(t *testing.T) {
	for _, tc := range []struct {
		name     string
		raw      func(t *testing.T) []byte
		expected error
	}{
		{"wrong_marker", func(t *testing.T) []byte {
			return internal.MakeTestMail(t, "j5_parsable", "SENTRY_EVENT_MAIL",
				internal.TestAttachment{Filename: "a.metric.wsp", Data: []byte("x")})
		}, ErrFormatMismatch},
		{"not_multipart", func(t *testing.T) []byte {
			return internal.MakePlainTestMail(t, "j5_parsable", attachmentMarker)
		}, ErrFormatMismatch},
		{"no_attachments", func(t *testing.T) []byte {
			return internal.MakeTestMail(t, "j5_parsable", attachmentMarker)
		}, ErrNoAttachments},
		{"only_unusable_names", func(t *testing.T) []byte {
			return internal.MakeTestMail(t, "j5_parsable", attachmentMarker,
				internal.TestAttachment{Filename: "../../etc.metric.wsp", Data: []byte("x")})
		}, ErrNoAttachments},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			h := newTestAttachmentHandler(fs)

			err := h.Process(context.Background(), parseTestMail(t, tc.raw(t)))
			assert.ErrorIs(t, err, ErrDropped)
			assert.ErrorIs(t, err, tc.expected)

			exists, err := afero.Exists(fs, "/whisper")
			assert.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

type failingStore struct{}

func (failingStore) WriteFile([]string, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestAttachmentHandlerWriteFailure(t *testing.T) {
	h := NewAttachmentHandler(&AttachmentConfig{
		Marker: []byte(attachmentMarker),
		Store:  failingStore{},
	})

	msg := parseTestMail(t, internal.MakeTestMail(t, "j5_parsable", attachmentMarker,
		internal.TestAttachment{Filename: "a.metric.wsp", Data: []byte("x")},
	))

	err := h.Process(context.Background(), msg)

	var transientErr *TransientError
	if assert.ErrorAs(t, err, &transientErr) {
		assert.Equal(t, "write", transientErr.Op)
	}
	assert.False(t, errors.Is(err, ErrDropped))
}
