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

package internal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/stretchr/testify/assert"
)

type TestAttachment struct {
	Filename string
	Data     []byte
}

func testHeader(subject string) message.Header {
	hdr := message.Header{}
	hdr.Add("From", "from@example.com")
	hdr.Add("To", "to@example.com")
	hdr.Add("Subject", subject)
	hdr.Add("Date", "Wed, 11 May 2016 14:31:59 +0000")
	hdr.Add("Message-ID", "<01@localhost>")
	return hdr
}

// MakeTestMail builds a multipart/mixed message with a text/plain body and
// one base64 part per attachment.
func MakeTestMail(t *testing.T, subject string, text string, attachments ...TestAttachment) []byte {
	hdr := testHeader(subject)
	hdr.SetContentType("multipart/mixed", nil)

	bb := new(bytes.Buffer)
	mw, err := message.CreateWriter(bb, hdr)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	textHdr := message.Header{}
	textHdr.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	writePart(t, mw, textHdr, []byte(text))

	for _, a := range attachments {
		partHdr := message.Header{}
		partHdr.SetContentType("application/octet-stream", nil)
		partHdr.SetContentDisposition("attachment", map[string]string{"filename": a.Filename})
		partHdr.Set("Content-Transfer-Encoding", "base64")
		writePart(t, mw, partHdr, a.Data)
	}

	if !assert.NoError(t, mw.Close()) {
		t.FailNow()
	}

	return bb.Bytes()
}

// MakePlainTestMail builds a single-part text/plain message.
func MakePlainTestMail(t *testing.T, subject string, text string) []byte {
	hdr := testHeader(subject)
	hdr.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	msg, err := message.New(hdr, strings.NewReader(text))
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	bb := new(bytes.Buffer)
	if !assert.NoError(t, msg.WriteTo(bb)) {
		t.FailNow()
	}

	return bb.Bytes()
}

func writePart(t *testing.T, mw *message.Writer, hdr message.Header, data []byte) {
	w, err := mw.CreatePart(hdr)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	_, err = w.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
}
