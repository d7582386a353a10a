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

package mailmsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailhook/internal"
)

const nestedMessage = "From: from@example.com\r\n" +
	"To: to@example.com\r\n" +
	"Subject: nested\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"MARKER hello\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>MARKER hello</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/octet-stream; name=\"fallback.name.wsp\"\r\n" +
	"Content-Disposition: attachment\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"AAECAw==\r\n" +
	"--outer--\r\n"

func mustParse(t *testing.T, raw []byte) *Message {
	msg, err := ParseBytes(raw)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return msg
}

func TestParseNested(t *testing.T) {
	msg := mustParse(t, []byte(nestedMessage))

	assert.Equal(t, "nested", msg.Subject)
	assert.Equal(t, "multipart/mixed", msg.ContentType())

	var types []string
	msg.Walk(func(p *Part) bool {
		types = append(types, p.ContentType)
		return true
	})

	assert.Equal(t, []string{
		"multipart/mixed",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"application/octet-stream",
	}, types)

	att := msg.Root.Parts[1]
	assert.True(t, att.HasDisposition())
	assert.Equal(t, "fallback.name.wsp", att.Filename)
	assert.Equal(t, []byte{0, 1, 2, 3}, att.Body)
	assert.Nil(t, msg.Root.Body)
}

func TestParseAttachments(t *testing.T) {
	raw := internal.MakeTestMail(t, "j5_parsable", "CARBON_FILE_MAIL",
		internal.TestAttachment{Filename: "a.b.metric.wsp", Data: []byte("\x00\xffdata")},
	)

	msg := mustParse(t, raw)
	assert.Len(t, msg.Root.Parts, 2)
	assert.Equal(t, "text/plain", msg.Root.Parts[0].ContentType)
	assert.False(t, msg.Root.Parts[0].HasDisposition())
	assert.Equal(t, "a.b.metric.wsp", msg.Root.Parts[1].Filename)
	assert.Equal(t, []byte("\x00\xffdata"), msg.Root.Parts[1].Body)
}

func TestParseDefaultsToTextPlain(t *testing.T) {
	msg := mustParse(t, []byte("Subject: bare\r\n\r\nbody\r\n"))
	assert.Equal(t, "text/plain", msg.ContentType())
	assert.False(t, msg.Root.IsMultipart())
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not a header\r\n"))
	assert.Error(t, err)
}

func TestWalkStops(t *testing.T) {
	msg := mustParse(t, []byte(nestedMessage))

	count := 0
	msg.Walk(func(p *Part) bool {
		count++
		return p.ContentType != "text/plain"
	})
	assert.Equal(t, 3, count)
}

func TestExtractValidatedBody(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		msg := mustParse(t, []byte(nestedMessage))
		body, ok := ExtractValidatedBody(msg, []byte("MARKER"))
		assert.True(t, ok)
		assert.Equal(t, []byte("MARKER hello"), body)
	})

	t.Run("mismatch", func(t *testing.T) {
		msg := mustParse(t, []byte(nestedMessage))
		body, ok := ExtractValidatedBody(msg, []byte("OTHER"))
		assert.False(t, ok)
		assert.Nil(t, body)
	})

	t.Run("not_multipart", func(t *testing.T) {
		msg := mustParse(t, internal.MakePlainTestMail(t, "sentry", "MARKER hello"))
		_, ok := ExtractValidatedBody(msg, []byte("MARKER"))
		assert.False(t, ok)
	})

	t.Run("first_text_part_only", func(t *testing.T) {
		raw := strings.Replace(nestedMessage, "Content-Type: text/html", "Content-Type: text/plain", 1)
		raw = strings.Replace(raw, "MARKER hello\r\n", "nope\r\n", 1)
		raw = strings.Replace(raw, "<p>MARKER hello</p>", "MARKER second", 1)
		msg := mustParse(t, []byte(raw))
		_, ok := ExtractValidatedBody(msg, []byte("MARKER"))
		assert.False(t, ok)
	})

	t.Run("nil", func(t *testing.T) {
		_, ok := ExtractValidatedBody(nil, []byte("MARKER"))
		assert.False(t, ok)
	})
}
