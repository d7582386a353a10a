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
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	log "github.com/sirupsen/logrus"
)

// Parse reads a raw RFC822 message into a Message. Unknown charsets are not
// an error; the affected payloads are kept undecoded.
func Parse(r io.Reader) (*Message, error) {
	e, err := message.Read(r)
	if err != nil {
		if !message.IsUnknownCharset(err) || e == nil {
			return nil, fmt.Errorf("malformed message: %w", err)
		}
		log.WithError(err).Debug("mailmsg_unknown_charset")
	}

	root, err := readPart(e, 0)
	if err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	return &Message{
		Subject:   e.Header.Get("Subject"),
		MessageID: e.Header.Get("Message-Id"),
		Root:      root,
	}, nil
}

func ParseBytes(b []byte) (*Message, error) {
	return Parse(bytes.NewReader(b))
}

// maxDepth bounds multipart nesting so hostile input can't recurse forever.
const maxDepth = 32

func readPart(e *message.Entity, depth int) (*Part, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("multipart nesting exceeds %v levels", maxDepth)
	}

	mediaType, params, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	p := &Part{
		ContentType: strings.ToLower(mediaType),
		Disposition: e.Header.Get("Content-Disposition"),
	}
	p.Filename = partFilename(e.Header, params)

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}

			if err != nil {
				if !message.IsUnknownCharset(err) || child == nil {
					return nil, err
				}
				log.WithError(err).Debug("mailmsg_unknown_charset")
			}

			cp, err := readPart(child, depth+1)
			if err != nil {
				return nil, err
			}

			p.Parts = append(p.Parts, cp)
		}

		return p, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, err
	}

	p.Body = body
	return p, nil
}

func partFilename(h message.Header, ctParams map[string]string) string {
	if _, params, err := h.ContentDisposition(); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}

	return ctParams["name"]
}
