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

// Package mailmsg holds a fully decoded, in-memory view of a fetched mail
// message, and the classifier used by the handlers to validate it.
package mailmsg

import "strings"

// Part is one node of the MIME tree. Multipart containers carry children and
// no body; leaves carry their transfer-decoded payload.
type Part struct {
	// ContentType is the lowercased media type, e.g. "text/plain".
	ContentType string
	Filename    string
	// Disposition is the raw Content-Disposition header, empty if absent.
	Disposition string
	Body        []byte
	Parts       []*Part
}

func (p *Part) IsMultipart() bool {
	return strings.HasPrefix(p.ContentType, "multipart/")
}

func (p *Part) HasDisposition() bool {
	return p.Disposition != ""
}

type Message struct {
	Subject   string
	MessageID string
	Root      *Part
}

func (m *Message) ContentType() string {
	if m.Root == nil {
		return ""
	}
	return m.Root.ContentType
}

// Walk visits every part depth-first, root included, in document order.
// Returning false from fn stops the walk.
func (m *Message) Walk(fn func(p *Part) bool) {
	if m.Root == nil {
		return
	}
	walk(m.Root, fn)
}

func walk(p *Part, fn func(p *Part) bool) bool {
	if !fn(p) {
		return false
	}

	for _, child := range p.Parts {
		if !walk(child, fn) {
			return false
		}
	}

	return true
}
