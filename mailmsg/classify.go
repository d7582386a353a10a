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
	"strings"
)

// ExtractValidatedBody returns the payload of the first text/plain part of a
// multipart message, provided it starts with marker.
func ExtractValidatedBody(msg *Message, marker []byte) ([]byte, bool) {
	if msg == nil || !strings.HasPrefix(msg.ContentType(), "multipart/") {
		return nil, false
	}

	var text *Part
	msg.Walk(func(p *Part) bool {
		if p.ContentType == "text/plain" {
			text = p
			return false
		}
		return true
	})

	if text == nil || !bytes.HasPrefix(text.Body, marker) {
		return nil, false
	}

	return text.Body, true
}
