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

package poller

import (
	"sort"

	"github.com/emersion/go-imap"
)

// readMessages drains ch, dropping duplicates and untagged responses that
// carry no message data, in sequence order.
func readMessages(ch chan *imap.Message) []*imap.Message {
	unique := map[uint32]*imap.Message{}
	for msg := range ch {
		if msg == nil || len(msg.Body) == 0 {
			continue
		}
		unique[msg.SeqNum] = msg
	}

	messages := make([]*imap.Message, 0, len(unique))
	for _, msg := range unique {
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool { return messages[i].SeqNum < messages[j].SeqNum })

	return messages
}
