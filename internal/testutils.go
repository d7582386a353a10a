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
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
)

// seenBackend marks messages \Seen on a non-peek body fetch, which the
// memory backend doesn't do on its own.
type seenBackend struct {
	backend.Backend
}

type seenUser struct {
	backend.User
}

type seenMailbox struct {
	backend.Mailbox
}

func (b *seenBackend) Login(connInfo *imap.ConnInfo, username, password string) (backend.User, error) {
	u, err := b.Backend.Login(connInfo, username, password)
	if err != nil {
		return nil, err
	}
	return &seenUser{User: u}, nil
}

func (u *seenUser) GetMailbox(name string) (backend.Mailbox, error) {
	mb, err := u.User.GetMailbox(name)
	if err != nil {
		return nil, err
	}
	return &seenMailbox{Mailbox: mb}, nil
}

func (mb *seenMailbox) ListMessages(uid bool, seqSet *imap.SeqSet, items []imap.FetchItem, ch chan<- *imap.Message) error {
	if err := mb.Mailbox.ListMessages(uid, seqSet, items, ch); err != nil {
		return err
	}

	for _, item := range items {
		section, err := imap.ParseBodySectionName(item)
		if err == nil && !section.Peek {
			return mb.Mailbox.UpdateMessagesFlags(uid, seqSet, imap.AddFlags, []string{imap.SeenFlag})
		}
	}

	return nil
}

func BuildTestIMAPServer(t *testing.T) (*server.Server, string, *memory.Mailbox) {
	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	mb, err := user.GetMailbox("INBOX")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	mailbox := mb.(*memory.Mailbox)
	mailbox.Messages = nil

	s := server.New(&seenBackend{Backend: be})
	t.Cleanup(func() { _ = s.Close() })

	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}

	go func() { _ = s.Serve(l) }()

	return s, l.Addr().String(), mailbox
}

// AddTestMessage appends a raw RFC822 message to the mailbox. Must be called
// before any client selects it.
func AddTestMessage(mailbox *memory.Mailbox, body []byte, flags ...string) {
	mailbox.Messages = append(mailbox.Messages, &memory.Message{
		Uid:   uint32(len(mailbox.Messages) + 1),
		Date:  time.Date(2016, 5, 11, 14, 31, 59, 0, time.UTC),
		Size:  uint32(len(body)),
		Flags: append([]string{}, flags...),
		Body:  body,
	})
}
