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
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vs49688/mailhook/mailmsg"
)

var (
	// ErrDropped is wrapped by every outcome that permanently discards a
	// message without it being considered a failure.
	ErrDropped = errors.New("message dropped")

	ErrFormatMismatch = fmt.Errorf("%w: format mismatch despite matching subject tag", ErrDropped)
	ErrNoAttachments  = fmt.Errorf("%w: no usable attachments", ErrDropped)
)

// PayloadDecodeError means the outer format was valid but the payload inside
// it was not. The sender is broken and an operator should know.
type PayloadDecodeError struct {
	Handler string
	Err     error
}

func (e *PayloadDecodeError) Error() string {
	return fmt.Sprintf("%v: payload decode failed: %v", e.Handler, e.Err)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Err
}

// TransientError wraps a failure of an external collaborator (disk, tracker).
// The message is not retried.
type TransientError struct {
	Handler string
	Op      string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%v: %v failed: %v", e.Handler, e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Handler processes a message whose subject carried SubjectTag. Malformed
// input yields an error wrapping ErrDropped, never a panic.
type Handler interface {
	Name() string

	SubjectTag() string

	Process(ctx context.Context, msg *mailmsg.Message) error
}

func logDrop(name string, msg *mailmsg.Message, err error) error {
	log.WithFields(log.Fields{
		"handler":    name,
		"subject":    msg.Subject,
		"message_id": msg.MessageID,
		"reason":     err,
	}).Warn("handler_message_dropped")
	return err
}
