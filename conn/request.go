// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/codec"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/errs"
)

func handlerIDLabel(id uint16) string { return fmt.Sprintf("%#04x", id) }

// processRequest runs one inbound Action/StreamAction against the
// registered Handler, always on its own goroutine (spec.md §4.7: "each
// inbound request is dispatched independently; a slow handler never
// blocks the read loop or unrelated requests"). Errors never propagate
// back to the dispatch loop: Prepare/Handle failures become an error
// reply to the peer instead.
func (c *Connection) processRequest(a action.Envelope) {
	var handlerID, messageID uint16
	var headers action.Headers
	var dataType, compressorID uint8
	var payloadBytes []byte

	switch v := a.(type) {
	case *action.Action:
		handlerID, messageID, headers = v.HandlerID, v.MessageID, v.Headers
		dataType, compressorID, payloadBytes = v.DataType, v.Compressor, v.Payload
	case *action.StreamAction:
		handlerID, messageID, headers = v.HandlerID, v.MessageID, v.Headers
		dataType = v.DataType
		// frame.Reader already decompressed each chunk independently
		// (spec.md §4.1); decodePayload below must not decompress the
		// concatenation a second time.
		compressorID = uint8(compressor.None)
		for _, chunk := range v.Chunks {
			payloadBytes = append(payloadBytes, chunk...)
		}
	default:
		c.log.Errorf("processRequest: unexpected envelope type %T", a)
		return
	}

	handler, ok := c.registry.Lookup(handlerID, c.peerAPI)
	if !ok {
		c.sendErrorReply(handlerID, messageID, 404, "no handler for id %s", handlerIDLabel(handlerID))
		return
	}

	payload, err := c.decodePayload(headers, dataType, compressorID, payloadBytes)
	if err != nil {
		c.sendErrorReply(handlerID, messageID, 400, "decoding payload: %v", err)
		return
	}

	ctx := newRequestContext(c, handlerID, messageID, headers, payload)
	defer ctx.cancel()

	if err := handler.Prepare(ctx); err != nil {
		c.metrics.handlerError(handlerIDLabel(handlerID))
		c.sendErrorReply(handlerID, messageID, validationStatus(err), "prepare: %v", err)
		return
	}

	start := time.Now()
	reply, err := handler.Handle(ctx)
	c.metrics.handlerDuration(handlerIDLabel(handlerID), time.Since(start).Seconds())
	if err != nil {
		c.metrics.handlerError(handlerIDLabel(handlerID))
		c.sendErrorReply(handlerID, messageID, validationStatus(err), "handle: %v", err)
		return
	}
	if reply == nil {
		return
	}

	fillReplyIDs(reply, handlerID, messageID)
	if err := c.Send(reply); err != nil {
		c.log.Debugf("sending reply for %s: %v", handlerIDLabel(messageID), err)
	}
}

// validationStatus maps a Handler error to a reply status code
// (spec.md §7: a ValidationError carries status >= 400; anything else
// is an unexpected handler failure).
func validationStatus(err error) int {
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		return 400
	}
	return 500
}

func (c *Connection) sendErrorReply(handlerID, messageID uint16, status int, format string, a ...interface{}) {
	c.log.Debugf("handler %s: %s", handlerIDLabel(handlerID), fmt.Sprintf(format, a...))
	reply := &action.Action{
		HandlerID: handlerID,
		MessageID: messageID,
		SendTime:  uint64(time.Now().UnixMilli()),
		Headers:   action.Headers{"Status": status},
	}
	if err := c.Send(reply); err != nil {
		c.log.Debugf("sending error reply for %s: %v", handlerIDLabel(messageID), err)
	}
}

// fillReplyIDs lets a Handler build its reply action without repeating
// the request's own ids: a zero HandlerID/MessageID on the returned
// envelope is filled in from the request it answers.
func fillReplyIDs(a action.Envelope, handlerID, messageID uint16) {
	switch v := a.(type) {
	case *action.Action:
		if v.HandlerID == 0 {
			v.HandlerID = handlerID
		}
		if v.MessageID == 0 {
			v.MessageID = messageID
		}
	case *action.StreamAction:
		if v.HandlerID == 0 {
			v.HandlerID = handlerID
		}
		if v.MessageID == 0 {
			v.MessageID = messageID
		}
	case *action.InputAction:
		if v.MessageID == 0 {
			v.MessageID = messageID
		}
	}
}

// ask implements Context.Ask: it registers a pending input under the
// request's own message_id (the same id the peer used for its
// request, or we used for ours), sends the InputAction prompt, and
// blocks for the matching reply, a CancelInputAction, or input_timeout
// (spec.md §4.5/§6.2).
func (c *Connection) ask(messageID uint16, payload codec.Payload, headers action.Headers, bypassCount bool) (*action.InputAction, error) {
	waiter, err := c.mux.BeginAsk(messageID, c.inputLimit, bypassCount)
	if err != nil {
		return nil, err
	}
	defer c.mux.EndAsk(messageID)

	dataType, compressorID, raw, err := c.encodePayload(payload, headers)
	if err != nil {
		return nil, err
	}
	question := &action.InputAction{
		MessageID:  messageID,
		DataType:   dataType,
		Compressor: compressorID,
		Headers:    headers,
		Payload:    raw,
	}
	if err := c.Send(question); err != nil {
		return nil, err
	}

	type outcome struct {
		a   action.Envelope
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		a, err := waiter.Wait()
		done <- outcome{a, err}
	}()

	var timeoutCh <-chan time.Time
	if c.inputTimeout > 0 {
		timer := time.NewTimer(c.inputTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		ia, ok := r.a.(*action.InputAction)
		if !ok {
			return nil, errs.NewProtocolError("conn: ask reply is %T, not InputAction", r.a)
		}
		return ia, nil
	case <-timeoutCh:
		_ = c.mux.CancelInput(messageID)
		return nil, errs.ErrInputTimeout
	case <-c.HaltCh():
		return nil, errs.ErrConnectionClosed
	}
}

// handlePeerAsk answers an InputAction prompt the peer issued against a
// request we originated (we hold the active mux waiter for its
// message_id, not a pendingInput — see handleInputAction). Runs on its
// own goroutine so a slow InputHandler never stalls the dispatch loop.
func (c *Connection) handlePeerAsk(ia *action.InputAction) {
	if c.inputHandler == nil {
		reply := &action.InputAction{MessageID: ia.MessageID}
		if err := c.Send(reply); err != nil {
			c.log.Debugf("replying empty to peer ask %#x: %v", ia.MessageID, err)
		}
		return
	}

	ctx := context.Background()
	if c.inputTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.inputTimeout)
		defer cancel()
	}

	reply, err := c.inputHandler(ctx, ia.MessageID, ia)
	if err != nil || reply == nil {
		reply = &action.InputAction{MessageID: ia.MessageID}
	} else {
		reply.MessageID = ia.MessageID
	}
	if err := c.Send(reply); err != nil {
		c.log.Debugf("replying to peer ask %#x: %v", ia.MessageID, err)
	}
}
