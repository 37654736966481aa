// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"bufio"
	"time"

	"github.com/cifrazia/cats-go/core/errs"
	"github.com/cifrazia/cats-go/core/schemeformat"
)

// exchangeStatement runs spec.md §4.4's STATEMENT_EXCHANGE: both peers
// write a length-prefixed, self-describing statement; the receiver
// auto-detects its wire format by the leading-character heuristic. The
// reply's own encoding, and the connection's activeFormat from this
// point on, follow the client's declared scheme_format field rather
// than the wire format the client happened to encode its bytes in —
// spec.md §8's worked example has a YAML-encoded client statement
// declaring scheme_format "JSON", and the server's reply comes back as
// JSON (see DESIGN.md).
func (c *Connection) exchangeStatement(br *bufio.Reader) error {
	if c.isServer {
		return c.exchangeStatementServer(br)
	}
	return c.exchangeStatementClient(br)
}

func (c *Connection) exchangeStatementServer(br *bufio.Reader) error {
	raw, err := readLenPrefixed(br, maxStatementSize)
	if err != nil {
		return err
	}
	cs, _, err := decodeClientStatement(raw)
	if err != nil {
		return errs.NewProtocolError("conn: decoding client statement: %w", err)
	}
	if err := cs.Validate(); err != nil {
		return errs.NewProtocolError("conn: %w", err)
	}

	declared, err := schemeformat.ParseName(cs.SchemeFormat)
	if err != nil {
		return errs.NewProtocolError("conn: client statement: %w", err)
	}

	c.peerAPI = cs.API
	c.peerCompressors = cs.Compressors
	c.peerDefaultCompression = cs.DefaultCompression
	c.activeFormat = declared

	serverTimeMs := uint64(time.Now().UnixMilli())
	c.clockOffsetMs = int64(serverTimeMs) - int64(cs.ClientTime)

	reply := &ServerStatement{ServerTime: serverTimeMs}
	replyBytes, err := reply.encode(c.activeFormat)
	if err != nil {
		return errs.NewProtocolError("conn: encoding server statement: %w", err)
	}
	return writeLenPrefixed(c.netConn, replyBytes)
}

func (c *Connection) exchangeStatementClient(br *bufio.Reader) error {
	cfg := c.clientStatementCfg
	clientTimeMs := uint64(time.Now().UnixMilli())
	stmt := &ClientStatement{
		API:                cfg.API,
		ClientTime:         clientTimeMs,
		SchemeFormat:       cfg.SchemeFormat.String(),
		Compressors:        cfg.Compressors,
		DefaultCompression: cfg.DefaultCompression,
	}

	raw, err := stmt.encode(c.activeFormat)
	if err != nil {
		return errs.NewProtocolError("conn: encoding client statement: %w", err)
	}
	if err := writeLenPrefixed(c.netConn, raw); err != nil {
		return err
	}

	reply, err := readLenPrefixed(br, maxStatementSize)
	if err != nil {
		return err
	}
	ss, err := decodeServerStatement(reply, c.activeFormat)
	if err != nil {
		return errs.NewProtocolError("conn: decoding server statement: %w", err)
	}
	c.clockOffsetMs = int64(ss.ServerTime) - int64(clientTimeMs)
	return nil
}
