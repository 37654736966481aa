// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Command catsping dials a CATS server, completes the connection
// preamble, and sends PingActions, logging how long each Send took to
// write — the smoke-test client for a running engine, in the spirit of
// the teacher's ping command. It does not wait for or time the echo.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/cifrazia/cats-go/conn"
	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/schemeformat"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7700", "server address")
	count := flag.Int("count", 5, "number of pings to send")
	timeout := flag.Duration("timeout", 10*time.Second, "dial + preamble timeout")
	flag.Parse()

	log := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "catsping",
	})

	cfg := &conn.ClientConfig{
		ProtocolVersion: 1,
		Statement: conn.ClientStatementConfig{
			API:          1,
			SchemeFormat: schemeformat.JSON,
			Compressors:  []compressor.ID{compressor.None, compressor.Gzip},
		},
	}

	c, err := conn.Dial(*addr, cfg)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer c.Close()

	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()
	go func() {
		if err := c.Serve(serveCtx); err != nil {
			log.Debugf("connection ended: %v", err)
		}
	}()

	readyCtx, cancelReady := context.WithTimeout(context.Background(), *timeout)
	defer cancelReady()
	if err := c.WaitReady(readyCtx); err != nil {
		log.Fatalf("preamble with %s: %v", *addr, err)
	}
	log.Infof("connected to %s (clock offset %dms)", *addr, c.ClockOffsetMillis())

	for i := 0; i < *count; i++ {
		start := time.Now()
		ping := &action.PingAction{SendTime: uint64(start.UnixMilli())}
		if err := c.Send(ping); err != nil {
			log.Errorf("ping %d: %v", i, err)
			continue
		}
		log.Infof("ping %d sent in %s", i, time.Since(start))
		time.Sleep(200 * time.Millisecond)
	}
}
