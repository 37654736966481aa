// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Command catsecho runs a CATS server with a single handler that
// echoes back whatever Binary payload it receives, demonstrating the
// engine's Handler/HandlerRegistry contract end to end.
package main

import (
	"context"
	"flag"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"

	"github.com/cifrazia/cats-go/conn"
	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/codec"
	"github.com/cifrazia/cats-go/core/schemeformat"
	"github.com/cifrazia/cats-go/internal/broadcast"
)

const echoHandlerID = 0x0001

var log = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: true,
	Prefix:          "catsecho",
})

type echoHandler struct{}

func (echoHandler) Prepare(conn.Context) error { return nil }

func (echoHandler) Handle(ctx conn.Context) (action.Envelope, error) {
	p := ctx.Payload()
	log.Infof("handling message %#04x: %d bytes", ctx.MessageID(), len(p.Bytes))
	return &action.Action{
		Headers: action.Headers{"Status": 200},
		Payload: codec.EncodeBinary(p.Bytes),
	}, nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7700", "listen address")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:7701", "Prometheus metrics address")
	flag.Parse()

	reg := prometheus.NewRegistry()
	metrics := conn.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Errorf("metrics server: %v", http.ListenAndServe(*metricsAddr, mux))
	}()

	cfg := &conn.ServerConfig{
		ProtocolVersion:     1,
		Registry:            conn.StaticRegistry{echoHandlerID: echoHandler{}},
		EnablePing:          true,
		DefaultSchemeFormat: schemeformat.JSON,
		Broadcasts:          broadcast.New(),
		Metrics:             metrics,
	}

	ln, err := conn.Listen(*addr, cfg)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}
	log.Infof("listening on %s", ln.Addr())

	for {
		c, err := ln.Accept()
		if err != nil {
			log.Errorf("accept: %v", err)
			continue
		}
		go func() {
			if err := c.Serve(context.Background()); err != nil {
				log.Debugf("connection closed: %v", err)
			}
		}()
	}
}
