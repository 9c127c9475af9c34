// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/shanept/netsnmp"
	"github.com/shanept/netsnmp/metrics"
	"github.com/shanept/netsnmp/pcap"
)

// run holds a connected session and everything opened alongside it.
type run struct {
	x       *netsnmp.Session
	log     *logrus.Logger
	out     *printer
	closers []func() error
}

// start connects a session per the configuration, with the optional
// packet capture and metrics endpoint.
func (a *app) start() (*run, error) {
	cfg := a.cfg
	log, logCloser, err := newLogger(cfg.Log, a.stderr)
	if err != nil {
		return nil, err
	}
	r := &run{log: log, out: &printer{w: a.stdout, format: cfg.Output}}
	if logCloser != nil {
		r.closers = append(r.closers, logCloser.Close)
	}

	x, err := cfg.Session()
	if err != nil {
		r.close()
		return nil, err
	}
	x.Logger = libraryLogger(log, cfg.Target)

	if cfg.Pcap != "" {
		if err = r.capture(x, cfg.Pcap); err != nil {
			r.close()
			return nil, err
		}
	}
	if cfg.Metrics.Listen != "" {
		if err = r.serveMetrics(x, cfg.Metrics); err != nil {
			r.close()
			return nil, err
		}
	}

	if err = x.Connect(); err != nil {
		r.close()
		return nil, err
	}
	r.x = x
	r.closers = append(r.closers, x.Close)
	log.WithFields(logrus.Fields{"target": cfg.Target, "version": x.Version}).Debug("session connected")
	return r, nil
}

// capture records the session's traffic to file.
func (r *run) capture(x *netsnmp.Session, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("pcap: %w", err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		_ = f.Close()
		return err
	}
	rec, err := pcap.NewRecorder(conn, f)
	if err != nil {
		_ = conn.Close()
		_ = f.Close()
		return err
	}
	x.Transport = rec
	r.closers = append(r.closers, func() error {
		// normally closed by the session already
		_ = rec.Close()
		if err := rec.Err(); err != nil {
			r.log.WithError(err).Warn("pcap recording incomplete")
		}
		return f.Close()
	})
	return nil
}

func (r *run) serveMetrics(x *netsnmp.Session, cfg MetricsConfig) error {
	reg := prometheus.NewRegistry()
	c, err := metrics.NewCollector(reg, x.Target)
	if err != nil {
		return err
	}
	x.Observer = c

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	r.log.WithField("addr", ln.Addr().String()).Info("serving metrics")
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.WithError(err).Error("metrics server")
		}
	}()
	r.closers = append(r.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})
	return nil
}

// close releases everything in reverse order of opening.
func (r *run) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && !errors.Is(err, io.EOF) {
			r.log.WithError(err).Debug("close")
		}
	}
	r.closers = nil
}

// with runs fn on a connected session.
func (a *app) with(fn func(r *run) error) error {
	r, err := a.start()
	if err != nil {
		return err
	}
	defer r.close()
	return fn(r)
}
