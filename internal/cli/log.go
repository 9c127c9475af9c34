// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shanept/netsnmp"
)

// newLogger builds the command's logger. The returned closer flushes a log
// file and is nil when logging to stderr.
func newLogger(cfg LogConfig, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(level)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		l.SetOutput(stderr)
		return l, nil, nil
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,  // megabytes
		MaxBackups: cfg.MaxBackups, // number of backups
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   cfg.Compress,   // compress the backups
	}
	l.SetOutput(writer)
	return l, writer, nil
}

// sessionLogger sends the library's tracing to the debug level.
type sessionLogger struct {
	entry *logrus.Entry
}

func (l sessionLogger) Print(args ...any)                 { l.entry.Debug(args...) }
func (l sessionLogger) Printf(format string, args ...any) { l.entry.Debugf(format, args...) }

func libraryLogger(l *logrus.Logger, target string) netsnmp.Logger {
	if !l.IsLevelEnabled(logrus.DebugLevel) {
		return netsnmp.Logger{}
	}
	return netsnmp.NewLogger(sessionLogger{entry: l.WithField("target", target)})
}
