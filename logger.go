// Copyright 2021 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

// LoggerInterface is the minimal logging surface the session needs. Both
// *log.Logger and *logrus.Logger satisfy it.
type LoggerInterface interface {
	Print(v ...any)
	Printf(format string, v ...any)
}

// Logger wraps a LoggerInterface. The zero value discards everything.
type Logger struct {
	logger LoggerInterface
}

// NewLogger returns a Logger writing to logger.
func NewLogger(logger LoggerInterface) Logger {
	return Logger{logger: logger}
}
