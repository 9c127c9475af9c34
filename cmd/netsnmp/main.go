// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Command netsnmp is an SNMP manager: get, walk, set, and send traps and
// informs from the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shanept/netsnmp/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
