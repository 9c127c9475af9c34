// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package cli implements the netsnmp command using the cobra framework.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every command needs once flags are parsed.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *Config
	stdout     io.Writer
	stderr     io.Writer
}

// NewRootCommand returns the netsnmp command with all subcommands.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), stdout: os.Stdout, stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "netsnmp",
		Short: "netsnmp - SNMP v1, v2c and v3 manager",
		Long: `netsnmp queries and configures SNMP agents and sends notifications.

Settings come from flags, NETSNMP_* environment variables (NETSNMP_V3_USER for
v3.user) and an optional YAML config file, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
			cfg, err := LoadConfig(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file path")
	flags.StringP("target", "t", "127.0.0.1", "agent address")
	flags.Uint16P("port", "p", 161, "agent port")
	flags.Uint16("trap-port", 162, "port traps and informs are sent to")
	flags.StringP("version", "v", "2c", "SNMP version: 1, 2c or 3")
	flags.StringP("community", "C", "public", "community string")
	flags.Duration("timeout", 2*time.Second, "timeout of one attempt")
	flags.IntP("retries", "r", 1, "retries after a timeout")
	flags.Int("max-repetitions", 50, "max-repetitions of bulk walks")
	flags.StringP("output", "o", "text", "output format: text or yaml")
	flags.String("pcap", "", "write every datagram to this pcap file")
	flags.StringP("sec-level", "l", "noAuthNoPriv", "v3 security level: noAuthNoPriv, authNoPriv or authPriv")
	flags.StringP("user", "u", "", "v3 user name")
	flags.StringP("auth-protocol", "a", "", "v3 authentication protocol: MD5 or SHA")
	flags.StringP("auth-passphrase", "A", "", "v3 authentication passphrase")
	flags.StringP("priv-protocol", "x", "", "v3 privacy protocol: DES or AES")
	flags.StringP("priv-passphrase", "X", "", "v3 privacy passphrase")
	flags.String("context-name", "", "v3 context name")
	flags.String("context-engine-id", "", "v3 context engine ID, hex")
	flags.String("local-engine-id", "", "v3 engine ID to send traps as, hex")
	flags.String("log-level", "warn", "log level: debug traces every message")
	flags.String("log-file", "", "log to this file, rotated, instead of stderr")
	flags.String("metrics-listen", "", "serve Prometheus metrics on this address while running")

	for key, flag := range map[string]string{
		"target":               "target",
		"port":                 "port",
		"trap_port":            "trap-port",
		"version":              "version",
		"community":            "community",
		"timeout":              "timeout",
		"retries":              "retries",
		"max_repetitions":      "max-repetitions",
		"output":               "output",
		"pcap":                 "pcap",
		"v3.security_level":    "sec-level",
		"v3.user":              "user",
		"v3.auth_protocol":     "auth-protocol",
		"v3.auth_passphrase":   "auth-passphrase",
		"v3.priv_protocol":     "priv-protocol",
		"v3.priv_passphrase":   "priv-passphrase",
		"v3.context_name":      "context-name",
		"v3.context_engine_id": "context-engine-id",
		"v3.local_engine_id":   "local-engine-id",
		"log.level":            "log-level",
		"log.file":             "log-file",
		"metrics.listen":       "metrics-listen",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		a.getCommand(),
		a.getNextCommand(),
		a.bulkCommand(),
		a.setCommand(),
		a.walkCommand(),
		a.tableCommand(),
		a.trapCommand(),
		a.informCommand(),
	)
	return root
}

// Execute runs the netsnmp command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
