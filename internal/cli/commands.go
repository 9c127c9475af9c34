// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shanept/netsnmp"
)

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get OID...",
		Short: "Retrieve objects with GetRequest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(func(r *run) error {
				vbs, err := r.x.Get(cmd.Context(), args)
				if err != nil {
					return err
				}
				return r.out.varbinds(vbs)
			})
		},
	}
}

func (a *app) getNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "getnext OID...",
		Short: "Retrieve the objects following each OID with GetNextRequest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(func(r *run) error {
				vbs, err := r.x.GetNext(cmd.Context(), args)
				if err != nil {
					return err
				}
				return r.out.varbinds(vbs)
			})
		},
	}
}

func (a *app) bulkCommand() *cobra.Command {
	var nonRepeaters, maxRepetitions int
	cmd := &cobra.Command{
		Use:   "bulk OID...",
		Short: "Retrieve objects with GetBulkRequest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(func(r *run) error {
				cols, err := r.x.GetBulk(cmd.Context(), args, nonRepeaters, maxRepetitions)
				if err != nil {
					return err
				}
				var vbs []netsnmp.Varbind
				for _, col := range cols {
					vbs = append(vbs, col...)
				}
				return r.out.varbinds(vbs)
			})
		},
	}
	cmd.Flags().IntVarP(&nonRepeaters, "non-repeaters", "n", 0, "number of leading OIDs fetched once")
	cmd.Flags().IntVarP(&maxRepetitions, "repetitions", "m", 10, "successors fetched for each other OID")
	return cmd
}

func (a *app) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set OID TYPE VALUE...",
		Short: "Write objects with SetRequest",
		Long: `Write objects with SetRequest. TYPE is a type name such as Integer,
OctetString, Counter32, Gauge32, TimeTicks, ObjectIdentifier or IpAddress.
OctetString values starting with 0x are hex.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			vbs, err := parseVarbinds(args)
			if err != nil {
				return err
			}
			return a.with(func(r *run) error {
				vbs, err := r.x.Set(cmd.Context(), vbs)
				if err != nil {
					return err
				}
				return r.out.varbinds(vbs)
			})
		},
	}
}

func (a *app) walkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "walk [OID]",
		Short: "Retrieve a subtree, mib-2 by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid := "1.3.6.1.2.1"
			if len(args) == 1 {
				oid = args[0]
			}
			return a.with(func(r *run) error {
				if r.out.format == "yaml" {
					vbs, err := r.x.WalkAll(cmd.Context(), oid)
					if err != nil {
						return err
					}
					return r.out.varbinds(vbs)
				}
				// text output streams as batches arrive
				return r.x.Subtree(cmd.Context(), oid, 0, func(vbs []netsnmp.Varbind) (bool, error) {
					return false, r.out.varbinds(vbs)
				})
			})
		},
	}
}

func (a *app) tableCommand() *cobra.Command {
	var columns []int
	cmd := &cobra.Command{
		Use:   "table OID",
		Short: "Retrieve a conceptual table, by row index and column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.with(func(r *run) error {
				var (
					t   netsnmp.Table
					err error
				)
				if len(columns) > 0 {
					t, err = r.x.TableColumns(cmd.Context(), args[0], columns, 0)
				} else {
					t, err = r.x.Table(cmd.Context(), args[0], 0)
				}
				if err != nil {
					return err
				}
				return r.out.table(t)
			})
		},
	}
	cmd.Flags().IntSliceVar(&columns, "columns", nil, "retrieve only these columns")
	return cmd
}

// notificationFlags are shared by trap and inform.
type notificationFlags struct {
	generic    string
	enterprise string
	agentAddr  string
	uptime     uint32
}

func (f *notificationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.generic, "generic", "g", "", "generic trap, eg coldStart or linkDown, instead of a notification OID")
	cmd.Flags().StringVar(&f.enterprise, "enterprise", "", "SNMPv1 enterprise of a generic trap")
	cmd.Flags().StringVar(&f.agentAddr, "agent-address", "", "SNMPv1 agent-addr")
	cmd.Flags().Uint32Var(&f.uptime, "uptime", 0, "sysUpTime in hundredths of a second (default process uptime)")
}

// notification builds a Notification from [OID] followed by OID TYPE
// VALUE triples; the notification OID is omitted with --generic.
func (f *notificationFlags) notification(args []string) (netsnmp.Notification, error) {
	n := netsnmp.Notification{
		Enterprise:   f.enterprise,
		AgentAddress: f.agentAddr,
		Uptime:       f.uptime,
	}
	if f.generic != "" {
		t, ok := netsnmp.LookupTrapType(f.generic)
		if !ok {
			return n, fmt.Errorf("unknown generic trap %q", f.generic)
		}
		n.TrapType = t
	} else {
		if len(args) == 0 {
			return n, fmt.Errorf("a notification OID or --generic is required")
		}
		n.OID, args = args[0], args[1:]
	}
	vbs, err := parseVarbinds(args)
	if err != nil {
		return n, err
	}
	n.Varbinds = vbs
	return n, nil
}

func (a *app) trapCommand() *cobra.Command {
	var f notificationFlags
	cmd := &cobra.Command{
		Use:   "trap [OID] [OID TYPE VALUE...]",
		Short: "Send a trap to the trap port of the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := f.notification(args)
			if err != nil {
				return err
			}
			return a.with(func(r *run) error {
				return r.x.Trap(cmd.Context(), n)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) informCommand() *cobra.Command {
	var f notificationFlags
	cmd := &cobra.Command{
		Use:   "inform [OID] [OID TYPE VALUE...]",
		Short: "Send an InformRequest and wait for its acknowledgement",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := f.notification(args)
			if err != nil {
				return err
			}
			return a.with(func(r *run) error {
				vbs, err := r.x.Inform(cmd.Context(), n)
				if err != nil {
					return err
				}
				return r.out.varbinds(vbs)
			})
		},
	}
	f.register(cmd)
	return cmd
}
