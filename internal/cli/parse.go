// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shanept/netsnmp"
)

// parseVarbinds reads OID TYPE VALUE triples, eg
// "1.3.6.1.2.1.1.5.0 OctetString router".
func parseVarbinds(args []string) ([]netsnmp.Varbind, error) {
	if len(args)%3 != 0 {
		return nil, fmt.Errorf("expected OID TYPE VALUE triples, got %d arguments", len(args))
	}
	vbs := make([]netsnmp.Varbind, 0, len(args)/3)
	for i := 0; i < len(args); i += 3 {
		t, ok := netsnmp.LookupAsn1BER(args[i+1])
		if !ok {
			return nil, fmt.Errorf("unknown type %q for %s", args[i+1], args[i])
		}
		v, err := parseValue(t, args[i+2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", args[i], err)
		}
		vbs = append(vbs, netsnmp.Varbind{Name: args[i], Type: t, Value: v})
	}
	return vbs, nil
}

// parseValue converts the text s to the Go type the codec expects for t.
// Octet strings starting with 0x are hex.
func parseValue(t netsnmp.Asn1BER, s string) (any, error) {
	switch t {
	case netsnmp.Integer:
		return strconv.Atoi(s)
	case netsnmp.Counter32, netsnmp.Gauge32, netsnmp.TimeTicks:
		u, err := strconv.ParseUint(s, 10, 32)
		return uint32(u), err
	case netsnmp.Counter64:
		return strconv.ParseUint(s, 10, 64)
	case netsnmp.Boolean:
		return strconv.ParseBool(s)
	case netsnmp.OctetString, netsnmp.Opaque:
		if strings.HasPrefix(s, "0x") {
			return hex.DecodeString(s[2:])
		}
		return []byte(s), nil
	case netsnmp.ObjectIdentifier, netsnmp.IPAddress:
		return s, nil
	case netsnmp.Null:
		return nil, nil
	}
	return nil, fmt.Errorf("%s values cannot be set", t)
}
