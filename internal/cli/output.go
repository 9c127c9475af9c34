// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/shanept/netsnmp"
)

// printer renders results in the configured output format.
type printer struct {
	w      io.Writer
	format string
}

type varbindOut struct {
	OID   string `yaml:"oid"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value,omitempty"`
}

type tableOut struct {
	Index   string      `yaml:"index"`
	Columns map[int]any `yaml:"columns"`
}

// displayValue makes v printable: octet strings become text when they are
// printable UTF-8 and hex otherwise.
func displayValue(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if utf8.Valid(b) && strings.IndexFunc(string(b), func(r rune) bool {
		return !unicode.IsPrint(r) && !unicode.IsSpace(r)
	}) < 0 {
		return string(b)
	}
	return "0x" + hex.EncodeToString(b)
}

func (p *printer) varbinds(vbs []netsnmp.Varbind) error {
	if p.format == "yaml" {
		out := make([]varbindOut, len(vbs))
		for i, vb := range vbs {
			out[i] = varbindOut{OID: vb.Name, Type: vb.Type.String(), Value: displayValue(vb.Value)}
		}
		return p.yaml(out)
	}
	for _, vb := range vbs {
		var err error
		switch {
		case vb.Type.IsExceptionType() || vb.Value == nil:
			_, err = fmt.Fprintf(p.w, "%s = %s\n", vb.Name, vb.Type)
		default:
			_, err = fmt.Fprintf(p.w, "%s = %s: %v\n", vb.Name, vb.Type, displayValue(vb.Value))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) table(t netsnmp.Table) error {
	rows := make([]string, 0, len(t))
	for index := range t {
		rows = append(rows, index)
	}
	sort.Slice(rows, func(i, j int) bool { return netsnmp.OIDFollows(rows[i], rows[j]) })

	if p.format == "yaml" {
		out := make([]tableOut, len(rows))
		for i, index := range rows {
			cols := make(map[int]any, len(t[index]))
			for c, v := range t[index] {
				cols[c] = displayValue(v)
			}
			out[i] = tableOut{Index: index, Columns: cols}
		}
		return p.yaml(out)
	}

	for _, index := range rows {
		cols := make([]int, 0, len(t[index]))
		for c := range t[index] {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		fields := make([]string, len(cols))
		for i, c := range cols {
			fields[i] = strconv.Itoa(c) + "=" + fmt.Sprint(displayValue(t[index][c]))
		}
		if _, err := fmt.Fprintf(p.w, "%s\t%s\n", index, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) yaml(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
