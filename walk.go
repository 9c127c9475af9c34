// Copyright 2012-2014 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// baseOid is where WalkAll starts when given no OID: mib-2.
const baseOid = "1.3.6.1.2.1"

// WalkFunc is called with every batch of varbinds a walk retrieves.
// Returning done ends the walk; returning an error ends it with that error.
type WalkFunc func(varbinds []Varbind) (done bool, err error)

// Table is the result of Table and TableColumns: values keyed by row index,
// then by column number. The row index is the dotted remainder of the OID
// after the column, eg "1" or "10.0.0.1".
type Table map[string]map[int]any

func (x *Session) repetitions(maxRepetitions int) int {
	if maxRepetitions > 0 {
		return maxRepetitions
	}
	if x.MaxRepetitions > 0 {
		return x.MaxRepetitions
	}
	return defaultMaxRepetitions
}

// Walk retrieves the MIB from oid onward, feeding each batch to walkFn,
// until walkFn is done or the agent's view is exhausted. SNMPv1 walks with
// GetNext and ends at a noSuchName error; later versions walk with GetBulk
// and end at the first exception varbind, usually endOfMibView.
func (x *Session) Walk(ctx context.Context, oid string, maxRepetitions int, walkFn WalkFunc) error {
	oid = normalizeOID(oid)
	maxRepetitions = x.repetitions(maxRepetitions)
	requests := 0

	for {
		requests++
		var batch []Varbind
		done := false

		if x.Version == Version1 {
			vbs, err := x.GetNext(ctx, []string{oid})
			var failed *RequestFailedError
			switch {
			case errors.As(err, &failed) && failed.Status == NoSuchName:
				x.Logger.Printf("walk: %s ended by noSuchName after %d requests", oid, requests)
				return nil
			case err != nil:
				return err
			}
			batch = vbs
		} else {
			cols, err := x.GetBulk(ctx, []string{oid}, 0, maxRepetitions)
			if err != nil {
				return err
			}
			batch = cols[0]
			for i, vb := range batch {
				if vb.Type.IsExceptionType() {
					batch = batch[:i]
					done = true
					break
				}
			}
		}

		if len(batch) == 0 {
			break
		}
		if last := batch[len(batch)-1].Name; !OIDFollows(oid, last) {
			return responseInvalid("walk: OID not increasing: %s after %s", last, oid)
		}
		stop, err := walkFn(batch)
		if err != nil {
			return err
		}
		if stop || done {
			break
		}
		oid = batch[len(batch)-1].Name
	}
	x.Logger.Printf("walk: completed in %d requests", requests)
	return nil
}

// Subtree walks the subtree rooted at oid. Varbinds beyond the subtree are
// discarded and end the walk.
func (x *Session) Subtree(ctx context.Context, oid string, maxRepetitions int, walkFn WalkFunc) error {
	base := normalizeOID(oid)
	return x.Walk(ctx, base, maxRepetitions, func(vbs []Varbind) (bool, error) {
		n := 0
		for n < len(vbs) && OIDInSubtree(base, vbs[n].Name) {
			n++
		}
		left := n < len(vbs)
		if n > 0 {
			done, err := walkFn(vbs[:n])
			if err != nil || done {
				return true, err
			}
		}
		return left, nil
	})
}

// WalkAll returns every varbind in the subtree rooted at oid, or under
// mib-2 when oid is empty.
func (x *Session) WalkAll(ctx context.Context, oid string) ([]Varbind, error) {
	if normalizeOID(oid) == "" {
		oid = baseOid
	}
	var results []Varbind
	err := x.Subtree(ctx, oid, 0, func(vbs []Varbind) (bool, error) {
		results = append(results, vbs...)
		return false, nil
	})
	return results, err
}

// Table retrieves the conceptual table at oid, whose rows live under
// oid.1.<column>.<index>.
func (x *Session) Table(ctx context.Context, oid string, maxRepetitions int) (Table, error) {
	oid = normalizeOID(oid)
	table := make(Table)
	err := x.Subtree(ctx, oid, maxRepetitions, tableFeed(oid+".1", table))
	if err != nil {
		return nil, err
	}
	return table, nil
}

// TableColumns retrieves only the given columns of the table at oid, one
// column subtree at a time.
func (x *Session) TableColumns(ctx context.Context, oid string, columns []int, maxRepetitions int) (Table, error) {
	oid = normalizeOID(oid)
	rowOid := oid + ".1"
	table := make(Table)
	for _, column := range columns {
		colOid := rowOid + "." + strconv.Itoa(column)
		if err := x.Subtree(ctx, colOid, maxRepetitions, tableFeed(rowOid, table)); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// tableFeed files each varbind under rowOid into table. Varbinds that are
// not <rowOid>.<column>.<index> with a positive column are skipped.
func tableFeed(rowOid string, table Table) WalkFunc {
	return func(vbs []Varbind) (bool, error) {
		for _, vb := range vbs {
			if err := vb.ExceptionError(); err != nil {
				return true, err
			}
			tail, ok := oidTail(rowOid, vb.Name)
			if !ok || len(tail) < 2 || tail[0] <= 0 {
				continue
			}
			index := make([]string, len(tail)-1)
			for i, c := range tail[1:] {
				index[i] = strconv.Itoa(c)
			}
			row := strings.Join(index, ".")
			if table[row] == nil {
				table[row] = make(map[int]any)
			}
			table[row][tail[0]] = vb.Value
		}
		return false, nil
	}
}
