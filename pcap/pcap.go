// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package pcap records the datagrams of a netsnmp session as a pcap stream
// that Wireshark or tcpdump can decode as SNMP.
package pcap

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/shanept/netsnmp"
)

const snapLen = 65536

// Recorder is a netsnmp.Transport that passes everything through to the
// wrapped transport and writes each datagram sent or received as a raw IP
// frame. Recording failures never affect the traffic; see Err.
type Recorder struct {
	netsnmp.Transport

	mu    sync.Mutex
	w     *pcapgo.Writer
	local *net.UDPAddr
	err   error
	now   func() time.Time
}

var _ netsnmp.Transport = (*Recorder)(nil)

// NewRecorder writes the pcap file header to w and returns a Recorder
// wrapping t. The local end of the recorded frames is t's LocalAddr when it
// has one.
func NewRecorder(t netsnmp.Transport, w io.Writer) (*Recorder, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("pcap header: %w", err)
	}
	r := &Recorder{Transport: t, w: pw, now: time.Now}
	if la, ok := t.(interface{ LocalAddr() net.Addr }); ok {
		r.local, _ = la.LocalAddr().(*net.UDPAddr)
	}
	return r, nil
}

// ReadFrom implements netsnmp.Transport.
func (r *Recorder) ReadFrom(p []byte) (int, net.Addr, error) {
	n, addr, err := r.Transport.ReadFrom(p)
	if err == nil {
		r.record(udpAddr(addr), r.local, p[:n])
	}
	return n, addr, err
}

// WriteTo implements netsnmp.Transport.
func (r *Recorder) WriteTo(p []byte, addr net.Addr) (int, error) {
	n, err := r.Transport.WriteTo(p, addr)
	if err == nil {
		r.record(r.local, udpAddr(addr), p[:n])
	}
	return n, err
}

// Err returns the first error met while recording.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func udpAddr(a net.Addr) *net.UDPAddr {
	u, _ := a.(*net.UDPAddr)
	return u
}

func (r *Recorder) record(src, dst *net.UDPAddr, payload []byte) {
	frame, err := Frame(src, dst, payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		err = r.w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     r.now(),
			CaptureLength: len(frame),
			Length:        len(frame),
		}, frame)
	}
	if err != nil && r.err == nil {
		r.err = err
	}
}

// Frame builds an IPv4 or IPv6 UDP datagram carrying payload from src to
// dst. A nil address stands for the unspecified address and port 0.
func Frame(src, dst *net.UDPAddr, payload []byte) ([]byte, error) {
	srcIP, srcPort := endpoint(src)
	dstIP, dstPort := endpoint(dst)
	// an unbound end takes the family of the other
	srcIP = unspecified(srcIP, dstIP)
	dstIP = unspecified(dstIP, srcIP)
	v4 := srcIP.To4() != nil && dstIP.To4() != nil
	if !v4 {
		// mixed families are written as IPv6, with v4-mapped addresses
		srcIP, dstIP = srcIP.To16(), dstIP.To16()
	}

	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	var network gopacket.SerializableLayer
	if v4 {
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    srcIP.To4(),
			DstIP:    dstIP.To4(),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	} else {
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolUDP,
			SrcIP:      srcIP,
			DstIP:      dstIP,
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, network, udp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func endpoint(a *net.UDPAddr) (net.IP, int) {
	if a == nil {
		return nil, 0
	}
	return a.IP, a.Port
}

func unspecified(ip, other net.IP) net.IP {
	if ip != nil && !ip.IsUnspecified() {
		return ip
	}
	if other == nil || other.To4() != nil {
		return net.IPv4zero
	}
	return net.IPv6unspecified
}
