// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rx converts kernel-delivered UDP multicast datagrams into
// pool-owned, timestamped frames and is the sole suspension point on the
// hot path (spec.md §5): every other stage is non-blocking.
package rx

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/Numi2/Numi-orderbook/pool"
)

// ErrOversizeDatagram is counted and the datagram discarded without being
// handed further downstream.
var ErrOversizeDatagram = errors.New("rx: datagram exceeds max_packet_size")

// Config carries one channel's ingress parameters (spec.md §6).
type Config struct {
	Group string // multicast group address, e.g. "239.1.1.1"
	Port  int
	Iface string // interface name; empty uses the system default
}

// Hooks receives RX's countable events.
type Hooks interface {
	OnPacket(bytes int)
	OnDrop()
	OnOversize()
}

// NoopHooks implements Hooks with no-ops.
type NoopHooks struct{}

func (NoopHooks) OnPacket(int) {}
func (NoopHooks) OnDrop()      {}
func (NoopHooks) OnOversize()  {}

// Receiver owns one UDP multicast socket for one channel (A, B, or a
// Recovery transport reusing the same read loop shape).
type Receiver struct {
	conn    net.PacketConn
	pc      *ipv4.PacketConn
	pool    *pool.Pool
	channel pool.Channel
	hooks   Hooks
}

// New opens and joins the configured multicast group for channel.
func New(cfg Config, p *pool.Pool, channel pool.Channel, hooks Hooks) (*Receiver, error) {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(conn)
	var iface *net.Interface
	if cfg.Iface != "" {
		iface, err = net.InterfaceByName(cfg.Iface)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}
	group := &net.UDPAddr{IP: net.ParseIP(cfg.Group)}
	if err := pc.JoinGroup(iface, group); err != nil {
		conn.Close()
		return nil, err
	}

	return &Receiver{conn: conn, pc: pc, pool: p, channel: channel, hooks: hooks}, nil
}

// Close leaves the multicast group and closes the socket.
func (r *Receiver) Close() error { return r.conn.Close() }

// ReceiveOnce blocks in the kernel receive call, then stamps and returns
// one pool-owned frame. On PoolExhausted the datagram is read and
// discarded (so the socket buffer doesn't back up) and the drop is
// counted; on oversize datagrams the frame is released and the drop is
// counted as an oversize event. Both are non-fatal per spec.md §4.2.
func (r *Receiver) ReceiveOnce() (*pool.Frame, error) {
	frame, err := r.pool.Acquire()
	if err != nil {
		var scratch [65536]byte
		_, _, _ = r.pc.ReadFrom(scratch[:])
		r.hooks.OnDrop()
		return nil, pool.ErrPoolExhausted
	}

	buf := frame.Payload[:cap(frame.Payload)]
	n, _, readErr := r.pc.ReadFrom(buf)
	if readErr != nil {
		frame.Release()
		return nil, readErr
	}
	if n > r.pool.MaxPacketSize() {
		frame.Release()
		r.hooks.OnOversize()
		return nil, ErrOversizeDatagram
	}

	now := time.Now().UnixNano()
	frame.Payload = buf[:n]
	frame.Len = n
	frame.Channel = r.channel
	frame.ReceiptNS = now
	frame.WireTS = now // no hardware/software ancillary timestamp on this transport
	frame.TSSource = pool.TSSoftware

	r.hooks.OnPacket(n)
	return frame, nil
}
