// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"io"
	"net"

	"code.hybscloud.com/framer"

	"github.com/Numi2/Numi-orderbook/proto"
)

// TCPSink pumps one Subscription's frames onto a TCP connection. Each OBO
// frame (self-describing via its own payload_len field) is additionally
// length-prefixed at the transport boundary by framer, as defense against
// partial reads independent of the application-level header.
type TCPSink struct {
	sub  *Subscription
	w    io.Writer
	conn net.Conn
}

// NewTCPSink wraps conn with framer.WithWriteTCP() and binds it to sub.
func NewTCPSink(conn net.Conn, sub *Subscription) *TCPSink {
	return &TCPSink{
		sub:  sub,
		w:    framer.NewWriter(conn, framer.WithWriteTCP()),
		conn: conn,
	}
}

// PumpOnce writes at most one available frame to the connection. Returns
// false when no frame was available (caller should back off) or when the
// subscriber has been dropped.
func (s *TCPSink) PumpOnce() (wrote bool, err error) {
	if s.sub.Dropped() {
		return false, io.EOF
	}
	fr, ok := s.sub.ReadFrame()
	if !ok {
		return false, nil
	}

	var buf [proto.HeaderSize + maxPayload]byte
	if _, err := fr.Header.Encode(buf[:proto.HeaderSize]); err != nil {
		return false, err
	}
	copy(buf[proto.HeaderSize:], fr.Payload[:fr.PayloadLen])

	total := proto.HeaderSize + fr.PayloadLen
	if _, err := s.w.Write(buf[:total]); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the underlying connection and detaches the subscription.
func (s *TCPSink) Close() error {
	s.sub.Close()
	return s.conn.Close()
}
