package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gpappasv/stm32-bootloader/internal/update"
)

// frameTimeout bounds a single request/response round trip. The real
// target can take noticeably longer than a console command when
// FWUG_START makes it erase the whole backup slot first.
const frameTimeout = 10 * time.Second

// conn wraps a TCP connection to the bootloader's update listener.
// bootctl talks to the same fixed framing internal/update decodes on the
// device side, dialed as a plain net.Conn the way a host CLI dials any
// telnet-style device console or update port.
type conn struct {
	nc net.Conn
}

func dial(addr string, timeout time.Duration) (*conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &conn{nc: nc}, nil
}

func (c *conn) Close() error { return c.nc.Close() }

// roundTrip sends one encoded frame and reads exactly one response frame
// back, returning it decoded.
func (c *conn) roundTrip(typ update.MsgType, body []byte) (update.Frame, error) {
	raw := update.Encode(typ, body)
	if _, err := c.nc.Write(raw); err != nil {
		return update.Frame{}, fmt.Errorf("write frame: %w", err)
	}

	c.nc.SetReadDeadline(time.Now().Add(frameTimeout))

	// frames are self-describing: byte 0 is type, byte 1 is total length
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(c.nc, hdr); err != nil {
		return update.Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	total := int(hdr[1])
	if total < 2 {
		return update.Frame{}, fmt.Errorf("bootctl: device sent an impossible frame length %d", total)
	}
	rest := make([]byte, total-2)
	if _, err := io.ReadFull(c.nc, rest); err != nil {
		return update.Frame{}, fmt.Errorf("read frame body: %w", err)
	}

	full := append(hdr, rest...)
	return update.Decode(full)
}

// fwugDataBody packs a FWUG_DATA body: little-endian packet number
// followed by a fixed-size payload chunk, matching update.payloadChunkSize.
func fwugDataBody(packetNumber uint32, chunk []byte) []byte {
	body := make([]byte, 4+len(chunk))
	binary.LittleEndian.PutUint32(body[:4], packetNumber)
	copy(body[4:], chunk)
	return body
}
