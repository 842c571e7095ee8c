package configlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/itohio/gospl/pkg/config"
)

// Handler is the device side of the channel.
type Handler interface {
	// Info returns the current device information.
	Info() Info
	// SetSettings validates and stores s and returns the stored settings.
	// On error the previously stored settings are returned.
	SetSettings(s config.Settings) (config.Settings, error)
}

// Server answers configuration requests on a byte stream.
type Server struct {
	rw io.ReadWriter
}

// NewServer creates a server on rw. A serial port opened with a read
// timeout lets Serve notice cancellation between packets.
func NewServer(rw io.ReadWriter) *Server {
	return &Server{rw: rw}
}

// Serve answers requests until ctx is done or the stream ends.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	req := make([]byte, PacketSize)
	for {
		if err := readPacket(ctx, s.rw, req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		resp, err := Handle(req, h)
		if err != nil {
			log.Printf("ignoring configuration packet: %v", err)
			continue
		}

		if _, err := s.rw.Write(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// Handle answers one request packet.
func Handle(req []byte, h Handler) ([]byte, error) {
	if len(req) != PacketSize {
		return nil, fmt.Errorf("packet is %d bytes, want %d", len(req), PacketSize)
	}

	switch req[0] {
	case MsgGetInfo:
		return encodeInfo(h.Info()), nil

	case MsgSetSettings:
		settings, err := decodeSettings(req)
		if err != nil {
			return nil, err
		}
		stored, err := h.SetSettings(settings)
		if err != nil {
			log.Printf("rejected settings: %v", err)
		}
		return encodeSettings(&stored), nil

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownMessage, req[0])
	}
}

// readPacket fills p from r. Zero length reads are timeouts and only
// check ctx.
func readPacket(ctx context.Context, r io.Reader, p []byte) error {
	got := 0
	for got < len(p) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(p[got:])
		got += n
		if got == len(p) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) && got > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}
