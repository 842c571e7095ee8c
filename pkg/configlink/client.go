package configlink

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/state"
)

// Client is the host side of the channel.
type Client struct {
	rw io.ReadWriter
}

// NewClient creates a client on rw.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

// Info requests the device information.
func (c *Client) Info(ctx context.Context) (Info, error) {
	resp, err := c.exchange(ctx, packet(MsgGetInfo, nil))
	if err != nil {
		return Info{}, err
	}
	return decodeInfo(resp)
}

// SetSettings sends s and returns what the device stored. It fails with
// ErrRejected when the stored record differs from s.
func (c *Client) SetSettings(ctx context.Context, s *config.Settings) (config.Settings, error) {
	req := encodeSettings(s)
	resp, err := c.exchange(ctx, req)
	if err != nil {
		return config.Settings{}, err
	}

	stored, err := decodeSettings(resp)
	if err != nil {
		return config.Settings{}, err
	}
	if !bytes.Equal(state.MarshalSettings(&stored), req[1:1+state.SettingsSize]) {
		return stored, ErrRejected
	}
	return stored, nil
}

func (c *Client) exchange(ctx context.Context, req []byte) ([]byte, error) {
	if _, err := c.rw.Write(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp := make([]byte, PacketSize)
	if err := readPacket(ctx, c.rw, resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp[0] != req[0] {
		return nil, fmt.Errorf("%w: response 0x%02x to request 0x%02x", ErrUnknownMessage, resp[0], req[0])
	}
	return resp, nil
}
