// Package configlink implements the configuration channel between a host
// and a recorder: fixed size packets carrying device information and the
// settings record.
package configlink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/itohio/gospl/pkg/battery"
	"github.com/itohio/gospl/pkg/config"
	"github.com/itohio/gospl/pkg/state"
)

const (
	// PacketSize is the size of every request and response.
	PacketSize = 64
	// VersionLength is the size of the firmware version.
	VersionLength = 3
	// DescriptionLength is the size of the firmware description.
	DescriptionLength = 32
)

// Message types, carried in the first byte of a packet.
const (
	MsgGetInfo     byte = 0x05
	MsgSetSettings byte = 0x06
)

var (
	// ErrUnknownMessage is returned for a packet with an unsupported type.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrRejected is returned when the device stores different settings
	// from the ones sent.
	ErrRejected = errors.New("settings rejected by device")
)

// Info is the device information returned by MsgGetInfo.
type Info struct {
	Time        uint32
	DeviceID    uint64
	Battery     battery.Band
	Version     [VersionLength]byte
	Description string
}

type wireInfo struct {
	Time        uint32
	DeviceID    uint64
	Battery     uint8
	Version     [VersionLength]byte
	Description [DescriptionLength]byte
}

func packet(msg byte, payload []byte) []byte {
	p := make([]byte, PacketSize)
	p[0] = msg
	copy(p[1:], payload)
	return p
}

func encodeInfo(info Info) []byte {
	w := wireInfo{
		Time:     info.Time,
		DeviceID: info.DeviceID,
		Battery:  uint8(info.Battery),
		Version:  info.Version,
	}
	copy(w.Description[:], info.Description)

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, &w)
	return packet(MsgGetInfo, buf.Bytes())
}

func decodeInfo(p []byte) (Info, error) {
	var w wireInfo
	if err := binary.Read(bytes.NewReader(p[1:]), binary.LittleEndian, &w); err != nil {
		return Info{}, fmt.Errorf("failed to decode info: %w", err)
	}
	return Info{
		Time:        w.Time,
		DeviceID:    w.DeviceID,
		Battery:     battery.Band(w.Battery),
		Version:     w.Version,
		Description: string(bytes.TrimRight(w.Description[:], "\x00")),
	}, nil
}

func encodeSettings(s *config.Settings) []byte {
	return packet(MsgSetSettings, state.MarshalSettings(s))
}

func decodeSettings(p []byte) (config.Settings, error) {
	return state.UnmarshalSettings(p[1:])
}
