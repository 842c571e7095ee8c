// Package wav writes mono 16-bit PCM RIFF/WAVE files carrying a LIST/INFO
// chunk with a free text comment (ICMT) and an artist field (IART).
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// CommentLength is the size of the ICMT payload.
	CommentLength = 256
	// ArtistLength is the size of the IART payload.
	ArtistLength = 32
	// HeaderSize is the size of everything before the sample data.
	HeaderSize = 360

	pcmFormat     = 1
	bitsPerSample = 16
	chunkHeader   = 8
)

// ErrInvalidHeader is returned when a header cannot be parsed.
var ErrInvalidHeader = errors.New("invalid wav header")

type chunk struct {
	ID   [4]byte
	Size uint32
}

type wavFormat struct {
	Format           uint16
	Channels         uint16
	SamplesPerSecond uint32
	BytesPerSecond   uint32
	BytesPerCapture  uint16
	BitsPerSample    uint16
}

// wireHeader is the packed on-disk header.
type wireHeader struct {
	RIFF    chunk
	WAVE    [4]byte
	Fmt     chunk
	Format  wavFormat
	List    chunk
	Info    [4]byte
	ICMT    chunk
	Comment [CommentLength]byte
	IART    chunk
	Artist  [ArtistLength]byte
	Data    chunk
}

// Header describes a recording.
type Header struct {
	SampleRate uint32
	Samples    uint32
	Comment    string // Truncated to CommentLength bytes
	Artist     string // Truncated to ArtistLength bytes
}

func id(s string) [4]byte {
	var b [4]byte
	copy(b[:], s)
	return b
}

// MarshalBinary encodes the header into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	dataSize := 2 * h.Samples
	w := wireHeader{
		RIFF: chunk{ID: id("RIFF"), Size: dataSize + HeaderSize - chunkHeader},
		WAVE: id("WAVE"),
		Fmt:  chunk{ID: id("fmt "), Size: uint32(binary.Size(wavFormat{}))},
		Format: wavFormat{
			Format:           pcmFormat,
			Channels:         1,
			SamplesPerSecond: h.SampleRate,
			BytesPerSecond:   2 * h.SampleRate,
			BytesPerCapture:  2,
			BitsPerSample:    bitsPerSample,
		},
		List: chunk{ID: id("LIST"), Size: 4 + chunkHeader + CommentLength + chunkHeader + ArtistLength},
		Info: id("INFO"),
		ICMT: chunk{ID: id("ICMT"), Size: CommentLength},
		IART: chunk{ID: id("IART"), Size: ArtistLength},
		Data: chunk{ID: id("data"), Size: dataSize},
	}
	copy(w.Comment[:], h.Comment)
	copy(w.Artist[:], h.Artist)

	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	if err := binary.Write(&buf, binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("failed to encode wav header: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadHeader decodes a header written by this package.
func ReadHeader(r io.Reader) (Header, error) {
	var w wireHeader
	if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
		return Header{}, fmt.Errorf("failed to read wav header: %w", err)
	}

	switch {
	case w.RIFF.ID != id("RIFF"), w.WAVE != id("WAVE"):
		return Header{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidHeader)
	case w.Fmt.ID != id("fmt "), w.Format.Format != pcmFormat, w.Format.BitsPerSample != bitsPerSample:
		return Header{}, fmt.Errorf("%w: not 16-bit PCM", ErrInvalidHeader)
	case w.List.ID != id("LIST"), w.ICMT.ID != id("ICMT"), w.IART.ID != id("IART"):
		return Header{}, fmt.Errorf("%w: missing INFO chunks", ErrInvalidHeader)
	case w.Data.ID != id("data"):
		return Header{}, fmt.Errorf("%w: missing data chunk", ErrInvalidHeader)
	case w.RIFF.Size != w.Data.Size+HeaderSize-chunkHeader:
		return Header{}, fmt.Errorf("%w: RIFF size %d does not match data size %d", ErrInvalidHeader, w.RIFF.Size, w.Data.Size)
	}

	return Header{
		SampleRate: w.Format.SamplesPerSecond,
		Samples:    w.Data.Size / 2,
		Comment:    strings.TrimRight(string(w.Comment[:]), "\x00"),
		Artist:     strings.TrimRight(string(w.Artist[:]), "\x00"),
	}, nil
}
