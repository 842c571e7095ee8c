package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer writes samples after a placeholder header and rewrites the header
// with the true sample count when finalized.
type Writer struct {
	w       io.WriteSeeker
	hdr     Header
	samples uint32
	buf     []byte
}

// Create writes a header for zero samples and returns a writer positioned
// at the start of the sample data.
func Create(w io.WriteSeeker, sampleRate uint32) (*Writer, error) {
	ww := &Writer{w: w, hdr: Header{SampleRate: sampleRate}}

	if err := ww.writeHeader(); err != nil {
		return nil, err
	}

	return ww, nil
}

// Write appends samples.
func (ww *Writer) Write(samples []int16) error {
	need := 2 * len(samples)
	if cap(ww.buf) < need {
		ww.buf = make([]byte, need)
	}
	buf := ww.buf[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}

	if _, err := ww.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}

	ww.samples += uint32(len(samples))
	return nil
}

// Samples returns the number of samples written.
func (ww *Writer) Samples() uint32 {
	return ww.samples
}

// Finalize rewrites the header with the sample count, comment and artist.
// The underlying writer is left positioned at the end of the data.
func (ww *Writer) Finalize(comment, artist string) error {
	ww.hdr.Samples = ww.samples
	ww.hdr.Comment = comment
	ww.hdr.Artist = artist

	if err := ww.writeHeader(); err != nil {
		return err
	}

	if _, err := ww.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of data: %w", err)
	}
	return nil
}

// Header returns the header as it will be or was last written.
func (ww *Writer) Header() Header {
	h := ww.hdr
	h.Samples = ww.samples
	return h
}

func (ww *Writer) writeHeader() error {
	data, err := ww.hdr.MarshalBinary()
	if err != nil {
		return err
	}

	// Rewind to the beginning of the file.
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to header: %w", err)
	}
	if _, err := ww.w.Write(data); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}
