// Package wavfile writes canonical 44-byte-header PCM WAVE files as a stream.
//
// The RIFF and data chunk sizes are written as zero when a file is opened and
// backpatched on Finalize, so a file can be appended to for as long as a
// recording lasts without buffering its payload in memory.
package wavfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrIO wraps every filesystem failure while opening, appending or finalizing.
	ErrIO = errors.New("wavfile: i/o failure")
	// ErrClosed is returned when appending to a finalized writer.
	ErrClosed = errors.New("wavfile: writer closed")
	// ErrFinalized is returned by a second Finalize on the same writer.
	ErrFinalized = errors.New("wavfile: already finalized")
	// ErrInvalidHeader is returned for files that do not carry a canonical PCM header.
	ErrInvalidHeader = errors.New("wavfile: invalid header")
	// ErrInvalidFormat is returned for formats that cannot be described by the header.
	ErrInvalidFormat = errors.New("wavfile: invalid format")
)

// HeaderSize is the size of the canonical PCM WAVE header.
const HeaderSize = 44

// Header field offsets.
const (
	offChunkSize     = 4
	offSubchunk2Size = 40
)

const (
	fmtChunkSize = 16
	formatPCM    = 1
)

// Format describes the PCM layout written into a file header.
type Format struct {
	SampleRate    int
	BitsPerSample int
	// Channels is the channel count stored in this file.
	Channels int
	// BlockAlignChannels is the capture session's channel count. A mono file
	// split out of a stereo capture keeps the stereo block alignment.
	BlockAlignChannels int
}

func (f Format) validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	case f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0:
		return fmt.Errorf("%w: bits per sample %d", ErrInvalidFormat, f.BitsPerSample)
	case f.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalidFormat, f.Channels)
	case f.BlockAlignChannels < f.Channels:
		return fmt.Errorf("%w: block align channels %d below file channels %d", ErrInvalidFormat, f.BlockAlignChannels, f.Channels)
	}
	return nil
}

// Header is the decoded canonical header.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// placeholderHeader encodes f with both size fields left at zero.
func placeholderHeader(f Format) [HeaderSize]byte {
	var h [HeaderSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 0)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(h[20:22], formatPCM)
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.SampleRate*f.Channels*f.BitsPerSample/8))
	binary.LittleEndian.PutUint16(h[32:34], uint16(f.BlockAlignChannels*f.BitsPerSample/8))
	binary.LittleEndian.PutUint16(h[34:36], uint16(f.BitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], 0)
	return h
}

// ReadHeader decodes the 44-byte header at the start of r.
func ReadHeader(r io.ReaderAt) (Header, error) {
	var b [HeaderSize]byte
	if _, err := r.ReadAt(b[:], 0); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: missing RIFF/WAVE/fmt/data tags", ErrInvalidHeader)
	}
	if size := binary.LittleEndian.Uint32(b[16:20]); size != fmtChunkSize {
		return Header{}, fmt.Errorf("%w: fmt chunk size %d", ErrInvalidHeader, size)
	}
	return Header{
		ChunkSize:     binary.LittleEndian.Uint32(b[4:8]),
		AudioFormat:   binary.LittleEndian.Uint16(b[20:22]),
		NumChannels:   binary.LittleEndian.Uint16(b[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(b[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(b[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(b[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(b[34:36]),
		DataSize:      binary.LittleEndian.Uint32(b[40:44]),
	}, nil
}
