package wavfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// maxPayload keeps 36+payload inside the 32-bit RIFF chunk size.
const maxPayload = math.MaxUint32 - 36

// Writer streams PCM payload into one WAV file.
//
// A Writer is not safe for concurrent use. Finalize may be called once.
type Writer struct {
	path    string
	format  Format
	file    *os.File
	payload int64

	finalized bool
}

// Open creates or truncates path and writes a header with zero size fields.
func Open(path string, f Format) (*Writer, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}

	hdr := placeholderHeader(f)
	if _, err := file.Write(hdr[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: write header %s: %w", ErrIO, path, err)
	}

	return &Writer{path: path, format: f, file: file}, nil
}

// Append writes p after everything written so far. Only bytes that reached
// the file are counted towards the payload.
func (w *Writer) Append(p []byte) error {
	if w.finalized {
		return ErrClosed
	}
	n, err := w.file.Write(p)
	w.payload += int64(n)
	if err != nil {
		return fmt.Errorf("%w: append %s: %w", ErrIO, w.path, err)
	}
	return nil
}

// Finalize backpatches the RIFF and data chunk sizes and closes the file.
// The file is closed even when backpatching fails; its header then keeps the
// zero placeholders.
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	payload := uint32(min(w.payload, maxPayload))

	var b [4]byte
	var errs []error
	binary.LittleEndian.PutUint32(b[:], 36+payload)
	if _, err := w.file.WriteAt(b[:], offChunkSize); err != nil {
		errs = append(errs, err)
	} else {
		binary.LittleEndian.PutUint32(b[:], payload)
		if _, err := w.file.WriteAt(b[:], offSubchunk2Size); err != nil {
			errs = append(errs, err)
		}
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: finalize %s: %w", ErrIO, w.path, err)
	}
	return nil
}

// Path returns the file path.
func (w *Writer) Path() string { return w.path }

// Format returns the header format.
func (w *Writer) Format() Format { return w.format }

// PayloadSize returns the PCM bytes written after the header.
func (w *Writer) PayloadSize() int64 { return w.payload }

// Finalized reports whether Finalize has been called.
func (w *Writer) Finalized() bool { return w.finalized }
