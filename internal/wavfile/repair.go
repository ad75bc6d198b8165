package wavfile

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Repair rewrites the size fields of a file whose recording was never
// finalized, using the bytes present after the header as the payload.
func Repair(path string) (Header, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Header{}, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer file.Close()

	if _, err := ReadHeader(file); err != nil {
		return Header{}, err
	}

	st, err := file.Stat()
	if err != nil {
		return Header{}, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	payload := uint32(min(st.Size()-HeaderSize, maxPayload))

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], 36+payload)
	if _, err := file.WriteAt(b[:], offChunkSize); err != nil {
		return Header{}, fmt.Errorf("%w: repair %s: %w", ErrIO, path, err)
	}
	binary.LittleEndian.PutUint32(b[:], payload)
	if _, err := file.WriteAt(b[:], offSubchunk2Size); err != nil {
		return Header{}, fmt.Errorf("%w: repair %s: %w", ErrIO, path, err)
	}

	return ReadHeader(file)
}
