package wavfile

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Info describes a WAV file on disk.
type Info struct {
	Path   string
	Header Header
	Format *audio.Format

	// DeclaredPayload is the data chunk size from the header, ActualPayload
	// the bytes present after it.
	DeclaredPayload int64
	ActualPayload   int64

	Duration time.Duration
	// Playable is true when a standard decoder accepts the file.
	Playable bool
}

// Consistent reports whether both size fields match the bytes on disk.
func (i Info) Consistent() bool {
	return i.DeclaredPayload == i.ActualPayload &&
		int64(i.Header.ChunkSize) == 36+i.ActualPayload
}

// Inspect reads the header of path and checks it against the file contents.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	hdr, err := ReadHeader(f)
	if err != nil {
		return Info{}, err
	}
	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}

	info := Info{
		Path:            path,
		Header:          hdr,
		DeclaredPayload: int64(hdr.DataSize),
		ActualPayload:   st.Size() - HeaderSize,
		Format: &audio.Format{
			NumChannels: int(hdr.NumChannels),
			SampleRate:  int(hdr.SampleRate),
		},
	}
	if hdr.ByteRate > 0 {
		info.Duration = time.Duration(float64(info.ActualPayload) / float64(hdr.ByteRate) * float64(time.Second))
	}

	dec := wav.NewDecoder(f)
	if dec.IsValidFile() {
		info.Playable = true
		info.Format = dec.Format()
	}

	return info, nil
}
