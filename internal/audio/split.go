package audio

// stereo16Frame is one PCM16 stereo frame: left sample then right sample.
const stereo16Frame = 4

// SplitStereo16 de-interleaves little-endian PCM16 stereo from src into left
// and right, keeping time order. It returns the bytes written to each channel.
// src is never modified and trailing partial frames are ignored. left and right
// must each hold at least len(src)/2 bytes.
func SplitStereo16(left, right, src []byte) int {
	frames := len(src) / stereo16Frame
	for k := 0; k < frames; k++ {
		in := src[k*stereo16Frame:]
		out := k * 2
		left[out] = in[0]
		left[out+1] = in[1]
		right[out] = in[2]
		right[out+1] = in[3]
	}
	return frames * 2
}

// JoinStereo16 interleaves two PCM16 mono blocks into dst, the inverse of
// SplitStereo16. It returns the bytes written to dst.
func JoinStereo16(dst, left, right []byte) int {
	samples := min(len(left), len(right)) / 2
	for k := 0; k < samples; k++ {
		out := dst[k*stereo16Frame:]
		out[0] = left[k*2]
		out[1] = left[k*2+1]
		out[2] = right[k*2]
		out[3] = right[k*2+1]
	}
	return samples * stereo16Frame
}
