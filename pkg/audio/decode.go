package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Decode converts an encoded audio payload into interleaved stereo
// samples. Unknown formats are tried as mp3 first, then wav, since
// synthesis engines occasionally mislabel their output.
func Decode(data []byte, format string) ([][2]float64, int, error) {
	switch format {
	case "mp3":
		return decodeAs(data, "mp3")
	case "wav":
		return decodeAs(data, "wav")
	}

	samples, rate, err := decodeAs(data, "mp3")
	if err == nil {
		return samples, rate, nil
	}
	samples, rate, err = decodeAs(data, "wav")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode audio (format %q): %w", format, err)
	}
	return samples, rate, nil
}

func decodeAs(data []byte, format string) ([][2]float64, int, error) {
	var (
		streamer beep.StreamSeekCloser
		bf       beep.Format
		err      error
	)
	reader := io.NopCloser(bytes.NewReader(data))
	switch format {
	case "mp3":
		streamer, bf, err = mp3.Decode(reader)
	case "wav":
		streamer, bf, err = wav.Decode(reader)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format %q", format)
	}
	if err != nil {
		return nil, 0, err
	}
	defer streamer.Close()

	var samples [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := streamer.Stream(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, 0, err
	}
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("decoded audio is empty")
	}
	return samples, int(bf.SampleRate), nil
}
