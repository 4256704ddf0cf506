// Package audiofile decodes WAV files into the sample sequences consumed by
// the feature extractor. The core contract only requires ordered, finite,
// real-valued magnitudes; this package is the decoding collaborator that
// supplies them.
package audiofile

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-audio/wav"

	"github.com/aprice/audiodetect-go/internal/errors"
)

// getAudioDivisor returns the normalization divisor for the given bit depth.
func getAudioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported bit depth: %d", bitDepth).
			Component("audiofile").
			Category(errors.CategoryAudio).
			Context("bit_depth", bitDepth).
			Build()
	}
}

// ReadWAV decodes the WAV file into mono float64 samples normalized to
// [-1, 1] and returns them with the source sample rate. Multi-channel
// input is downmixed by channel averaging.
func ReadWAV(path string) ([]float64, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Newf("failed to open audio file %s: %v", path, err).
			Component("audiofile").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, errors.Newf("input %s is not a valid WAV audio file", path).
			Component("audiofile").
			Category(errors.CategoryAudio).
			Build()
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, 0, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, errors.Newf("failed to decode audio file %s: %v", path, err).
			Component("audiofile").
			Category(errors.CategoryAudio).
			Build()
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	samples := make([]float64, 0, len(buf.Data)/channels)
	for i := 0; i+channels <= len(buf.Data); i += channels {
		var sum float64
		for c := range channels {
			sum += float64(buf.Data[i+c])
		}
		samples = append(samples, sum/float64(channels)/divisor)
	}

	return samples, buf.Format.SampleRate, nil
}

// IsSupported reports whether the file extension names a decodable format.
func IsSupported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ListDir walks a directory tree and returns the supported audio file
// paths in sorted order.
func ListDir(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Newf("failed to scan audio directory %s: %v", dir, err).
			Component("audiofile").
			Category(errors.CategoryFileIO).
			Build()
	}
	slices.Sort(paths)
	return paths, nil
}
