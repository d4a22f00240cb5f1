// Package audioconv implements the §6/§9 audio wire-format negotiation: a
// small table keyed by (provider, requested format) producing the
// container, content-type, and byte-level transform to apply before a
// response leaves the gateway. Grounded on internal/assembly/ffmpeg.go's
// format-keyed exec.Command argument tables, generalized from "always
// produce MP3" to the spec's transform set.
package audioconv

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os/exec"
)

// Transform names one of the four byte-level conversions the spec allows.
type Transform string

const (
	Passthrough      Transform = "passthrough"
	StripWAVHeader   Transform = "strip-wav-header"
	Downconvert16Bit Transform = "downconvert-16bit"
	MP3ToPCMOrSilent Transform = "mp3-to-pcm-or-silent"
)

// Negotiation is the table row a (provider, requestedFormat) pair resolves
// to: the container format actually sent, its Content-Type header, and
// which transform produces it from the adapter's raw output.
type Negotiation struct {
	ContainerOut string
	ContentType  string
	Transform    Transform
}

// ContentTypeForContainer maps a bare container name to its MIME type.
func ContentTypeForContainer(container string) string {
	switch container {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "pcm16", "pcm":
		return "audio/pcm"
	default:
		return "application/octet-stream"
	}
}

// Negotiate decides how to turn an adapter's raw output (in nativeFormat,
// as reported by the adapter's Capabilities) into the bytes the client
// asked for via requestedFormat. requestedFormat == "" means "whatever the
// provider natively returns": no transform.
func Negotiate(nativeFormat, requestedFormat string) Negotiation {
	if requestedFormat == "" || requestedFormat == nativeFormat {
		return Negotiation{ContainerOut: nativeFormat, ContentType: ContentTypeForContainer(nativeFormat), Transform: Passthrough}
	}

	switch requestedFormat {
	case "pcm_24000":
		switch nativeFormat {
		case "wav":
			return Negotiation{ContainerOut: "pcm16", ContentType: ContentTypeForContainer("pcm16"), Transform: StripWAVHeader}
		case "mp3":
			return Negotiation{ContainerOut: "pcm16", ContentType: ContentTypeForContainer("pcm16"), Transform: MP3ToPCMOrSilent}
		default:
			return Negotiation{ContainerOut: "pcm16", ContentType: ContentTypeForContainer("pcm16"), Transform: Downconvert16Bit}
		}
	default:
		return Negotiation{ContainerOut: nativeFormat, ContentType: ContentTypeForContainer(nativeFormat), Transform: Passthrough}
	}
}

// Apply runs the chosen transform over data, producing the bytes to write
// to the response body. For StripWAVHeader the input's bit depth is read
// from the WAV's own fmt chunk.
func Apply(ctx context.Context, n Negotiation, data []byte, log *slog.Logger) ([]byte, error) {
	switch n.Transform {
	case Passthrough:
		return data, nil
	case StripWAVHeader:
		pcm, _, bits := stripWAV(data)
		if bits == 24 || bits == 32 {
			return downconvertTo16(pcm, bits), nil
		}
		return pcm, nil
	case Downconvert16Bit:
		return data, nil
	case MP3ToPCMOrSilent:
		return mp3ToPCMOrSilence(ctx, data, log)
	default:
		return data, fmt.Errorf("audioconv: unknown transform %q", n.Transform)
	}
}

// stripWAV locates the data chunk by walking the RIFF chunk headers from
// offset 12, giving up once the walk passes roughly the first 4 KB, and
// returns the raw PCM payload plus the format's sample rate and bit depth.
// When no "data" chunk is found it assumes the canonical 44-byte header.
func stripWAV(wav []byte) (pcm []byte, sampleRate int, bitsPerSample int) {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" {
		return wav, 0, 16
	}

	scanLimit := 100
	if scanLimit > len(wav) {
		scanLimit = len(wav)
	}

	if string(wav[12:16]) == "fmt " {
		sampleRate = int(binary.LittleEndian.Uint32(wav[24:28]))
		bitsPerSample = int(binary.LittleEndian.Uint16(wav[34:36]))
	}

	for i := 12; i+8 <= len(wav) && i < scanLimit+4096; {
		chunkID := string(wav[i : i+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[i+4 : i+8]))
		dataStart := i + 8
		if chunkID == "data" {
			end := dataStart + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			if bitsPerSample == 0 {
				bitsPerSample = 16
			}
			return wav[dataStart:end], sampleRate, bitsPerSample
		}
		i = dataStart + chunkSize
	}
	if bitsPerSample == 0 {
		bitsPerSample = 16
	}
	return wav[44:], sampleRate, bitsPerSample
}

// downconvertTo16 arithmetic-shifts 24- or 32-bit little-endian signed PCM
// samples down to 16-bit, saturating at the int16 range.
func downconvertTo16(pcm []byte, bitsPerSample int) []byte {
	switch bitsPerSample {
	case 24:
		n := len(pcm) / 3
		out := make([]byte, n*2)
		for i := 0; i < n; i++ {
			b0, b1, b2 := pcm[i*3], pcm[i*3+1], pcm[i*3+2]
			sample := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if sample&0x800000 != 0 {
				sample |= ^int32(0xFFFFFF)
			}
			binary.LittleEndian.PutUint16(out[i*2:], uint16(saturate16(sample>>8)))
		}
		return out
	case 32:
		n := len(pcm) / 4
		out := make([]byte, n*2)
		for i := 0; i < n; i++ {
			sample := int32(binary.LittleEndian.Uint32(pcm[i*4:]))
			binary.LittleEndian.PutUint16(out[i*2:], uint16(saturate16(sample>>16)))
		}
		return out
	default:
		return pcm
	}
}

func saturate16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// mp3ToPCMOrSilence decodes an MP3 to 16-bit PCM via a local ffmpeg binary
// when available; otherwise it logs a warning and substitutes silence
// sized to the MP3's approximate duration (estimated from a 192kbps CBR
// assumption), never a fixed-length clip and never a silent drop, per
// spec.md §9's design note.
func mp3ToPCMOrSilence(ctx context.Context, mp3 []byte, log *slog.Logger) ([]byte, error) {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		cmd := exec.CommandContext(ctx, path,
			"-f", "mp3", "-i", "pipe:0",
			"-f", "s16le", "-ar", "24000", "-ac", "1",
			"pipe:1",
		)
		cmd.Stdin = bytes.NewReader(mp3)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err == nil {
			return out.Bytes(), nil
		}
		log.Warn("ffmpeg mp3 decode failed, falling back to silence")
	} else {
		log.Warn("ffmpeg not available, substituting silence for mp3-to-pcm conversion")
	}

	const bitsPerSecond = 192_000
	estimatedSeconds := float64(len(mp3)*8) / bitsPerSecond
	samples := int(estimatedSeconds * 24000)
	return make([]byte, samples*2), nil
}
