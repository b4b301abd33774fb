package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm used for a frame. The value is the
// first byte of every frame.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// maxFrameSize bounds the declared uncompressed size of a frame.
const maxFrameSize = 64 << 20

var (
	ErrCorruptFrame   = errors.New("codec: corrupt frame")
	errIncompressible = errors.New("codec: data is incompressible")
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode marshals v to CBOR and frames it with the requested compression.
// Payloads that do not shrink are stored uncompressed.
func Encode(v any, c Compression) ([]byte, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return Compress(raw, c)
}

// Decode reverses Encode.
func Decode(frame []byte, v any) error {
	raw, err := Decompress(frame)
	if err != nil {
		return err
	}
	if err := Unmarshal(raw, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}

// Compress builds a frame: one compression byte, the uncompressed length as
// a uvarint, then the payload.
func Compress(data []byte, c Compression) ([]byte, error) {
	var payload []byte
	var err error
	switch c {
	case CompressionNone:
		payload = data
	case CompressionLZ4:
		payload, err = compressLZ4(data)
	case CompressionZstd:
		payload, err = compressZstd(data)
	default:
		return nil, fmt.Errorf("codec: unsupported compression %d", c)
	}
	if errors.Is(err, errIncompressible) {
		c, payload, err = CompressionNone, data, nil
	}
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 1+binary.MaxVarintLen64, 1+binary.MaxVarintLen64+len(payload))
	frame[0] = byte(c)
	n := binary.PutUvarint(frame[1:], uint64(len(data)))
	frame = append(frame[:1+n], payload...)
	return frame, nil
}

func Decompress(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptFrame, len(frame))
	}
	c := Compression(frame[0])
	size, n := binary.Uvarint(frame[1:])
	if n <= 0 || size > maxFrameSize {
		return nil, fmt.Errorf("%w: bad length header", ErrCorruptFrame)
	}
	payload := frame[1+n:]

	switch c {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("%w: size %d does not match %d", ErrCorruptFrame, len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		return decompressLZ4(payload, int(size))
	case CompressionZstd:
		return decompressZstd(payload, int(size))
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorruptFrame, c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return dst[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrCorruptFrame, err)
	}
	if read != size {
		return nil, fmt.Errorf("%w: lz4 got %d bytes, expected %d", ErrCorruptFrame, read, size)
	}
	return dst, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptFrame, err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: zstd got %d bytes, expected %d", ErrCorruptFrame, len(out), size)
	}
	return out, nil
}
