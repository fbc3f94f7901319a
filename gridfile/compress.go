package gridfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-tile compression algorithm.
type Compression uint8

const (
	// CompressionNone stores tiles uncompressed at fixed offsets; the only
	// mode that supports writable datasets.
	CompressionNone Compression = 0
	// CompressionLZ4 stores LZ4 block-compressed tiles (fast decode).
	CompressionLZ4 Compression = 1
	// CompressionZSTD stores zstd-compressed tiles (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Tile blob layout: [UncompressedSize u32][CompressedSize u32][Data...].
// CompressedSize == 0 means the tile is stored raw, which happens when
// compression does not shrink it.
const tileBlobHeaderSize = 8

// compressTile encodes one padded tile for storage.
func compressTile(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		var cmp lz4.Compressor
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := cmp.CompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("gridfile: lz4 compress: %w", err)
		}
		if n > 0 && n < len(data) {
			compressed = dst[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		out := enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
		if len(out) < len(data) {
			compressed = out
		}
	default:
		return nil, fmt.Errorf("gridfile: unsupported compression %s", c)
	}

	blob := make([]byte, tileBlobHeaderSize, tileBlobHeaderSize+len(data))
	binary.LittleEndian.PutUint32(blob[0:], uint32(len(data)))
	if compressed == nil {
		// Incompressible tile, store raw.
		binary.LittleEndian.PutUint32(blob[4:], 0)
		return append(blob, data...), nil
	}
	binary.LittleEndian.PutUint32(blob[4:], uint32(len(compressed)))
	return append(blob, compressed...), nil
}

// decompressTile decodes a stored tile blob into dst, which must be exactly
// the padded tile size.
func decompressTile(dst, blob []byte, c Compression) error {
	if len(blob) < tileBlobHeaderSize {
		return errors.New("gridfile: tile blob truncated")
	}
	uncompressedSize := binary.LittleEndian.Uint32(blob[0:])
	compressedSize := binary.LittleEndian.Uint32(blob[4:])
	if int(uncompressedSize) != len(dst) {
		return fmt.Errorf("gridfile: tile size mismatch: header %d, want %d", uncompressedSize, len(dst))
	}
	payload := blob[tileBlobHeaderSize:]

	if compressedSize == 0 {
		if len(payload) < len(dst) {
			return errors.New("gridfile: raw tile truncated")
		}
		copy(dst, payload[:len(dst)])
		return nil
	}
	if int(compressedSize) > len(payload) {
		return errors.New("gridfile: compressed tile truncated")
	}
	payload = payload[:compressedSize]

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return fmt.Errorf("gridfile: lz4 decompress: %w", err)
		}
		if n != len(dst) {
			return fmt.Errorf("gridfile: lz4 short decompress: %d of %d", n, len(dst))
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, dst[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return fmt.Errorf("gridfile: zstd decompress: %w", err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("gridfile: zstd short decompress: %d of %d", len(out), len(dst))
		}
	default:
		return fmt.Errorf("gridfile: unsupported compression %s", c)
	}
	return nil
}
