package gridfile

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
)

const (
	// MagicNumber identifies a gridfile container ("FGR1").
	MagicNumber = 0x46475231
	// Version is the current format version.
	Version = 1
	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 160

	// Ext is the filename extension the driver registers under.
	Ext = ".fgr"

	cellBytes = 8 // float64
)

var (
	ErrInvalidMagic   = errors.New("gridfile: invalid magic number")
	ErrInvalidVersion = errors.New("gridfile: unsupported version")
	ErrChecksum       = errors.New("gridfile: header checksum mismatch")
	ErrReadOnly       = errors.New("gridfile: dataset is read-only")
	// ErrCompressedWritable is returned when a compressed file is opened
	// writable. Compressed tiles have variable length, so in-place window
	// writes are not supported.
	ErrCompressedWritable = errors.New("gridfile: compressed dataset cannot be opened writable")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Header describes the layout of a gridfile container.
//
//	┌───────────────────────────────────────────────┐
//	│ Header (160 bytes, CRC32C protected)          │
//	├───────────────────────────────────────────────┤
//	│ Tiles, row-major per band                     │
//	│  uncompressed: full TileW×TileH×8, in place   │
//	│  compressed:   variable-length blobs          │
//	├───────────────────────────────────────────────┤
//	│ Tile index (compressed files only)            │
//	│  Bands×NumTiles × (offset u64, length u64)    │
//	└───────────────────────────────────────────────┘
//
// Edge tiles are stored padded to the full tile size; the padding cells are
// never addressed because window coordinates are clipped to the raster
// extent.
type Header struct {
	Magic        uint32
	Version      uint32
	Width        uint32
	Height       uint32
	TileW        uint32
	TileH        uint32
	Bands        uint32
	Compression  Compression
	HasNoData    bool
	NoData       float64
	GeoTransform [6]float64
	// TileIndexOffset is the file offset of the tile index; zero for
	// uncompressed files, whose tile offsets are computed.
	TileIndexOffset uint64
	Checksum        uint32
}

func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.Width)
	binary.LittleEndian.PutUint32(buf[12:], h.Height)
	binary.LittleEndian.PutUint32(buf[16:], h.TileW)
	binary.LittleEndian.PutUint32(buf[20:], h.TileH)
	binary.LittleEndian.PutUint32(buf[24:], h.Bands)
	buf[28] = byte(h.Compression)
	if h.HasNoData {
		buf[29] = 1
	}
	// Padding [30:32]
	binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(h.NoData))
	for i, g := range h.GeoTransform {
		binary.LittleEndian.PutUint64(buf[40+i*8:], math.Float64bits(g))
	}
	binary.LittleEndian.PutUint64(buf[88:], h.TileIndexOffset)
	h.Checksum = crc32.Checksum(buf[:96], castagnoli)
	binary.LittleEndian.PutUint32(buf[96:], h.Checksum)
	// Reserved [100:160]
	return buf
}

func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, errors.New("gridfile: buffer too small for header")
	}
	h := &Header{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != MagicNumber {
		return nil, ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	if h.Version != Version {
		return nil, ErrInvalidVersion
	}
	h.Checksum = binary.LittleEndian.Uint32(buf[96:])
	if crc32.Checksum(buf[:96], castagnoli) != h.Checksum {
		return nil, ErrChecksum
	}
	h.Width = binary.LittleEndian.Uint32(buf[8:])
	h.Height = binary.LittleEndian.Uint32(buf[12:])
	h.TileW = binary.LittleEndian.Uint32(buf[16:])
	h.TileH = binary.LittleEndian.Uint32(buf[20:])
	h.Bands = binary.LittleEndian.Uint32(buf[24:])
	h.Compression = Compression(buf[28])
	h.HasNoData = buf[29] != 0
	h.NoData = math.Float64frombits(binary.LittleEndian.Uint64(buf[32:]))
	for i := range h.GeoTransform {
		h.GeoTransform[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[40+i*8:]))
	}
	h.TileIndexOffset = binary.LittleEndian.Uint64(buf[88:])
	return h, nil
}

// tileLoc locates one compressed tile blob in the file.
type tileLoc struct {
	offset uint64
	length uint64
}

const tileLocSize = 16

func encodeFloats(dst []byte, src []float64) {
	for i, v := range src {
		binary.LittleEndian.PutUint64(dst[i*cellBytes:], math.Float64bits(v))
	}
}

func decodeFloats(dst []float64, src []byte) {
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*cellBytes:]))
	}
}
