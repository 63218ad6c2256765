package bvh

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Compression selects how a snapshot body is stored.
type Compression uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

// Snapshot layout, little endian:
//
//	magic       [4]byte "BVH1"
//	version     uint8
//	compression uint8
//	reserved    uint16
//	build id    [16]byte
//	leaf count  uint32
//	node count  uint32
//	payload len uint32
//	stored len  uint32   length of the (possibly compressed) body that follows
//	body        nodes (8 bytes each), boundaries (4 bytes each), payload
//	checksum    uint32   CRC32-Castagnoli of the uncompressed body
const (
	snapshotMagic      = "BVH1"
	snapshotVersion    = 1
	snapshotHeaderSize = 40
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Headers claiming a body larger than the stored bytes could expand to are
// rejected before anything is allocated. An LZ4 match grows by at most 255
// bytes per input byte. A ZSTD RLE block costs 4 bytes and expands to 128 KiB.
const (
	lz4MaxRatio  = 255
	zstdMaxRatio = 1 << 15

	zstdMinDecodeLimit = 64 << 10
)

var zstdEncoderPool sync.Pool

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	return enc, nil
}

// WriteSnapshot serializes the index so that another process can load it with
// ReadSnapshot instead of rebuilding. If compression does not shrink the body
// it is stored uncompressed.
func (s *Shared) WriteSnapshot(w io.Writer, c Compression) (int64, error) {
	body := s.encodeBody()
	stored, c, err := compressBody(body, c)
	if err != nil {
		return 0, err
	}

	var header [snapshotHeaderSize]byte
	copy(header[0:4], snapshotMagic)
	header[4] = snapshotVersion
	header[5] = byte(c)
	copy(header[8:24], s.id[:])
	binary.LittleEndian.PutUint32(header[24:], uint32(s.leafCount))
	binary.LittleEndian.PutUint32(header[28:], uint32(len(s.nodes)))
	binary.LittleEndian.PutUint32(header[32:], uint32(len(s.data)))
	binary.LittleEndian.PutUint32(header[36:], uint32(len(stored)))

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.Checksum(body, crc32cTable))

	bufs := [][]byte{header[:], stored, trailer[:]}
	var written int64
	for _, buf := range bufs {
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, errors.Wrap(err, "write snapshot")
		}
	}
	return written, nil
}

func (s *Shared) encodeBody() []byte {
	body := make([]byte, 0, 8*len(s.nodes)+4*len(s.boundaries)+len(s.data))
	for _, n := range s.nodes {
		body = binary.LittleEndian.AppendUint64(body, uint64(n))
	}
	for _, off := range s.boundaries {
		body = binary.LittleEndian.AppendUint32(body, off)
	}
	return append(body, s.data...)
}

func compressBody(body []byte, c Compression) ([]byte, Compression, error) {
	if len(body) == 0 {
		return body, CompressionNone, nil
	}
	switch c {
	case CompressionNone:
		return body, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(body)))
		n, err := lz4.CompressBlock(body, dst, nil)
		if err != nil {
			return nil, c, errors.Wrap(err, "lz4 compress")
		}
		if n == 0 || n >= len(body) {
			return body, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, c, err
		}
		defer zstdEncoderPool.Put(enc)
		dst := enc.EncodeAll(body, nil)
		if len(dst) >= len(body) {
			return body, CompressionNone, nil
		}
		return dst, CompressionZSTD, nil
	}
	return nil, c, errors.Wrapf(ErrUnknownCompression, "mode %d", c)
}

func decompressBody(stored []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return stored, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(stored, dst)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "lz4: %v", err)
		}
		return dst[:n], nil
	case CompressionZSTD:
		// bounds the output whatever the frame claims; the floor leaves room for
		// the minimum window the encoder writes for small bodies
		limit := max(uint64(size), zstdMinDecodeLimit)
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(limit))
		if err != nil {
			return nil, errors.Wrap(err, "zstd decoder")
		}
		defer dec.Close()
		dst, err := dec.DecodeAll(stored, nil)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "zstd: %v", err)
		}
		return dst, nil
	}
	return nil, errors.Wrapf(ErrUnknownCompression, "mode %d", c)
}

// checkStoredLen rejects a header whose stored body cannot decode to body bytes.
func checkStoredLen(c Compression, stored, body int64) error {
	var limit int64
	switch c {
	case CompressionNone:
		if stored != body {
			return errors.Wrapf(ErrCorruptSnapshot, "stored %d bytes for a %d byte body", stored, body)
		}
		return nil
	case CompressionLZ4:
		limit = stored * lz4MaxRatio
	case CompressionZSTD:
		limit = stored * zstdMaxRatio
	default:
		return errors.Wrapf(ErrUnknownCompression, "mode %d", c)
	}
	if body == 0 || body > limit {
		return errors.Wrapf(ErrCorruptSnapshot, "%d stored bytes cannot expand to %d", stored, body)
	}
	return nil
}

// ReadSnapshot loads an index written by WriteSnapshot. The options configure
// logging, metrics and query limits of the loaded index, as they would for a build.
func ReadSnapshot(r io.Reader, opts ...Option) (*Shared, error) {
	var header [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "read snapshot header")
	}
	if !bytes.Equal(header[0:4], []byte(snapshotMagic)) {
		return nil, errors.Wrap(ErrCorruptSnapshot, "bad magic")
	}
	if header[4] != snapshotVersion {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "unsupported version %d", header[4])
	}
	c := Compression(header[5])
	id, err := uuid.FromBytes(header[8:24])
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "build id: %v", err)
	}
	leafCount := int(binary.LittleEndian.Uint32(header[24:]))
	nodeCount := int(binary.LittleEndian.Uint32(header[28:]))
	payloadLen := int(binary.LittleEndian.Uint32(header[32:]))
	storedLen := int64(binary.LittleEndian.Uint32(header[36:]))

	width := 0
	boundaryCount := 0
	if leafCount > 0 {
		if leafCount >= emptyLeafPtr {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "leaf count %d", leafCount)
		}
		width = NextPowerOfTwo(leafCount)
		boundaryCount = leafCount + 1
	}
	if nodeCount != 2*width {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "node count %d for %d leaves", nodeCount, leafCount)
	}
	bodyLen := 8*nodeCount + 4*boundaryCount + payloadLen
	if err := checkStoredLen(c, storedLen, int64(bodyLen)); err != nil {
		return nil, err
	}

	stored, err := io.ReadAll(io.LimitReader(r, storedLen))
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot body")
	}
	if int64(len(stored)) != storedLen {
		return nil, errors.Wrap(ErrCorruptSnapshot, "truncated body")
	}
	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, errors.Wrap(ErrCorruptSnapshot, "missing checksum")
	}

	body, err := decompressBody(stored, c, bodyLen)
	if err != nil {
		return nil, err
	}
	if len(body) != bodyLen {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "body is %d bytes, want %d", len(body), bodyLen)
	}
	if crc32.Checksum(body, crc32cTable) != binary.LittleEndian.Uint32(trailer[:]) {
		return nil, errors.Wrap(ErrCorruptSnapshot, "checksum mismatch")
	}

	idx := &Index[byte]{
		width:     width,
		leafCount: leafCount,
		id:        id,
		opts:      applyOptions(opts),
	}
	if nodeCount > 0 {
		idx.nodes = make([]Node, nodeCount)
		for i := range idx.nodes {
			idx.nodes[i] = Node(binary.LittleEndian.Uint64(body[8*i:]))
		}
		body = body[8*nodeCount:]
		idx.boundaries = make([]uint32, boundaryCount)
		for i := range idx.boundaries {
			idx.boundaries[i] = binary.LittleEndian.Uint32(body[4*i:])
		}
		body = body[4*boundaryCount:]
	}
	idx.data = bytes.Clone(body)
	if idx.data == nil {
		idx.data = []byte{}
	}

	if err := idx.validate(); err != nil {
		return nil, err
	}
	return Share(idx), nil
}

// validate checks that the decoded structures are exactly what a build would produce.
func (b *Index[T]) validate() error {
	if len(b.nodes) == 0 {
		if len(b.data) != 0 {
			return errors.Wrap(ErrCorruptSnapshot, "payload without leaves")
		}
		return nil
	}
	if b.boundaries[0] != 0 || int(b.boundaries[b.leafCount]) != len(b.data) {
		return errors.Wrap(ErrCorruptSnapshot, "boundary table does not span the payload")
	}
	for i := 1; i <= b.leafCount; i++ {
		if b.boundaries[i] < b.boundaries[i-1] {
			return errors.Wrapf(ErrCorruptSnapshot, "boundary %d decreases", i)
		}
	}
	if b.nodes[0] != EmptyNode {
		return errors.Wrap(ErrCorruptSnapshot, "slot 0 is not empty")
	}
	for i := 0; i < b.width; i++ {
		n := b.nodes[b.width+i]
		if i >= b.leafCount {
			if n != EmptyNode {
				return errors.Wrapf(ErrCorruptSnapshot, "padding slot %d is not empty", b.width+i)
			}
			continue
		}
		if _, ptr, ok := n.Leaf(); !ok || int(ptr) != i {
			return errors.Wrapf(ErrCorruptSnapshot, "slot %d is not leaf %d", b.width+i, i)
		}
	}
	for i := b.width - 1; i >= RootIndex; i-- {
		if b.nodes[i] != joinNodes(b.nodes[LeftChild(i)], b.nodes[RightChild(i)]) {
			return errors.Wrapf(ErrCorruptSnapshot, "slot %d does not enclose its children", i)
		}
	}
	return nil
}
