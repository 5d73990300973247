package framer

import (
	"math"

	"github.com/danmuck/artcast/internal/protocol/packet"
)

// Asset is one image (or other blob) to be framed for transfer.
type Asset struct {
	ID       uint32
	Filename string
	// CRC is supplied by the caller; the framer never computes it.
	CRC     uint32
	Payload []byte
}

// Limits bounds the serialized size of every packet.
type Limits struct {
	MaxPacketSize int
	// HeaderReserve is subtracted from MaxPacketSize to size each data slice.
	// It covers the packet header plus any transport framing.
	HeaderReserve int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPacketSize: 2 * 1024,
		HeaderReserve: 100,
	}
}

// ChunkDataSize is the maximum data slice carried by one packet.
func (l Limits) ChunkDataSize() int {
	return l.MaxPacketSize - l.HeaderReserve
}

func (l Limits) Validate() error {
	if l.MaxPacketSize < packet.HeaderPacketLen {
		return invalidConfig("max packet size %d cannot hold a %d-byte header packet", l.MaxPacketSize, packet.HeaderPacketLen)
	}
	if l.HeaderReserve < packet.HeaderPacketLen {
		return invalidConfig("header reserve %d is smaller than the %d-byte header packet", l.HeaderReserve, packet.HeaderPacketLen)
	}
	if l.ChunkDataSize() < 1 {
		return invalidConfig("max packet size %d leaves no room for data after reserve %d", l.MaxPacketSize, l.HeaderReserve)
	}
	return nil
}

// Layout describes how an asset will be split.
type Layout struct {
	ChunkDataSize int
	ChunkCount    int
	TotalDataSize uint32
}

// Plan validates asset against limits and computes its layout without
// producing any packets.
func Plan(asset Asset, limits Limits) (Layout, error) {
	if err := limits.Validate(); err != nil {
		return Layout{}, err
	}
	if err := checkTotalSize(uint64(len(asset.Payload))); err != nil {
		return Layout{}, err
	}
	if len(asset.Filename) > packet.FilenameLen {
		return Layout{}, invalidAsset("filename %q is %d bytes, field holds %d", asset.Filename, len(asset.Filename), packet.FilenameLen)
	}
	n, size := len(asset.Payload), limits.ChunkDataSize()
	// n/size rounded up without n+size-1, which overflows for huge limits.
	count := n / size
	if n%size != 0 || count == 0 {
		count++
	}
	if count > packet.MaxPackets {
		return Layout{}, invalidAsset("payload of %d bytes needs %d packets of %d bytes, max %d", len(asset.Payload), count, size, packet.MaxPackets)
	}
	return Layout{
		ChunkDataSize: size,
		ChunkCount:    count,
		TotalDataSize: uint32(len(asset.Payload)),
	}, nil
}

// checkTotalSize reports whether n bytes fit the header's 32-bit
// totalDataSize field.
func checkTotalSize(n uint64) error {
	if n > math.MaxUint32 {
		return invalidAsset("payload of %d bytes overflows the 32-bit size field", n)
	}
	return nil
}

// Frame splits asset into a header packet followed by chunk packets, in the
// order they must be published. Data slices alias asset.Payload.
func Frame(asset Asset, limits Limits) ([]packet.Packet, error) {
	layout, err := Plan(asset, limits)
	if err != nil {
		return nil, err
	}
	name, err := packet.NewFilename(asset.Filename)
	if err != nil {
		return nil, invalidAsset("%v", err)
	}

	out := make([]packet.Packet, 0, layout.ChunkCount)
	out = append(out, &packet.HeaderPacket{
		ID:            asset.ID,
		CRC:           asset.CRC,
		TotalDataSize: layout.TotalDataSize,
		Filename:      name,
		Payload:       slice(asset.Payload, 0, layout.ChunkDataSize),
	})
	for i := 1; i < layout.ChunkCount; i++ {
		offset := i * layout.ChunkDataSize
		out = append(out, &packet.ChunkPacket{
			Chunk:   uint8(i),
			ID:      asset.ID,
			Start:   uint32(offset),
			Payload: slice(asset.Payload, offset, layout.ChunkDataSize),
		})
	}
	return out, nil
}

func slice(b []byte, offset, size int) []byte {
	end := offset + size
	if end > len(b) {
		end = len(b)
	}
	return b[offset:end:end]
}
