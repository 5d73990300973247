package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketType is the leading discriminator byte of every packet.
type PacketType uint8

const (
	TypeHeader PacketType = 1
	TypeChunk  PacketType = 2
)

const (
	// HeaderPacketLen is type(1) + id(4) + crc(4) + total(4) + filename(25).
	HeaderPacketLen = 1 + 4 + 4 + 4 + FilenameLen
	// ChunkPacketLen is type(1) + chunk(1) + id(4) + offset(4).
	ChunkPacketLen = 1 + 1 + 4 + 4
	FilenameLen    = 25
	// MaxPackets is bounded by the uint8 chunk index.
	MaxPackets = 256
)

var (
	ErrEmpty           = errors.New("packet: empty packet")
	ErrShortHeader     = errors.New("packet: short packet header")
	ErrUnknownType     = errors.New("packet: unknown packet type")
	ErrFilenameTooLong = errors.New("packet: filename exceeds field width")
)

func (t PacketType) String() string {
	switch t {
	case TypeHeader:
		return "header"
	case TypeChunk:
		return "chunk"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Packet is one wire unit of an asset transfer.
type Packet interface {
	Type() PacketType
	// Index is the packet's position in the asset sequence; the header is 0.
	Index() uint8
	AssetID() uint32
	// Offset is the byte offset of Data within the asset payload.
	Offset() uint32
	Data() []byte
	// Len is the serialized size in bytes.
	Len() int
	AppendBinary(b []byte) ([]byte, error)
	MarshalBinary() ([]byte, error)
}

// Filename is the fixed-width, zero-padded filename field.
type Filename [FilenameLen]byte

// NewFilename encodes name into the fixed field. Names that do not fit are
// rejected rather than truncated.
func NewFilename(name string) (Filename, error) {
	var f Filename
	if len(name) > FilenameLen {
		return f, fmt.Errorf("%w: %q is %d bytes, max %d", ErrFilenameTooLong, name, len(name), FilenameLen)
	}
	copy(f[:], name)
	return f, nil
}

// String returns the name without trailing NUL padding.
func (f Filename) String() string {
	n := len(f)
	for n > 0 && f[n-1] == 0 {
		n--
	}
	return string(f[:n])
}

// HeaderPacket opens an asset transfer and carries the first payload slice.
type HeaderPacket struct {
	ID            uint32
	CRC           uint32
	TotalDataSize uint32
	Filename      Filename
	Payload       []byte
}

func (p *HeaderPacket) Type() PacketType { return TypeHeader }
func (p *HeaderPacket) Index() uint8     { return 0 }
func (p *HeaderPacket) AssetID() uint32  { return p.ID }
func (p *HeaderPacket) Offset() uint32   { return 0 }
func (p *HeaderPacket) Data() []byte     { return p.Payload }
func (p *HeaderPacket) Len() int         { return HeaderPacketLen + len(p.Payload) }

func (p *HeaderPacket) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, byte(TypeHeader))
	b = binary.BigEndian.AppendUint32(b, p.ID)
	b = binary.BigEndian.AppendUint32(b, p.CRC)
	b = binary.BigEndian.AppendUint32(b, p.TotalDataSize)
	b = append(b, p.Filename[:]...)
	return append(b, p.Payload...), nil
}

func (p *HeaderPacket) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, p.Len()))
}

// ChunkPacket carries one payload slice after the header.
type ChunkPacket struct {
	Chunk   uint8
	ID      uint32
	Start   uint32
	Payload []byte
}

func (p *ChunkPacket) Type() PacketType { return TypeChunk }
func (p *ChunkPacket) Index() uint8     { return p.Chunk }
func (p *ChunkPacket) AssetID() uint32  { return p.ID }
func (p *ChunkPacket) Offset() uint32   { return p.Start }
func (p *ChunkPacket) Data() []byte     { return p.Payload }
func (p *ChunkPacket) Len() int         { return ChunkPacketLen + len(p.Payload) }

func (p *ChunkPacket) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, byte(TypeChunk), p.Chunk)
	b = binary.BigEndian.AppendUint32(b, p.ID)
	b = binary.BigEndian.AppendUint32(b, p.Start)
	return append(b, p.Payload...), nil
}

func (p *ChunkPacket) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, p.Len()))
}

// Decode parses one serialized packet. The returned packet's data aliases b.
func Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	switch PacketType(b[0]) {
	case TypeHeader:
		if len(b) < HeaderPacketLen {
			return nil, fmt.Errorf("%w: header packet has %d bytes", ErrShortHeader, len(b))
		}
		p := &HeaderPacket{
			ID:            binary.BigEndian.Uint32(b[1:5]),
			CRC:           binary.BigEndian.Uint32(b[5:9]),
			TotalDataSize: binary.BigEndian.Uint32(b[9:13]),
			Payload:       b[HeaderPacketLen:],
		}
		copy(p.Filename[:], b[13:HeaderPacketLen])
		return p, nil
	case TypeChunk:
		if len(b) < ChunkPacketLen {
			return nil, fmt.Errorf("%w: chunk packet has %d bytes", ErrShortHeader, len(b))
		}
		return &ChunkPacket{
			Chunk:   b[1],
			ID:      binary.BigEndian.Uint32(b[2:6]),
			Start:   binary.BigEndian.Uint32(b[6:10]),
			Payload: b[ChunkPacketLen:],
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, b[0])
	}
}
