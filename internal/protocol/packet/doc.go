// Package packet owns the album art wire format.
//
// Ownership boundary:
// - header and chunk packet layouts (big-endian, fixed headers)
// - fixed-width filename field
// - wire-level decode for diagnostics and tests
//
// Layout:
//
//	header: type:u8(1) id:u32 crc:u32 totalDataSize:u32 filename:[25]byte data...
//	chunk:  type:u8(2) chunk:u8 id:u32 offset:u32 data...
//
// Reassembly is left to receivers. They key buffers by id and place each
// packet's data at its offset; the header's totalDataSize bounds the asset.
package packet
