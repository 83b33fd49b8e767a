// Package rsync27 implements the wire-visible vocabulary of the rsync
// network protocol, version 27, shared between the handshake, file-list,
// generator and receiver stages of a pull client: the protocol version
// constant, the file-list flag bits, and the per-file SumHead descriptor.
//
// It deliberately does not implement a server/daemon role, protocols
// other than 27, or anything beyond what a one-way module pull needs.
package rsync27

// ProtocolVersion is the rsync wire protocol version this client speaks.
// The client refuses to talk to a server whose greeting advertises an
// older major version (see internal/handshake).
const ProtocolVersion = 27

// DataTag is the multiplex frame tag that carries protocol payload bytes.
// Every other tag value carries an out-of-band log line.
const DataTag = 7

// File-list flag bits (rsync/flist.c, protocol 27 subset).
const (
	FlagTopDir        = 1 << 0
	FlagSameMode      = 1 << 1
	FlagExtendedFlags = 1 << 2 // aka FlagSameRdevPre28
	FlagSameUID       = 1 << 3
	FlagSameGID       = 1 << 4
	FlagSameName      = 1 << 5
	FlagLongName      = 1 << 6
	FlagSameTime      = 1 << 7
)

// MaxPathLength is the largest name (inherited prefix + suffix) a
// file-list entry may carry.
const MaxPathLength = 4096
