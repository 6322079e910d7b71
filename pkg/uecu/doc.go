// Package uecu provides the wire protocol of the stimulation board.
package uecu

// Every message exchanged with the board is a frame:
//
//	[dest][src][type][length][payload...][checksum]
//
// The host is always 0x80 and the board 0x04. length counts payload bytes
// only. The checksum sums every preceding byte, folds the carry into the
// low byte and inverts the result.
//
// The board acknowledges only schedule creation (the payload carries the
// schedule id). Everything else is fire-and-forget.
