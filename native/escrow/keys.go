package escrow

import "encoding/binary"

var (
	configTreasuryKey  = []byte("escrow/config/treasury")
	configFeeKey       = []byte("escrow/config/fee_bps")
	escrowRecordPrefix = []byte("escrow/record/")
)

// escrowKey places each record under the record namespace followed by the
// big-endian identifier.
func escrowKey(id uint64) []byte {
	buf := make([]byte, len(escrowRecordPrefix)+8)
	copy(buf, escrowRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(escrowRecordPrefix):], id)
	return buf
}
