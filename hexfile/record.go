package hexfile

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moffa90/go-lightning/protocol"
)

// Record types.
const (
	// RecordData carries bytes to program at Address
	RecordData = 0x00

	// RecordEOF terminates the image
	RecordEOF = 0x01
)

const (
	// StartCode begins every record line
	StartCode = ':'

	// MinLineLength is the shortest line, start code included, that can hold
	// a record: byte count, address, type and checksum
	MinLineLength = 11

	// recordOverhead is byte count + address + type + checksum, in bytes
	recordOverhead = 5
)

// Reasons reported by FormatError.
const (
	ReasonIncorrectHex = "Incorrect HEX file"
	ReasonChecksum     = "Wrong line checksum"
	ReasonByteCount    = "Wrong data bytes count"
)

// Record is one decoded line of a firmware image.
type Record struct {
	// ByteCount is the declared number of data bytes
	ByteCount byte

	// Address is the 16-bit load address (big-endian in the file)
	Address uint16

	// Type is RecordData, RecordEOF or a type the caller may ignore
	Type byte

	// Data holds the payload bytes
	Data []byte

	// Checksum is the trailing checksum byte as found in the file
	Checksum byte
}

// ParseRecord decodes a record line. The line must already be trimmed and
// start with StartCode.
func ParseRecord(line string) (*Record, error) {
	if len(line) < MinLineLength || line[0] != StartCode {
		return nil, fmt.Errorf("not a record: %q", line)
	}

	data, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, &FormatError{Reason: ReasonIncorrectHex, Err: err}
	}

	if protocol.RecordSum(data) != 0 {
		return nil, &FormatError{Reason: ReasonChecksum}
	}

	rec := &Record{
		ByteCount: data[0],
		Address:   uint16(data[1])<<8 | uint16(data[2]),
		Type:      data[3],
		Data:      data[4 : len(data)-1],
		Checksum:  data[len(data)-1],
	}
	if int(rec.ByteCount) != len(rec.Data) {
		return nil, &FormatError{Reason: ReasonByteCount}
	}

	return rec, nil
}

// String encodes the record as a line, computing the checksum from the other
// fields. ByteCount is taken from len(Data).
func (r *Record) String() string {
	raw := make([]byte, 0, len(r.Data)+recordOverhead)
	raw = append(raw, byte(len(r.Data)), byte(r.Address>>8), byte(r.Address), r.Type)
	raw = append(raw, r.Data...)
	raw = append(raw, -protocol.RecordSum(raw))
	return string(StartCode) + strings.ToUpper(hex.EncodeToString(raw))
}

// isRecordLine reports whether a trimmed line should be decoded.
func isRecordLine(line string) bool {
	return len(line) >= MinLineLength && line[0] == StartCode
}
