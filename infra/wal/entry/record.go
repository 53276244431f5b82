package entry

import "time"

type RecordType uint8

const (
	// RecordRound carries the encoded order book of a completed round.
	RecordRound RecordType = iota + 1
	// RecordAbort marks a round that was abandoned before a book existed.
	RecordAbort
)

func (t RecordType) String() string {
	switch t {
	case RecordRound:
		return "ROUND"
	case RecordAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
