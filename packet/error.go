package packet

import "fmt"

// BGPError is a protocol error detected by the codec. Code, subcode
// and data are placed verbatim into the NOTIFICATION message the FSM
// transmits before it tears the session down.
type BGPError struct {
	ErrorCode    uint8
	ErrorSubCode uint8
	ErrorData    []byte
	ErrorStr     string
}

func (e BGPError) Error() string {
	return fmt.Sprintf("%s (%d/%d)", e.ErrorStr, e.ErrorCode, e.ErrorSubCode)
}

// IncompleteError signals that the buffer does not yet hold a full
// message. Missing is the number of bytes still required before
// Decode can make progress.
type IncompleteError struct {
	Missing int
}

func (e IncompleteError) Error() string {
	return fmt.Sprintf("incomplete message: %d more bytes required", e.Missing)
}

// IsIncomplete reports whether err is a need-more-data condition.
func IsIncomplete(err error) bool {
	_, ok := err.(IncompleteError)
	return ok
}
