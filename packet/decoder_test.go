package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testLocalID = uint32(0x01010101) // 1.1.1.1
	testPeerASN = uint16(65201)
)

type decodeTest struct {
	testNum      int
	input        []byte
	wantFail     bool
	wantCode     uint8
	wantSubCode  uint8
	wantData     []byte
	wantConsumed int
	expected     *BGPMessage
}

func marker() []byte {
	m := make([]byte, MarkerLen)
	for i := range m {
		m[i] = 0xff
	}
	return m
}

func msg(hdr []byte, body ...byte) []byte {
	return append(append(marker(), hdr...), body...)
}

func TestDecode(t *testing.T) {
	tests := []decodeTest{
		{
			// Proper KEEPALIVE
			testNum:      1,
			input:        msg([]byte{0, 19, 4}),
			wantConsumed: 19,
			expected: &BGPMessage{
				Header: &BGPHeader{Length: 19, Type: 4},
			},
		},
		{
			// Invalid marker
			testNum:     2,
			input:       nil, // patched below: valid KEEPALIVE with one marker byte flipped
			wantFail:    true,
			wantCode:    MessageHeaderError,
			wantSubCode: ConnectionNotSync,
		},
		{
			// Too small length
			testNum:     3,
			input:       msg([]byte{0, 5, 4}),
			wantFail:    true,
			wantCode:    MessageHeaderError,
			wantSubCode: BadMessageLength,
			wantData:    []byte{0, 5},
		},
		{
			// Too large length
			testNum:     4,
			input:       msg([]byte{0x13, 0x88, 4}),
			wantFail:    true,
			wantCode:    MessageHeaderError,
			wantSubCode: BadMessageLength,
			wantData:    []byte{0x13, 0x88},
		},
		{
			// Invalid message type
			testNum:     5,
			input:       msg([]byte{0, 19, 5}),
			wantFail:    true,
			wantCode:    MessageHeaderError,
			wantSubCode: BadMessageType,
			wantData:    []byte{5},
		},
		{
			// Proper OPEN
			testNum: 6,
			input: msg([]byte{0, 29, 1},
				4,          // Version
				0xfe, 0xb1, // ASN 65201
				0, 90, // Hold time
				2, 2, 2, 2, // BGP identifier 2.2.2.2
				0, // Opt parm len
			),
			wantConsumed: 29,
			expected: &BGPMessage{
				Header: &BGPHeader{Length: 29, Type: 1},
				Body: &BGPOpen{
					Version:       4,
					AS:            65201,
					HoldTime:      90,
					BGPIdentifier: 0x02020202,
				},
			},
		},
		{
			// OPEN with unsupported version
			testNum: 7,
			input: msg([]byte{0, 29, 1},
				3,
				0xfe, 0xb1,
				0, 90,
				2, 2, 2, 2,
				0,
			),
			wantFail:    true,
			wantCode:    OpenMessageError,
			wantSubCode: UnsupportedVersionNumber,
		},
		{
			// OPEN with wrong peer ASN
			testNum: 8,
			input: msg([]byte{0, 29, 1},
				4,
				0xfe, 0x4d, // ASN 65101
				0, 90,
				2, 2, 2, 2,
				0,
			),
			wantFail:    true,
			wantCode:    OpenMessageError,
			wantSubCode: BadPeerAS,
		},
		{
			// OPEN with our own identifier
			testNum: 9,
			input: msg([]byte{0, 29, 1},
				4,
				0xfe, 0xb1,
				0, 90,
				1, 1, 1, 1,
				0,
			),
			wantFail:    true,
			wantCode:    OpenMessageError,
			wantSubCode: BadBGPIdentifier,
		},
		{
			// OPEN with multicast identifier
			testNum: 10,
			input: msg([]byte{0, 29, 1},
				4,
				0xfe, 0xb1,
				0, 90,
				224, 0, 0, 1,
				0,
			),
			wantFail:    true,
			wantCode:    OpenMessageError,
			wantSubCode: BadBGPIdentifier,
		},
		{
			// OPEN with unacceptable hold time
			testNum: 11,
			input: msg([]byte{0, 29, 1},
				4,
				0xfe, 0xb1,
				0, 2,
				2, 2, 2, 2,
				0,
			),
			wantFail:    true,
			wantCode:    OpenMessageError,
			wantSubCode: UnacceptableHoldTime,
		},
		{
			// OPEN with hold time zero is acceptable
			testNum: 12,
			input: msg([]byte{0, 29, 1},
				4,
				0xfe, 0xb1,
				0, 0,
				2, 2, 2, 2,
				0,
			),
			wantConsumed: 29,
			expected: &BGPMessage{
				Header: &BGPHeader{Length: 29, Type: 1},
				Body: &BGPOpen{
					Version:       4,
					AS:            65201,
					HoldTime:      0,
					BGPIdentifier: 0x02020202,
				},
			},
		},
		{
			// Truncated OPEN declared in header
			testNum:     13,
			input:       msg([]byte{0, 28, 1}, 4, 0xfe, 0xb1, 0, 90, 2, 2, 2),
			wantFail:    true,
			wantCode:    MessageHeaderError,
			wantSubCode: BadMessageLength,
			wantData:    []byte{0, 28},
		},
		{
			// NOTIFICATION too short
			testNum:     14,
			input:       msg([]byte{0, 20, 3}, 4),
			wantFail:    true,
			wantCode:    MessageHeaderError,
			wantSubCode: BadMessageLength,
			wantData:    []byte{0, 20},
		},
		{
			// Proper NOTIFICATION
			testNum:      15,
			input:        msg([]byte{0, 21, 3}, 4, 0),
			wantConsumed: 21,
			expected: &BGPMessage{
				Header: &BGPHeader{Length: 21, Type: 3},
				Body:   &BGPNotification{ErrorCode: 4, ErrorSubcode: 0},
			},
		},
		{
			// NOTIFICATION with data
			testNum:      16,
			input:        msg([]byte{0, 23, 3}, 1, 2, 0, 5),
			wantConsumed: 23,
			expected: &BGPMessage{
				Header: &BGPHeader{Length: 23, Type: 3},
				Body:   &BGPNotification{ErrorCode: 1, ErrorSubcode: 2, Data: []byte{0, 5}},
			},
		},
		{
			// OPEN with optional parameters preserved
			testNum: 17,
			input: msg([]byte{0, 33, 1},
				4,
				0xfe, 0xb1,
				0, 90,
				2, 2, 2, 2,
				4,
				2, 2, 0x41, 0x04,
			),
			wantConsumed: 33,
			expected: &BGPMessage{
				Header: &BGPHeader{Length: 33, Type: 1},
				Body: &BGPOpen{
					Version:       4,
					AS:            65201,
					HoldTime:      90,
					BGPIdentifier: 0x02020202,
					OptParams:     []byte{2, 2, 0x41, 0x04},
				},
			},
		},
	}

	// Patch test 2: flip one marker byte of an otherwise valid KEEPALIVE.
	bad := msg([]byte{0, 19, 4})
	bad[15] = 0xfe
	tests[1].input = bad

	for _, test := range tests {
		m, consumed, err := Decode(test.input, testLocalID, testPeerASN)

		if test.wantFail {
			if !assert.Error(t, err, "test %d expected error", test.testNum) {
				continue
			}
			bgpErr, ok := err.(BGPError)
			if !assert.True(t, ok, "test %d expected BGPError, got %T", test.testNum, err) {
				continue
			}
			assert.Equal(t, test.wantCode, bgpErr.ErrorCode, "test %d error code", test.testNum)
			assert.Equal(t, test.wantSubCode, bgpErr.ErrorSubCode, "test %d error subcode", test.testNum)
			if test.wantData != nil {
				assert.Equal(t, test.wantData, bgpErr.ErrorData, "test %d error data", test.testNum)
			}
			continue
		}

		if !assert.NoError(t, err, "test %d", test.testNum) {
			continue
		}
		assert.Equal(t, test.wantConsumed, consumed, "test %d consumed", test.testNum)
		assert.Equal(t, test.expected, m, "test %d message", test.testNum)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	tests := []struct {
		testNum     int
		input       []byte
		wantMissing int
	}{
		{
			// Empty buffer needs a full header
			testNum:     1,
			input:       nil,
			wantMissing: 19,
		},
		{
			// Partial header
			testNum:     2,
			input:       marker()[:10],
			wantMissing: 9,
		},
		{
			// Full header, partial OPEN body
			testNum:     3,
			input:       msg([]byte{0, 29, 1}, 4, 0xfe, 0xb1),
			wantMissing: 7,
		},
	}

	for _, test := range tests {
		m, consumed, err := Decode(test.input, testLocalID, testPeerASN)
		assert.Nil(t, m, "test %d message", test.testNum)
		assert.Equal(t, 0, consumed, "test %d consumed", test.testNum)
		if !assert.True(t, IsIncomplete(err), "test %d expected IncompleteError, got %v", test.testNum, err) {
			continue
		}
		assert.Equal(t, test.wantMissing, err.(IncompleteError).Missing, "test %d missing", test.testNum)
	}
}

func TestDecodeUpdateMsg(t *testing.T) {
	tests := []struct {
		testNum     int
		input       []byte
		wantFail    bool
		wantSubCode uint8
		expected    *BGPUpdate
	}{
		{
			// Withdrawals, full attribute set, NLRI
			testNum: 1,
			input: []byte{
				0, 5, // Withdrawn routes length
				8, 10, // 10.0.0.0/8
				16, 192, 168, // 192.168.0.0/16
				0, 53, // Total path attribute length

				255,  // Attribute flags
				1,    // ORIGIN
				0, 1, // Length (extended)
				2, // INCOMPLETE

				0,  // Attribute flags
				2,  // AS_PATH
				12, // Length
				2,  // AS_SEQUENCE
				2,  // Segment length
				59, 65,
				12, 248,
				1, // AS_SET
				2, // Segment length
				59, 65,
				12, 248,

				0, // Attribute flags
				3, // NEXT_HOP
				4, // Length
				10, 11, 12, 13,

				0, // Attribute flags
				4, // MED
				4, // Length
				0, 0, 1, 0,

				0, // Attribute flags
				5, // LOCAL_PREF
				4, // Length
				0, 0, 1, 0,

				0, // Attribute flags
				6, // ATOMIC_AGGREGATE
				0, // Length

				0,    // Attribute flags
				7,    // AGGREGATOR
				6,    // Length
				1, 2, // ASN
				10, 11, 12, 13,

				8, 11, // 11.0.0.0/8
			},
			expected: &BGPUpdate{
				WithdrawnRoutes: []NLRI{
					{IP: [4]byte{10, 0, 0, 0}, Pfxlen: 8},
					{IP: [4]byte{192, 168, 0, 0}, Pfxlen: 16},
				},
				PathAttributes: []PathAttribute{
					{
						Optional: true, Transitive: true, Partial: true, ExtendedLength: true,
						TypeCode: OriginAttr, Length: 1, Value: uint8(INCOMPLETE),
					},
					{
						TypeCode: ASPathAttr, Length: 12,
						Value: ASPath{
							{Type: ASSequence, ASNs: []uint16{15169, 3320}},
							{Type: ASSet, ASNs: []uint16{15169, 3320}},
						},
					},
					{TypeCode: NextHopAttr, Length: 4, Value: [4]byte{10, 11, 12, 13}},
					{TypeCode: MEDAttr, Length: 4, Value: uint32(256)},
					{TypeCode: LocalPrefAttr, Length: 4, Value: uint32(256)},
					{TypeCode: AtomicAggrAttr, Length: 0},
					{
						TypeCode: AggregatorAttr, Length: 6,
						Value: Aggregator{ASN: 258, Addr: [4]byte{10, 11, 12, 13}},
					},
				},
				NLRI: []NLRI{
					{IP: [4]byte{11, 0, 0, 0}, Pfxlen: 8},
				},
			},
		},
		{
			// End-of-RIB style empty UPDATE
			testNum:  2,
			input:    []byte{0, 0, 0, 0},
			expected: &BGPUpdate{},
		},
		{
			// Prefix length above 32
			testNum:     3,
			input:       []byte{0, 2, 42, 10, 0, 0},
			wantFail:    true,
			wantSubCode: InvalidNetworkField,
		},
		{
			// Truncated withdrawn routes
			testNum:     4,
			input:       []byte{0, 5, 8},
			wantFail:    true,
			wantSubCode: MalformedAttributeList,
		},
		{
			// Invalid AS path segment type
			testNum: 5,
			input: []byte{
				0, 0,
				0, 6,
				0,  // Attribute flags
				2,  // AS_PATH
				3,  // Length
				3,  // Invalid segment type
				1,  // Segment length
				59, // Truncated ASN on purpose
			},
			wantFail:    true,
			wantSubCode: MalformedASPath,
		},
		{
			// Unrecognized well-known attribute
			testNum: 6,
			input: []byte{
				0, 0,
				0, 3,
				0,  // Attribute flags: well-known
				42, // Unknown type code
				0,  // Length
			},
			wantFail:    true,
			wantSubCode: UnrecognizedWellKnownAttr,
		},
		{
			// Unrecognized optional attribute is kept raw
			testNum: 7,
			input: []byte{
				0, 0,
				0, 5,
				0x80, // Attribute flags: optional
				42,   // Unknown type code
				2,    // Length
				0xbe, 0xef,
			},
			expected: &BGPUpdate{
				PathAttributes: []PathAttribute{
					{Optional: true, TypeCode: 42, Length: 2, Value: []byte{0xbe, 0xef}},
				},
			},
		},
	}

	for _, test := range tests {
		u, err := decodeUpdateMsg(test.input)

		if test.wantFail {
			if !assert.Error(t, err, "test %d expected error", test.testNum) {
				continue
			}
			bgpErr, ok := err.(BGPError)
			if !assert.True(t, ok, "test %d expected BGPError, got %T", test.testNum, err) {
				continue
			}
			assert.Equal(t, uint8(UpdateMessageError), bgpErr.ErrorCode, "test %d error code", test.testNum)
			assert.Equal(t, test.wantSubCode, bgpErr.ErrorSubCode, "test %d error subcode", test.testNum)
			continue
		}

		if !assert.NoError(t, err, "test %d", test.testNum) {
			continue
		}
		assert.Equal(t, test.expected, u, "test %d", test.testNum)
	}
}
