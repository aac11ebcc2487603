package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/taktv6/tflow2/convert"
)

// Decode parses one BGP message from the start of data. localID and
// peerASN are the locally configured values used to validate a
// received OPEN. It returns the parsed message and the number of
// bytes consumed, an IncompleteError if data does not yet hold a full
// message, or a BGPError carrying the NOTIFICATION triple to send.
func Decode(data []byte, localID uint32, peerASN uint16) (*BGPMessage, int, error) {
	if len(data) < HeaderLen {
		return nil, 0, IncompleteError{Missing: HeaderLen - len(data)}
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, 0, err
	}

	if int(hdr.Length) > len(data) {
		return nil, 0, IncompleteError{Missing: int(hdr.Length) - len(data)}
	}

	body, err := decodeMsgBody(data[HeaderLen:hdr.Length], hdr, localID, peerASN)
	if err != nil {
		return nil, 0, err
	}

	return &BGPMessage{Header: hdr, Body: body}, int(hdr.Length), nil
}

func decodeHeader(data []byte) (*BGPHeader, error) {
	for i := 0; i < MarkerLen; i++ {
		if data[i] != 0xff {
			return nil, BGPError{
				ErrorCode:    MessageHeaderError,
				ErrorSubCode: ConnectionNotSync,
				ErrorStr:     "marker is not all ones",
			}
		}
	}

	hdr := &BGPHeader{
		Length: binary.BigEndian.Uint16(data[16:18]),
		Type:   data[18],
	}

	if hdr.Length < MinLen || hdr.Length > MaxLen {
		return nil, BGPError{
			ErrorCode:    MessageHeaderError,
			ErrorSubCode: BadMessageLength,
			ErrorData:    convert.Uint16Byte(hdr.Length),
			ErrorStr:     fmt.Sprintf("invalid length in header: %d", hdr.Length),
		}
	}

	if hdr.Type < OpenMsg || hdr.Type > KeepaliveMsg {
		return nil, BGPError{
			ErrorCode:    MessageHeaderError,
			ErrorSubCode: BadMessageType,
			ErrorData:    []byte{hdr.Type},
			ErrorStr:     fmt.Sprintf("invalid message type: %d", hdr.Type),
		}
	}

	switch hdr.Type {
	case OpenMsg:
		if hdr.Length < MinOpenLen {
			return nil, badLength(hdr.Length, "OPEN message too short")
		}
	case NotificationMsg:
		if hdr.Length < MinNotificationLen {
			return nil, badLength(hdr.Length, "NOTIFICATION message too short")
		}
	}

	return hdr, nil
}

func badLength(l uint16, reason string) BGPError {
	return BGPError{
		ErrorCode:    MessageHeaderError,
		ErrorSubCode: BadMessageLength,
		ErrorData:    convert.Uint16Byte(l),
		ErrorStr:     fmt.Sprintf("%s: %d", reason, l),
	}
}

func decodeMsgBody(body []byte, hdr *BGPHeader, localID uint32, peerASN uint16) (interface{}, error) {
	switch hdr.Type {
	case OpenMsg:
		return decodeOpenMsg(body, localID, peerASN)
	case UpdateMsg:
		return decodeUpdateMsg(body)
	case NotificationMsg:
		return decodeNotificationMsg(body)
	case KeepaliveMsg:
		return nil, nil // Nothing to decode in a KEEPALIVE
	}
	return nil, fmt.Errorf("unknown message type: %d", hdr.Type)
}

func decodeOpenMsg(body []byte, localID uint32, peerASN uint16) (*BGPOpen, error) {
	msg := &BGPOpen{
		Version:       body[0],
		AS:            binary.BigEndian.Uint16(body[1:3]),
		HoldTime:      binary.BigEndian.Uint16(body[3:5]),
		BGPIdentifier: binary.BigEndian.Uint32(body[5:9]),
	}

	if err := validateOpen(msg, localID, peerASN); err != nil {
		return nil, err
	}

	optLen := int(body[9])
	if optLen != len(body[10:]) {
		return nil, BGPError{
			ErrorCode:    OpenMessageError,
			ErrorSubCode: UnsupportedOptionalParameter,
			ErrorStr:     fmt.Sprintf("optional parameters length %d does not match body", optLen),
		}
	}
	if optLen > 0 {
		msg.OptParams = append([]byte(nil), body[10:10+optLen]...)
	}

	return msg, nil
}

func validateOpen(msg *BGPOpen, localID uint32, peerASN uint16) error {
	if msg.Version != BGPVersion {
		return BGPError{
			ErrorCode:    OpenMessageError,
			ErrorSubCode: UnsupportedVersionNumber,
			ErrorStr:     fmt.Sprintf("unsupported version number: %d", msg.Version),
		}
	}

	if msg.AS != peerASN {
		return BGPError{
			ErrorCode:    OpenMessageError,
			ErrorSubCode: BadPeerAS,
			ErrorStr:     fmt.Sprintf("peer AS %d does not match configured AS %d", msg.AS, peerASN),
		}
	}

	if msg.BGPIdentifier == localID || !isValidIdentifier(msg.BGPIdentifier) {
		return BGPError{
			ErrorCode:    OpenMessageError,
			ErrorSubCode: BadBGPIdentifier,
			ErrorStr:     fmt.Sprintf("invalid BGP identifier: %s", net.IP(convert.Uint32Byte(msg.BGPIdentifier))),
		}
	}

	if msg.HoldTime == 1 || msg.HoldTime == 2 {
		return BGPError{
			ErrorCode:    OpenMessageError,
			ErrorSubCode: UnacceptableHoldTime,
			ErrorStr:     fmt.Sprintf("unacceptable hold time: %d", msg.HoldTime),
		}
	}

	return nil
}

// isValidIdentifier checks that id is syntactically a valid unicast
// IPv4 address.
func isValidIdentifier(id uint32) bool {
	addr := net.IP(convert.Uint32Byte(id))

	if addr.IsLoopback() || addr.IsMulticast() {
		return false
	}

	if addr[0] == 0 {
		return false
	}

	if addr.Equal(net.IPv4bcast) {
		return false
	}

	return true
}

func decodeNotificationMsg(body []byte) (*BGPNotification, error) {
	msg := &BGPNotification{
		ErrorCode:    body[0],
		ErrorSubcode: body[1],
	}
	if len(body) > 2 {
		msg.Data = append([]byte(nil), body[2:]...)
	}
	return msg, nil
}

func decodeUpdateMsg(body []byte) (*BGPUpdate, error) {
	buf := bytes.NewBuffer(body)
	msg := &BGPUpdate{}

	var withdrawnLen uint16
	if err := decode(buf, []interface{}{&withdrawnLen}); err != nil {
		return nil, malformedAttrList("truncated withdrawn routes length")
	}

	var err error
	msg.WithdrawnRoutes, err = decodeNLRIs(buf, withdrawnLen)
	if err != nil {
		return nil, err
	}

	var totalPathAttrLen uint16
	if err := decode(buf, []interface{}{&totalPathAttrLen}); err != nil {
		return nil, malformedAttrList("truncated path attributes length")
	}

	msg.PathAttributes, err = decodePathAttrs(buf, totalPathAttrLen)
	if err != nil {
		return nil, err
	}

	nlriLen := len(body) - 4 - int(withdrawnLen) - int(totalPathAttrLen)
	if nlriLen < 0 {
		return nil, malformedAttrList("lengths exceed message size")
	}
	if nlriLen > 0 {
		msg.NLRI, err = decodeNLRIs(buf, uint16(nlriLen))
		if err != nil {
			return nil, err
		}
	}

	return msg, nil
}

func malformedAttrList(reason string) BGPError {
	return BGPError{
		ErrorCode:    UpdateMessageError,
		ErrorSubCode: MalformedAttributeList,
		ErrorStr:     reason,
	}
}

func decodeNLRIs(buf *bytes.Buffer, length uint16) ([]NLRI, error) {
	var nlris []NLRI

	p := uint16(0)
	for p < length {
		nlri, consumed, err := decodeNLRI(buf)
		if err != nil {
			return nil, err
		}
		p += uint16(consumed)
		nlris = append(nlris, nlri)
	}

	return nlris, nil
}

func decodeNLRI(buf *bytes.Buffer) (NLRI, uint8, error) {
	nlri := NLRI{}

	if err := decode(buf, []interface{}{&nlri.Pfxlen}); err != nil {
		return nlri, 0, malformedAttrList("truncated NLRI")
	}

	if nlri.Pfxlen > 32 {
		return nlri, 0, BGPError{
			ErrorCode:    UpdateMessageError,
			ErrorSubCode: InvalidNetworkField,
			ErrorStr:     fmt.Sprintf("invalid prefix length: %d", nlri.Pfxlen),
		}
	}

	toCopy := (nlri.Pfxlen + OctetLen - 1) / OctetLen
	for i := uint8(0); i < toCopy; i++ {
		if err := decode(buf, []interface{}{&nlri.IP[i]}); err != nil {
			return nlri, 0, malformedAttrList("truncated NLRI")
		}
	}

	return nlri, toCopy + 1, nil
}

func decodePathAttrs(buf *bytes.Buffer, tpal uint16) ([]PathAttribute, error) {
	var attrs []PathAttribute

	p := uint16(0)
	for p < tpal {
		pa := PathAttribute{}

		if err := decodePathAttrFlags(buf, &pa); err != nil {
			return nil, err
		}
		p++

		if err := decode(buf, []interface{}{&pa.TypeCode}); err != nil {
			return nil, malformedAttrList("truncated attribute type")
		}
		p++

		n, err := pa.setLength(buf)
		if err != nil {
			return nil, err
		}
		p += uint16(n)

		if err := pa.decodeValue(buf); err != nil {
			return nil, err
		}
		p += pa.Length

		attrs = append(attrs, pa)
	}

	return attrs, nil
}

func (pa *PathAttribute) decodeValue(buf *bytes.Buffer) error {
	switch pa.TypeCode {
	case OriginAttr:
		return pa.decodeOrigin(buf)
	case ASPathAttr:
		return pa.decodeASPath(buf)
	case NextHopAttr:
		return pa.decodeNextHop(buf)
	case MEDAttr, LocalPrefAttr:
		return pa.decodeUint32(buf)
	case AtomicAggrAttr:
		return nil // Zero octets of attribute value
	case AggregatorAttr:
		return pa.decodeAggregator(buf)
	}

	if !pa.Optional {
		return BGPError{
			ErrorCode:    UpdateMessageError,
			ErrorSubCode: UnrecognizedWellKnownAttr,
			ErrorData:    []byte{pa.TypeCode},
			ErrorStr:     fmt.Sprintf("unrecognized well-known attribute: %d", pa.TypeCode),
		}
	}

	// Unrecognized optional attributes are carried as raw bytes.
	raw := make([]byte, pa.Length)
	if err := decode(buf, []interface{}{&raw}); err != nil {
		return malformedAttrList("truncated optional attribute")
	}
	pa.Value = raw
	return nil
}

func (pa *PathAttribute) decodeOrigin(buf *bytes.Buffer) error {
	if pa.Length != 1 {
		return attrLengthError(OriginAttr, pa.Length)
	}

	var origin uint8
	if err := decode(buf, []interface{}{&origin}); err != nil {
		return malformedAttrList("truncated ORIGIN")
	}

	if origin > INCOMPLETE {
		return BGPError{
			ErrorCode:    UpdateMessageError,
			ErrorSubCode: InvalidOriginAttr,
			ErrorData:    []byte{origin},
			ErrorStr:     fmt.Sprintf("invalid ORIGIN value: %d", origin),
		}
	}

	pa.Value = origin
	return nil
}

func (pa *PathAttribute) decodeASPath(buf *bytes.Buffer) error {
	asPath := make(ASPath, 0)

	p := uint16(0)
	for p < pa.Length {
		segment := ASPathSegment{}

		var count uint8
		if err := decode(buf, []interface{}{&segment.Type, &count}); err != nil {
			return malformedASPath("truncated AS path segment")
		}
		p += 2

		if segment.Type != ASSet && segment.Type != ASSequence {
			return malformedASPath(fmt.Sprintf("invalid segment type: %d", segment.Type))
		}
		if count == 0 {
			return malformedASPath("empty AS path segment")
		}

		for i := uint8(0); i < count; i++ {
			var asn uint16
			if err := decode(buf, []interface{}{&asn}); err != nil {
				return malformedASPath("truncated AS path segment")
			}
			p += 2
			segment.ASNs = append(segment.ASNs, asn)
		}

		asPath = append(asPath, segment)
	}

	pa.Value = asPath
	return nil
}

func malformedASPath(reason string) BGPError {
	return BGPError{
		ErrorCode:    UpdateMessageError,
		ErrorSubCode: MalformedASPath,
		ErrorStr:     reason,
	}
}

func (pa *PathAttribute) decodeNextHop(buf *bytes.Buffer) error {
	if pa.Length != 4 {
		return attrLengthError(NextHopAttr, pa.Length)
	}

	var addr [4]byte
	if n, err := buf.Read(addr[:]); err != nil || n != 4 {
		return malformedAttrList("truncated NEXT_HOP")
	}

	pa.Value = addr
	return nil
}

func (pa *PathAttribute) decodeUint32(buf *bytes.Buffer) error {
	if pa.Length != 4 {
		return attrLengthError(pa.TypeCode, pa.Length)
	}

	var v uint32
	if err := decode(buf, []interface{}{&v}); err != nil {
		return malformedAttrList("truncated attribute")
	}

	pa.Value = v
	return nil
}

func (pa *PathAttribute) decodeAggregator(buf *bytes.Buffer) error {
	if pa.Length != 6 {
		return attrLengthError(AggregatorAttr, pa.Length)
	}

	aggr := Aggregator{}
	if err := decode(buf, []interface{}{&aggr.ASN}); err != nil {
		return malformedAttrList("truncated AGGREGATOR")
	}
	if n, err := buf.Read(aggr.Addr[:]); err != nil || n != 4 {
		return malformedAttrList("truncated AGGREGATOR")
	}

	pa.Value = aggr
	return nil
}

func attrLengthError(typeCode uint8, length uint16) BGPError {
	return BGPError{
		ErrorCode:    UpdateMessageError,
		ErrorSubCode: AttrLengthError,
		ErrorData:    []byte{typeCode},
		ErrorStr:     fmt.Sprintf("invalid length %d for attribute %d", length, typeCode),
	}
}

func (pa *PathAttribute) setLength(buf *bytes.Buffer) (int, error) {
	if pa.ExtendedLength {
		if err := decode(buf, []interface{}{&pa.Length}); err != nil {
			return 0, malformedAttrList("truncated attribute length")
		}
		return 2, nil
	}

	var l uint8
	if err := decode(buf, []interface{}{&l}); err != nil {
		return 0, malformedAttrList("truncated attribute length")
	}
	pa.Length = uint16(l)
	return 1, nil
}

func decodePathAttrFlags(buf *bytes.Buffer, pa *PathAttribute) error {
	var flags uint8
	if err := decode(buf, []interface{}{&flags}); err != nil {
		return malformedAttrList("truncated attribute flags")
	}

	pa.Optional = flags&128 == 128
	pa.Transitive = flags&64 == 64
	pa.Partial = flags&32 == 32
	pa.ExtendedLength = flags&16 == 16

	return nil
}

func decode(buf *bytes.Buffer, fields []interface{}) error {
	for _, field := range fields {
		if err := binary.Read(buf, binary.BigEndian, field); err != nil {
			return fmt.Errorf("unable to read from buffer: %v", err)
		}
	}
	return nil
}
