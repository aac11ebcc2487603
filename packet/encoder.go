package packet

import (
	"bytes"

	"github.com/taktv6/tflow2/convert"
)

// EncodeKeepaliveMsg serializes a KEEPALIVE message. A KEEPALIVE is a
// bare header.
func EncodeKeepaliveMsg() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLen))
	encodeHeader(buf, HeaderLen, KeepaliveMsg)
	return buf.Bytes()
}

// EncodeNotificationMsg serializes a NOTIFICATION message.
func EncodeNotificationMsg(msg *BGPNotification) []byte {
	length := uint16(MinNotificationLen + len(msg.Data))
	buf := bytes.NewBuffer(make([]byte, 0, length))
	encodeHeader(buf, length, NotificationMsg)

	buf.WriteByte(msg.ErrorCode)
	buf.WriteByte(msg.ErrorSubcode)
	buf.Write(msg.Data)

	return buf.Bytes()
}

// EncodeOpenMsg serializes an OPEN message.
func EncodeOpenMsg(msg *BGPOpen) []byte {
	length := uint16(MinOpenLen + len(msg.OptParams))
	buf := bytes.NewBuffer(make([]byte, 0, length))
	encodeHeader(buf, length, OpenMsg)

	buf.WriteByte(msg.Version)
	buf.Write(convert.Uint16Byte(msg.AS))
	buf.Write(convert.Uint16Byte(msg.HoldTime))
	buf.Write(convert.Uint32Byte(msg.BGPIdentifier))
	buf.WriteByte(uint8(len(msg.OptParams)))
	buf.Write(msg.OptParams)

	return buf.Bytes()
}

func encodeHeader(buf *bytes.Buffer, length uint16, typ uint8) {
	for i := 0; i < MarkerLen; i++ {
		buf.WriteByte(0xff)
	}
	buf.Write(convert.Uint16Byte(length))
	buf.WriteByte(typ)
}
