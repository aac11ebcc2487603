package packet

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/taktv6/tflow2/convert"
)

// Dump logs a decoded message at debug level.
func (b *BGPMessage) Dump() {
	fields := log.Fields{
		"type":   b.Header.Type,
		"length": b.Header.Length,
	}

	switch body := b.Body.(type) {
	case *BGPOpen:
		fields["version"] = body.Version
		fields["asn"] = body.AS
		fields["hold_time"] = body.HoldTime
		fields["bgp_identifier"] = net.IP(convert.Uint32Byte(body.BGPIdentifier)).String()
		log.WithFields(fields).Debug("OPEN message")
	case *BGPNotification:
		fields["error_code"] = body.ErrorCode
		fields["error_subcode"] = body.ErrorSubcode
		log.WithFields(fields).Debug("NOTIFICATION message")
	case *BGPUpdate:
		fields["withdrawn"] = nlriStrings(body.WithdrawnRoutes)
		fields["nlri"] = nlriStrings(body.NLRI)
		log.WithFields(fields).Debug("UPDATE message")
	default:
		log.WithFields(fields).Debug("KEEPALIVE message")
	}
}

func nlriStrings(nlris []NLRI) []string {
	strs := make([]string, 0, len(nlris))
	for _, n := range nlris {
		strs = append(strs, fmt.Sprintf("%s/%d", net.IP(n.IP[:]).String(), n.Pfxlen))
	}
	return strs
}
