package bluez

import (
	"encoding/xml"
	"fmt"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
)

// SDP attribute ids and protocol UUIDs used by the record
const (
	attrServiceClassIDList     = "0x0001"
	attrProtocolDescriptorList = "0x0004"
	attrBrowseGroupList        = "0x0005"
	attrProfileDescriptorList  = "0x0009"
	attrServiceName            = "0x0100"
	uuidSerialPort             = "0x1101"
	uuidL2CAP                  = "0x0100"
	uuidRFCOMM                 = "0x0003"
	uuidPublicBrowseGroup      = "0x1002"
	serialPortProfileVersion   = "0x0102"
)

type sdpRecord struct {
	XMLName    xml.Name       `xml:"record"`
	Attributes []sdpAttribute `xml:"attribute"`
}

type sdpAttribute struct {
	ID       string       `xml:"id,attr"`
	Sequence *sdpSequence `xml:"sequence,omitempty"`
	Text     *sdpValue    `xml:"text,omitempty"`
}

type sdpSequence struct {
	UUIDs     []sdpValue    `xml:"uuid"`
	UInt8     *sdpValue     `xml:"uint8,omitempty"`
	UInt16    *sdpValue     `xml:"uint16,omitempty"`
	Sequences []sdpSequence `xml:"sequence"`
}

type sdpValue struct {
	Value string `xml:"value,attr"`
}

func value(v string) *sdpValue { return &sdpValue{Value: v} }

// ServiceRecord renders the SDP record for ad in the XML form BlueZ accepts
// as a profile's ServiceRecord. Peers find the RFCOMM channel through it.
func ServiceRecord(ad model.ServiceAdvertisement) (string, error) {
	if ad.Endpoint.Transport != model.TransportModeRFCOMM {
		return "", fmt.Errorf("cannot advertise %s endpoint over SDP", ad.Endpoint.Transport)
	}
	if ad.Endpoint.Channel == 0 {
		return "", fmt.Errorf("rfcomm channel not resolved")
	}

	record := sdpRecord{
		Attributes: []sdpAttribute{
			{
				ID: attrServiceClassIDList,
				Sequence: &sdpSequence{UUIDs: []sdpValue{
					{Value: ad.ServiceID.String()},
					{Value: uuidSerialPort},
				}},
			},
			{
				ID: attrProtocolDescriptorList,
				Sequence: &sdpSequence{Sequences: []sdpSequence{
					{UUIDs: []sdpValue{{Value: uuidL2CAP}}},
					{
						UUIDs: []sdpValue{{Value: uuidRFCOMM}},
						UInt8: value(fmt.Sprintf("0x%02x", ad.Endpoint.Channel)),
					},
				}},
			},
			{
				ID:       attrBrowseGroupList,
				Sequence: &sdpSequence{UUIDs: []sdpValue{{Value: uuidPublicBrowseGroup}}},
			},
			{
				ID: attrProfileDescriptorList,
				Sequence: &sdpSequence{Sequences: []sdpSequence{
					{
						UUIDs:  []sdpValue{{Value: uuidSerialPort}},
						UInt16: value(serialPortProfileVersion),
					},
				}},
			},
			{
				ID:   attrServiceName,
				Text: value(ad.ServiceName),
			},
		},
	}

	out, err := xml.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render service record: %w", err)
	}
	return xml.Header + string(out), nil
}
