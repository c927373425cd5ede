package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/bluebridge/bluebridge-go/internal/domain/model"
	"github.com/bluebridge/bluebridge-go/internal/domain/port"
)

// wireMessage is the decoded shape shared by every codec. Pointers tell an
// absent field apart from an empty one.
type wireMessage struct {
	Path        *string
	Request     *string
	Options     []byte
	ContentType string
	// OptionsErr is reported only for methods that carry a body
	OptionsErr error
}

// messageCodec parses raw bytes into a wireMessage
type messageCodec interface {
	decode(raw []byte) (*wireMessage, error)
}

// RequestDecoder is an implementation of port.RequestDecoder
type RequestDecoder struct {
	codec messageCodec
}

// NewRequestDecoder creates a decoder for the given wire codec
func NewRequestDecoder(codec model.WireCodec) (*RequestDecoder, error) {
	switch codec {
	case model.WireCodecJSON, "":
		return &RequestDecoder{codec: jsonCodec{}}, nil
	case model.WireCodecCBOR:
		dm, err := cbor.DecOptions{
			DupMapKey:   cbor.DupMapKeyEnforcedAPF,
			MaxMapPairs: 64,
		}.DecMode()
		if err != nil {
			return nil, fmt.Errorf("failed to build cbor decoder: %w", err)
		}
		return &RequestDecoder{codec: cborCodec{mode: dm}}, nil
	default:
		return nil, fmt.Errorf("codec not supported: %s", codec)
	}
}

// Decode parses and validates one message
func (d *RequestDecoder) Decode(raw []byte) (*model.BridgeRequest, error) {
	raw = bytes.TrimRight(raw, "\x00")
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &model.DecodeError{Reason: "empty message"}
	}

	msg, err := d.codec.decode(raw)
	if err != nil {
		return nil, &model.DecodeError{Reason: "malformed message", Err: err}
	}

	if msg.Path == nil || *msg.Path == "" {
		return nil, &model.DecodeError{Reason: "missing field \"path\""}
	}
	if !strings.HasPrefix(*msg.Path, "/") {
		return nil, &model.DecodeError{Reason: fmt.Sprintf("path %q must start with /", *msg.Path)}
	}
	if msg.Request == nil || *msg.Request == "" {
		return nil, &model.DecodeError{Reason: "missing field \"request\""}
	}
	method, ok := model.ParseMethod(*msg.Request)
	if !ok {
		return nil, &model.DecodeError{Reason: fmt.Sprintf("unsupported request method %q", *msg.Request)}
	}

	request := &model.BridgeRequest{
		Path:   *msg.Path,
		Method: method,
	}
	if request.HasBody() {
		if msg.OptionsErr != nil {
			return nil, &model.DecodeError{Reason: "malformed options", Err: msg.OptionsErr}
		}
		request.Options = msg.Options
		request.ContentType = msg.ContentType
	}
	return request, nil
}

type jsonCodec struct{}

func (jsonCodec) decode(raw []byte) (*wireMessage, error) {
	var envelope struct {
		Path    *string         `json:"path"`
		Request *string         `json:"request"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	msg := &wireMessage{Path: envelope.Path, Request: envelope.Request}
	options := bytes.TrimSpace(envelope.Options)
	switch {
	case len(options) == 0 || bytes.Equal(options, []byte("null")):
	case options[0] == '"':
		var s string
		if err := json.Unmarshal(options, &s); err != nil {
			msg.OptionsErr = err
			break
		}
		msg.Options = []byte(s)
	case options[0] == '{' || options[0] == '[':
		msg.Options = append([]byte(nil), options...)
		msg.ContentType = "application/json"
	default:
		msg.OptionsErr = fmt.Errorf("options must be a string, object or array")
	}
	return msg, nil
}

type cborCodec struct {
	mode cbor.DecMode
}

func (c cborCodec) decode(raw []byte) (*wireMessage, error) {
	var envelope struct {
		Path    *string         `cbor:"path"`
		Request *string         `cbor:"request"`
		Options cbor.RawMessage `cbor:"options"`
	}
	if err := c.mode.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	msg := &wireMessage{Path: envelope.Path, Request: envelope.Request}
	if len(envelope.Options) == 0 {
		return msg, nil
	}
	var options interface{}
	if err := c.mode.Unmarshal(envelope.Options, &options); err != nil {
		msg.OptionsErr = err
		return msg, nil
	}
	switch v := options.(type) {
	case nil:
	case string:
		msg.Options = []byte(v)
	case []byte:
		msg.Options = v
	default:
		msg.OptionsErr = fmt.Errorf("options must be a text or byte string, got %T", v)
	}
	return msg, nil
}

// Ensure RequestDecoder implements port.RequestDecoder
var _ port.RequestDecoder = (*RequestDecoder)(nil)
