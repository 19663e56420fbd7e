package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// CodecErrorKind classifies a wire decoding failure.
type CodecErrorKind int

const (
	// CodecErrorDecode indicates a malformed or unrecognized msgpack payload.
	CodecErrorDecode CodecErrorKind = iota
	// CodecErrorUnknownKind indicates a well-formed payload whose "kind"
	// field names a message variant this build does not recognize.
	CodecErrorUnknownKind
)

// CodecError is a wire decoding failure. Per spec §4.6, any such failure on
// a connection is a protocol violation and fails the session with a
// CommunicationError.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CodecError) Unwrap() error { return e.Err }

// probeKind extracts the "kind" field from a msgpack map without fully
// decoding the payload, so the right concrete message type can be chosen
// before unmarshaling its payload-specific fields.
func probeKind(payload []byte) (string, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return "", err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return "", err
		}
		if key == "kind" {
			return dec.DecodeString()
		}
		if err := dec.Skip(); err != nil {
			return "", err
		}
	}
	return "", errors.New("missing kind field")
}

// DecodeI2C decodes one invoker-to-conductor message.
func DecodeI2C(payload []byte) (*I2C, error) {
	kind, err := probeKind(payload)
	if err != nil {
		return nil, &CodecError{Kind: CodecErrorDecode, Msg: "failed to decode message kind", Err: err}
	}

	var msg I2C
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return nil, &CodecError{Kind: CodecErrorDecode, Msg: "failed to decode i2c message", Err: err}
	}
	msg.Kind = I2CKind(kind)

	switch msg.Kind {
	case I2CHandshake, I2CUpdateMode, I2CNotifyCompilationStatus, I2CNotifyTestStatus, I2CNotifySubmissionError, I2CRequestFile:
		return &msg, nil
	default:
		return nil, &CodecError{Kind: CodecErrorUnknownKind, Msg: fmt.Sprintf("unknown i2c message kind %q", kind)}
	}
}

// EncodeC2I encodes one conductor-to-invoker message.
func EncodeC2I(msg *C2I) ([]byte, error) {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: failed to encode c2i message: %w", err)
	}
	return payload, nil
}
