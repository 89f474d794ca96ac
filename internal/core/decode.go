package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Field names of the NDJSON record format.
const (
	HeaderField   = "header"
	GroupKeyField = "examplePayloadId"
	BodyField     = "examplePayload"
)

var jsonNull = []byte("null")

// payloadWire mirrors PayloadBody with pointers so absent attributes can be
// told apart from zero values.
type payloadWire struct {
	Amount    *json.Number `json:"betrag"`
	ValueDate *string      `json:"zeitstempelWertstellung"`
	Purpose   *string      `json:"verwendungszweck"`
}

// DecodeLine classifies one line as a header, a payload record, or a line
// error. It never panics and has no side effects.
func DecodeLine(line Line) DecodeResult {
	if line.TooLong {
		return invalid(line, LineTooLong, "line exceeds maximum line size")
	}
	data := []byte(line.Text)

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalid(line, LineMalformed, err.Error())
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return invalid(line, LineSchemaMismatch, "top-level value is not an object")
	}

	if _, ok := fields[HeaderField]; ok {
		return DecodeResult{Kind: RecordHeader}
	}

	rawKey, ok := fields[GroupKeyField]
	if !ok {
		return invalid(line, LineSchemaMismatch, "missing field "+GroupKeyField)
	}
	key, err := groupKeyText(rawKey)
	if err != nil {
		return invalid(line, LineSchemaMismatch, err.Error())
	}

	rawBody, ok := fields[BodyField]
	if !ok {
		return invalid(line, LineSchemaMismatch, "missing field "+BodyField)
	}
	body, err := decodeBody(rawBody)
	if err != nil {
		return invalid(line, LineSchemaMismatch, err.Error())
	}

	return DecodeResult{Kind: RecordPayload, GroupKey: key, Body: body}
}

func invalid(line Line, kind LineErrorKind, detail string) DecodeResult {
	return DecodeResult{
		Kind: RecordInvalid,
		Err:  &LineError{Kind: kind, Line: line.Number, Detail: detail},
	}
}

// groupKeyText coerces a scalar JSON value to its text. Strings are taken
// verbatim; numbers and booleans keep their literal spelling.
func groupKeyText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New(GroupKeyField + " is empty")
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%s: %w", GroupKeyField, err)
		}
		return s, nil
	case 't', 'f':
		return string(raw), nil
	case 'n':
		return "", errors.New(GroupKeyField + " is null")
	case '{', '[':
		return "", errors.New(GroupKeyField + " must be a scalar")
	default:
		return string(raw), nil
	}
}

// decodeBody decodes the examplePayload object. All three attributes are
// required and unknown attributes are rejected.
func decodeBody(raw json.RawMessage) (PayloadBody, error) {
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return PayloadBody{}, errors.New(BodyField + " is null")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var wire payloadWire
	if err := dec.Decode(&wire); err != nil {
		return PayloadBody{}, fmt.Errorf("%s: %w", BodyField, err)
	}

	switch {
	case wire.Amount == nil:
		return PayloadBody{}, errors.New("missing required attribute betrag")
	case wire.ValueDate == nil:
		return PayloadBody{}, errors.New("missing required attribute zeitstempelWertstellung")
	case wire.Purpose == nil:
		return PayloadBody{}, errors.New("missing required attribute verwendungszweck")
	}

	amount, err := wire.Amount.Int64()
	if err != nil {
		return PayloadBody{}, fmt.Errorf("betrag must be an integer: %q", wire.Amount.String())
	}

	return PayloadBody{
		Amount:    amount,
		ValueDate: *wire.ValueDate,
		Purpose:   *wire.Purpose,
	}, nil
}
