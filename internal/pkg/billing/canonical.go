package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/iancoleman/orderedmap"
)

const signatureKey = "signature"

// Canonicalize parses a webhook body and returns the typed envelope, the
// canonical bytes the signature is computed over, and whether the body
// carried a top-level signature field.
//
// The canonical form is the body without its top-level "signature" member,
// re-serialized compactly. Member order and the literal text of every value
// (numbers included) are kept; HTML characters are not escaped.
func Canonicalize(body []byte) (*Envelope, []byte, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil, false, fmt.Errorf("%w: body is not a JSON object", ErrPayloadParse)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}

	om := orderedmap.New()
	om.SetEscapeHTML(false)

	var (
		bodySignature  string
		signatureFound bool
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, false, fmt.Errorf("%w: %v", ErrPayloadParse, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, false, fmt.Errorf("%w: unexpected token %v", ErrPayloadParse, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, false, fmt.Errorf("%w: %v", ErrPayloadParse, err)
		}
		if key == signatureKey {
			signatureFound = true
			var s string
			if json.Unmarshal(raw, &s) == nil {
				bodySignature = s
			}
			continue
		}
		om.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, false, fmt.Errorf("%w: trailing data after object", ErrPayloadParse)
	}

	encoded, err := om.MarshalJSON()
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	// The encoder terminates every key and value with a newline.
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, encoded); err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	canonical := compacted.Bytes()

	env, err := decodeEnvelope(canonical)
	if err != nil {
		return nil, nil, false, err
	}
	env.Signature = bodySignature
	return env, canonical, signatureFound, nil
}

func decodeEnvelope(canonical []byte) (*Envelope, error) {
	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	if root == nil {
		root = map[string]any{}
	}

	env := &Envelope{
		Root:     root,
		Data:     asObject(root["data"]),
		Customer: asObject(root["customer"]),
		Metadata: asObject(root["metadata"]),
	}
	env.EventType, _, _ = EventTypeRules.First(root)
	return env, nil
}
