package envelope

import (
	"encoding/json"
	"fmt"
)

// ToFrame marshals a request value v and stamps it with the "type"
// discriminator typ, producing the wire frame a client sends. The request
// structs in request.go carry no Type field of their own since the server
// only ever reads it via Identify; clients need to write one.
func ToFrame(v any, typ Type) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal %s: %w", typ, err)
	}
	var m map[string]any
	if err = json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("envelope: re-decode %s: %w", typ, err)
	}
	m["type"] = string(typ)
	return json.Marshal(m)
}

// UnmarshalChallengeResponse decodes a Challenge response frame.
func UnmarshalChallengeResponse(raw []byte) (*ChallengeResponse, error) {
	var r ChallengeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("envelope: decoding Challenge: %w", err)
	}
	if r.Type != TypeChallenge {
		return nil, fmt.Errorf("envelope: expected Challenge, got %q", r.Type)
	}
	return &r, nil
}

// ExpectOk decodes raw and returns an error describing why if it is not an
// Ok frame (an Error frame's kind/description, or the mismatched type).
func ExpectOk(raw []byte) error {
	typ, err := Identify(raw)
	if err != nil {
		return err
	}
	if typ == TypeOk {
		return nil
	}
	if typ == TypeError {
		var e ErrorResponse
		if jerr := json.Unmarshal(raw, &e); jerr == nil {
			return fmt.Errorf("envelope: %s: %s", e.Kind, e.Description)
		}
	}
	return fmt.Errorf("envelope: expected Ok, got %q", typ)
}
