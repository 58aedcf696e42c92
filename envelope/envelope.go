// Package envelope implements GrinRelay's wire vocabulary: discriminated-union
// JSON request/response frames tagged by a "type" field, per spec.md §3/§4.1.
//
// Grounded on the teacher's (orly.dev) envelopes package shape: a top-level
// Identify(raw) that peeks the "type" discriminator, one struct per
// request/response variant with its own Unmarshal, and a Write(io.Writer)
// method on every response so handlers can do
// `okenvelope.NewFrom(...).Write(a.Listener)` — here
// `envelope.Ok().Write(conn)`.
package envelope

import (
	"encoding/json"
	"fmt"
	"io"
)

// Type is the envelope's "type" discriminator.
type Type string

const (
	TypeChallenge         Type = "Challenge"
	TypeSubscribe         Type = "Subscribe"
	TypeUnsubscribe       Type = "Unsubscribe"
	TypePostSlate         Type = "PostSlate"
	TypeRetrieveRelayAddr Type = "RetrieveRelayAddr"

	TypeOk       Type = "Ok"
	TypeError    Type = "Error"
	TypeSlate    Type = "Slate"
	TypeRelayAddr Type = "RelayAddr"
)

// ErrorKind enumerates the client-visible error taxonomy of spec.md §7.
type ErrorKind string

const (
	UnknownError         ErrorKind = "UnknownError"
	InvalidRequest       ErrorKind = "InvalidRequest"
	InvalidSignature     ErrorKind = "InvalidSignature"
	InvalidChallenge     ErrorKind = "InvalidChallenge"
	TooManySubscriptions ErrorKind = "TooManySubscriptions"
	InvalidRelayAbbr     ErrorKind = "InvalidRelayAbbr"
	Offline              ErrorKind = "Offline"
)

type typeTag struct {
	Type Type `json:"type"`
}

// Identify peeks a frame's "type" discriminator without fully decoding it.
// Returns InvalidRequest-worthy errors for malformed JSON or a missing tag.
func Identify(raw []byte) (Type, error) {
	var t typeTag
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", fmt.Errorf("envelope: malformed frame: %w", err)
	}
	if t.Type == "" {
		return "", fmt.Errorf("envelope: missing \"type\" discriminator")
	}
	return t.Type, nil
}

// write marshals v to JSON and writes it as a single frame to w.
func write(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("envelope: marshal: %w", err)
	}
	_, err = w.Write(b)
	return err
}
