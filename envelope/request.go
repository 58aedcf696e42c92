package envelope

import (
	"encoding/json"
	"fmt"
)

// ChallengeRequest asks the relay to (re-)send the connection's current
// challenge. It carries no fields.
type ChallengeRequest struct{}

// SubscribeRequest binds the connection to a mailbox, once the signature
// verifies (spec.md §4.2).
type SubscribeRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// UnsubscribeRequest releases the connection's current mailbox. Only honored
// when Address matches the session's bound address.
type UnsubscribeRequest struct {
	Address string `json:"address"`
}

// PostSlateRequest relays an opaque encrypted payload from From to To.
type PostSlateRequest struct {
	From                        string  `json:"from"`
	To                          string  `json:"to"`
	Str                         string  `json:"str"`
	Signature                   string  `json:"signature"`
	MessageExpirationInSeconds  *uint32 `json:"message_expiration_in_seconds,omitempty"`
}

// RetrieveRelayAddrRequest looks up the full addresses known for a 6-char
// suffix.
type RetrieveRelayAddrRequest struct {
	Abbr string `json:"abbr"`
}

// UnmarshalChallengeRequest validates and decodes a Challenge request frame.
func UnmarshalChallengeRequest(raw []byte) (*ChallengeRequest, error) {
	var r ChallengeRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("envelope: Challenge: %w", err)
	}
	return &r, nil
}

// UnmarshalSubscribeRequest validates and decodes a Subscribe request frame.
func UnmarshalSubscribeRequest(raw []byte) (*SubscribeRequest, error) {
	var r SubscribeRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("envelope: Subscribe: %w", err)
	}
	if r.Address == "" || r.Signature == "" {
		return nil, fmt.Errorf("envelope: Subscribe: missing address or signature")
	}
	return &r, nil
}

// UnmarshalUnsubscribeRequest validates and decodes an Unsubscribe request frame.
func UnmarshalUnsubscribeRequest(raw []byte) (*UnsubscribeRequest, error) {
	var r UnsubscribeRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("envelope: Unsubscribe: %w", err)
	}
	if r.Address == "" {
		return nil, fmt.Errorf("envelope: Unsubscribe: missing address")
	}
	return &r, nil
}

// UnmarshalPostSlateRequest validates and decodes a PostSlate request frame.
func UnmarshalPostSlateRequest(raw []byte) (*PostSlateRequest, error) {
	var r PostSlateRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("envelope: PostSlate: %w", err)
	}
	if r.From == "" || r.To == "" || r.Str == "" || r.Signature == "" {
		return nil, fmt.Errorf("envelope: PostSlate: missing required field")
	}
	return &r, nil
}

// UnmarshalRetrieveRelayAddrRequest validates and decodes a RetrieveRelayAddr
// request frame.
func UnmarshalRetrieveRelayAddrRequest(raw []byte) (*RetrieveRelayAddrRequest, error) {
	var r RetrieveRelayAddrRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("envelope: RetrieveRelayAddr: %w", err)
	}
	if r.Abbr == "" {
		return nil, fmt.Errorf("envelope: RetrieveRelayAddr: missing abbr")
	}
	return &r, nil
}
