package envelope

import "io"

// OkResponse acknowledges a request that needs no further data (Subscribe,
// Unsubscribe, PostSlate).
type OkResponse struct {
	Type Type `json:"type"`
}

// Ok builds the canonical acknowledgement frame.
func Ok() *OkResponse {
	return &OkResponse{Type: TypeOk}
}

// Write marshals and writes the frame to w.
func (r *OkResponse) Write(w io.Writer) error {
	return write(w, r)
}

// ErrorResponse reports a request the relay refused to honor, tagged with
// one of the ErrorKind values from spec.md §7.
type ErrorResponse struct {
	Type        Type      `json:"type"`
	Kind        ErrorKind `json:"kind"`
	Description string    `json:"description"`
}

// Error builds an Error frame for the given kind and human-readable detail.
func Error(kind ErrorKind, description string) *ErrorResponse {
	return &ErrorResponse{Type: TypeError, Kind: kind, Description: description}
}

func (r *ErrorResponse) Write(w io.Writer) error {
	return write(w, r)
}

// ChallengeResponse carries the connection's current challenge token.
type ChallengeResponse struct {
	Type Type   `json:"type"`
	Str  string `json:"str"`
}

// Challenge builds a Challenge response frame for str.
func Challenge(str string) *ChallengeResponse {
	return &ChallengeResponse{Type: TypeChallenge, Str: str}
}

func (r *ChallengeResponse) Write(w io.Writer) error {
	return write(w, r)
}

// SlateResponse is the frame delivered to a subscribed connection when the
// broker forwards a mailbox message.
type SlateResponse struct {
	Type      Type   `json:"type"`
	From      string `json:"from"`
	Str       string `json:"str"`
	Signature string `json:"signature"`
	Challenge string `json:"challenge"`
}

// Slate builds a Slate response frame.
func Slate(from, str, signature, challenge string) *SlateResponse {
	return &SlateResponse{
		Type:      TypeSlate,
		From:      from,
		Str:       str,
		Signature: signature,
		Challenge: challenge,
	}
}

func (r *SlateResponse) Write(w io.Writer) error {
	return write(w, r)
}

// RelayAddrResponse answers RetrieveRelayAddr with every full address
// currently known for the requested suffix. Plural per spec.md §3, which
// takes priority over the original single-String Rust shape (multiple
// wallets can share a suffix collision).
type RelayAddrResponse struct {
	Type      Type     `json:"type"`
	Abbr      string   `json:"abbr"`
	RelayAddr []string `json:"relay_addr"`
}

// RelayAddr builds a RelayAddr response frame.
func RelayAddr(abbr string, addrs []string) *RelayAddrResponse {
	return &RelayAddrResponse{Type: TypeRelayAddr, Abbr: abbr, RelayAddr: addrs}
}

func (r *RelayAddrResponse) Write(w io.Writer) error {
	return write(w, r)
}
