package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grinrelay.dev/envelope"
	"grinrelay.dev/sig"
)

func newTestSession(t *testing.T) (*Session, *fakeTransport, *fakeBroker, *fakeDirectory) {
	t.Helper()
	tr := newFakeTransport()
	b := newFakeBroker()
	d := newFakeDirectory()
	s, err := New("test-conn", tr, b, d)
	require.NoError(t, err)
	return s, tr, b, d
}

func runSession(s *Session) {
	go s.Run()
}

func waitForFrames(t *testing.T, tr *fakeTransport, n int) []map[string]any {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		frames := decodeFrames(tr.Sent())
		if len(frames) >= n {
			return frames
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, got %d", n, len(decodeFrames(tr.Sent())))
	return nil
}

func currentChallenge(t *testing.T, tr *fakeTransport) string {
	t.Helper()
	frames := waitForFrames(t, tr, 1)
	require.Equal(t, "Challenge", frames[0]["type"])
	return frames[0]["str"].(string)
}

// TestScenarioSubscribeThenPostSlate covers scenario A/B: a wallet
// subscribes, signature verifies, and a subsequent PostSlate to an online
// recipient succeeds.
func TestScenarioSubscribeThenPostSlate(t *testing.T) {
	s, tr, b, d := newTestSession(t)
	runSession(s)

	c := currentChallenge(t, tr)

	fromAddr, fromKey := newTestAddress()
	toAddr, _ := newTestAddress()
	d.markOnline(toAddr.Key())

	subSig := sig.Sign(fromKey, []byte(c))
	tr.push(mustJSON(envelope.SubscribeRequest{Address: fromAddr.String(), Signature: hexSig(subSig)}, "Subscribe"))

	frames := waitForFrames(t, tr, 2)
	require.Equal(t, "Ok", frames[1]["type"])
	require.Contains(t, b.subscriptions, fromAddr.Key())

	slateSig := sig.Sign(fromKey, []byte("payload"+c))
	tr.push(mustJSON(envelope.PostSlateRequest{
		From: fromAddr.String(), To: toAddr.String(), Str: "payload", Signature: hexSig(slateSig),
	}, "PostSlate"))

	frames = waitForFrames(t, tr, 3)
	require.Equal(t, "Ok", frames[2]["type"])
	require.Len(t, b.posted, 1)
	require.Equal(t, toAddr.Key(), b.posted[0].Subject)
	require.Equal(t, fromAddr.Key(), b.posted[0].ReplyTo)
}

// TestScenarioPostSlateOffline covers scenario C.
func TestScenarioPostSlateOffline(t *testing.T) {
	s, tr, _, _ := newTestSession(t)
	runSession(s)

	c := currentChallenge(t, tr)
	fromAddr, fromKey := newTestAddress()
	toAddr, _ := newTestAddress() // never marked online

	subSig := sig.Sign(fromKey, []byte(c))
	tr.push(mustJSON(envelope.SubscribeRequest{Address: fromAddr.String(), Signature: hexSig(subSig)}, "Subscribe"))
	waitForFrames(t, tr, 2)

	slateSig := sig.Sign(fromKey, []byte("payload"+c))
	tr.push(mustJSON(envelope.PostSlateRequest{
		From: fromAddr.String(), To: toAddr.String(), Str: "payload", Signature: hexSig(slateSig),
	}, "PostSlate"))

	frames := waitForFrames(t, tr, 3)
	require.Equal(t, "Error", frames[2]["type"])
	require.Equal(t, string(envelope.Offline), frames[2]["kind"])
}

// TestScenarioRetrieveRelayAddr covers scenario D.
func TestScenarioRetrieveRelayAddr(t *testing.T) {
	s, tr, _, d := newTestSession(t)
	runSession(s)

	c := currentChallenge(t, tr)
	selfAddr, selfKey := newTestAddress()
	d.markOnline(selfAddr.Key())

	subSig := sig.Sign(selfKey, []byte(c))
	tr.push(mustJSON(envelope.SubscribeRequest{Address: selfAddr.String(), Signature: hexSig(subSig)}, "Subscribe"))
	waitForFrames(t, tr, 2)

	suffix := selfAddr.Suffix()
	tr.push(mustJSON(envelope.RetrieveRelayAddrRequest{Abbr: suffix}, "RetrieveRelayAddr"))

	frames := waitForFrames(t, tr, 3)
	require.Equal(t, "RelayAddr", frames[2]["type"])
	require.Equal(t, suffix, frames[2]["abbr"])
}

// TestScenarioInvalidRelayAbbr covers scenario E.
func TestScenarioInvalidRelayAbbr(t *testing.T) {
	s, tr, _, _ := newTestSession(t)
	runSession(s)

	c := currentChallenge(t, tr)
	selfAddr, selfKey := newTestAddress()
	subSig := sig.Sign(selfKey, []byte(c))
	tr.push(mustJSON(envelope.SubscribeRequest{Address: selfAddr.String(), Signature: hexSig(subSig)}, "Subscribe"))
	waitForFrames(t, tr, 2)

	tr.push(mustJSON(envelope.RetrieveRelayAddrRequest{Abbr: "xxx"}, "RetrieveRelayAddr"))

	frames := waitForFrames(t, tr, 3)
	require.Equal(t, "Error", frames[2]["type"])
	require.Equal(t, string(envelope.InvalidRelayAbbr), frames[2]["kind"])
}

// TestTooManySubscriptionsRejectsSecondSubscribe.
func TestTooManySubscriptionsRejectsSecondSubscribe(t *testing.T) {
	s, tr, _, _ := newTestSession(t)
	runSession(s)

	c := currentChallenge(t, tr)
	addr1, key1 := newTestAddress()
	addr2, key2 := newTestAddress()

	tr.push(mustJSON(envelope.SubscribeRequest{Address: addr1.String(), Signature: hexSig(sig.Sign(key1, []byte(c)))}, "Subscribe"))
	waitForFrames(t, tr, 2)

	tr.push(mustJSON(envelope.SubscribeRequest{Address: addr2.String(), Signature: hexSig(sig.Sign(key2, []byte(c)))}, "Subscribe"))
	frames := waitForFrames(t, tr, 3)
	require.Equal(t, "Error", frames[2]["type"])
	require.Equal(t, string(envelope.TooManySubscriptions), frames[2]["kind"])
}

// TestInvalidSignatureRejected.
func TestInvalidSignatureRejected(t *testing.T) {
	s, tr, _, _ := newTestSession(t)
	runSession(s)

	_ = currentChallenge(t, tr)
	addr, otherKey := newTestAddress()
	wrongSig := sig.Sign(otherKey, []byte("not-the-challenge"))
	tr.push(mustJSON(envelope.SubscribeRequest{Address: addr.String(), Signature: hexSig(wrongSig)}, "Subscribe"))

	frames := waitForFrames(t, tr, 2)
	require.Equal(t, "Error", frames[1]["type"])
	require.Equal(t, string(envelope.InvalidSignature), frames[1]["kind"])
}

// TestBareChallengeIsIdempotent: re-requesting Challenge replies with the
// same token, never regenerating it.
func TestBareChallengeIsIdempotent(t *testing.T) {
	s, tr, _, _ := newTestSession(t)
	runSession(s)

	c := currentChallenge(t, tr)
	tr.push(mustJSON(struct{}{}, "Challenge"))
	frames := waitForFrames(t, tr, 2)
	require.Equal(t, "Challenge", frames[1]["type"])
	require.Equal(t, c, frames[1]["str"])
}

func mustJSON(v any, typ string) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	m["type"] = typ
	out, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return out
}
