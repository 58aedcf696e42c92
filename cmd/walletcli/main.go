// Command walletcli is a small GrinRelay test client: it connects to a
// relay over WebSocket, completes the challenge/subscribe handshake, and
// then performs one wallet-side operation named on the command line. It
// exists for manual testing against a live relay, the way a wallet
// integration would use the protocol, not as a production wallet.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/fasthttp/websocket"

	"grinrelay.dev/address"
	"grinrelay.dev/envelope"
	"grinrelay.dev/sig"
)

type args struct {
	Op      string `arg:"positional,required" help:"subscribe | post-slate | retrieve-relay-addr"`
	Relay   string `arg:"--relay" default:"ws://127.0.0.1:13420" help:"relay WebSocket URL"`
	Key     string `arg:"--key" help:"wallet private key, hex (a fresh one is generated if omitted)"`
	Mainnet bool   `arg:"--mainnet" help:"use the gn (mainnet) address HRP instead of tn (testnet)"`
	To      string `arg:"--to" help:"post-slate: recipient address"`
	Slate   string `arg:"--slate" help:"post-slate: payload string to relay"`
	TTL     uint32 `arg:"--ttl" help:"post-slate: message expiration in seconds"`
	Abbr    string `arg:"--abbr" help:"retrieve-relay-addr: 6-char address suffix to look up"`
	Listen  bool   `arg:"--listen" help:"after subscribing, print incoming Slate deliveries until interrupted"`
}

func (args) Description() string {
	return "walletcli subscribe|post-slate|retrieve-relay-addr [flags]"
}

func main() {
	var a args
	arg.MustParse(&a)
	op := a.Op

	priv, addr, err := loadIdentity(a.Key, a.Mainnet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "walletcli:", err)
		os.Exit(1)
	}
	fmt.Printf("wallet address: %s\n", addr.String())

	conn, _, err := websocket.DefaultDialer.Dial(dialURL(a.Relay), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "walletcli: dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	challenge, err := awaitChallenge(conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "walletcli:", err)
		os.Exit(1)
	}

	subSig := sig.Sign(priv, []byte(challenge))
	if err = writeJSON(conn, envelope.SubscribeRequest{
		Address: addr.String(), Signature: hex.EncodeToString(subSig),
	}, envelope.TypeSubscribe); err != nil {
		fmt.Fprintln(os.Stderr, "walletcli: subscribe:", err)
		os.Exit(1)
	}
	if err = awaitOk(conn); err != nil {
		fmt.Fprintln(os.Stderr, "walletcli: subscribe rejected:", err)
		os.Exit(1)
	}
	fmt.Println("subscribed")

	switch op {
	case "subscribe":
		// Nothing further unless --listen was given.

	case "post-slate":
		to, perr := address.Parse(a.To, "")
		if perr != nil {
			fmt.Fprintln(os.Stderr, "walletcli: --to:", perr)
			os.Exit(1)
		}
		slateSig := sig.Sign(priv, []byte(a.Slate+challenge))
		req := envelope.PostSlateRequest{
			From: addr.String(), To: to.String(), Str: a.Slate,
			Signature: hex.EncodeToString(slateSig),
		}
		if a.TTL > 0 {
			req.MessageExpirationInSeconds = &a.TTL
		}
		if err = writeJSON(conn, req, envelope.TypePostSlate); err != nil {
			fmt.Fprintln(os.Stderr, "walletcli: post-slate:", err)
			os.Exit(1)
		}
		if err = awaitOk(conn); err != nil {
			fmt.Fprintln(os.Stderr, "walletcli: post-slate rejected:", err)
			os.Exit(1)
		}
		fmt.Println("slate relayed")

	case "retrieve-relay-addr":
		if err = writeJSON(conn, envelope.RetrieveRelayAddrRequest{Abbr: a.Abbr}, envelope.TypeRetrieveRelayAddr); err != nil {
			fmt.Fprintln(os.Stderr, "walletcli: retrieve-relay-addr:", err)
			os.Exit(1)
		}
		_, raw, rerr := conn.ReadMessage()
		if rerr != nil {
			fmt.Fprintln(os.Stderr, "walletcli: read:", rerr)
			os.Exit(1)
		}
		fmt.Println(string(raw))

	default:
		fmt.Fprintf(os.Stderr, "walletcli: unknown operation %q (want subscribe|post-slate|retrieve-relay-addr)\n", op)
		os.Exit(1)
	}

	if a.Listen {
		listenForSlates(conn)
	}
}

func loadIdentity(keyHex string, mainnet bool) (*btcec.PrivateKey, *address.Address, error) {
	var priv *btcec.PrivateKey
	if keyHex != "" {
		b, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("--key is not valid hex: %w", err)
		}
		priv, _ = btcec.PrivKeyFromBytes(b)
	} else {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, fmt.Errorf("generating a wallet key: %w", err)
		}
		priv, _ = btcec.PrivKeyFromBytes(b)
		fmt.Printf("generated wallet key: %s\n", hex.EncodeToString(priv.Serialize()))
	}

	hrp := address.HRPTestnet
	if mainnet {
		hrp = address.HRPMainnet
	}
	return priv, address.New(priv.PubKey(), hrp, "", 0), nil
}

func dialURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return raw
	}
	return "ws://" + raw
}

func writeJSON(conn *websocket.Conn, v any, typ envelope.Type) error {
	m, err := envelope.ToFrame(v, typ)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, m)
}

func awaitChallenge(conn *websocket.Conn) (string, error) {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("reading challenge: %w", err)
	}
	resp, err := envelope.UnmarshalChallengeResponse(raw)
	if err != nil {
		return "", err
	}
	return resp.Str, nil
}

func awaitOk(conn *websocket.Conn) error {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return envelope.ExpectOk(raw)
}

func listenForSlates(conn *websocket.Conn) {
	fmt.Println("listening for slates, press ctrl-c to exit")
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintln(os.Stderr, "walletcli: connection closed:", err)
			return
		}
		fmt.Printf("[%s] %s\n", time.Now().Format(time.RFC3339), string(raw))
	}
}
