package crypto

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSignMatchesExchangeReferenceVector(t *testing.T) {
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"
	if got := Sign(secret, payload); got != want {
		t.Fatalf("Sign = %s, want %s", got, want)
	}
}

func TestSignedQuery(t *testing.T) {
	h := &HMACAuth{Key: "k", Secret: "s", RecvWindow: 5 * time.Second}
	now := time.UnixMilli(1700000000123)
	q := h.SignedQuery(url.Values{"omitZeroBalances": {"true"}}, now)

	body, sig, ok := strings.Cut(q, "&signature=")
	if !ok {
		t.Fatalf("no signature in %q", q)
	}
	if body != "omitZeroBalances=true&recvWindow=5000&timestamp=1700000000123" {
		t.Errorf("unexpected body %q", body)
	}
	if sig != Sign("s", body) {
		t.Error("signature does not cover the query")
	}
}

func TestHMACAuthStringRedacts(t *testing.T) {
	s := (&HMACAuth{Key: "abcdefgh", Secret: "supersecret"}).String()
	if strings.Contains(s, "supersecret") || strings.Contains(s, "abcdefgh") {
		t.Errorf("secret leaked: %s", s)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("api-secret-value", "hunter2")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	if strings.Contains(string(blob), "api-secret-value") {
		t.Fatal("plaintext present in keystore")
	}

	got, err := DecryptSecret(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if got != "api-secret-value" {
		t.Errorf("got %q", got)
	}
	if _, err := DecryptSecret(blob, "wrong"); err == nil {
		t.Error("expected wrong password to fail")
	}
}

func TestLoadSecret(t *testing.T) {
	if s, err := LoadSecret(SecretSource{Plain: "direct", KeystorePath: "/nonexistent"}); err != nil || s != "direct" {
		t.Errorf("plain secret: %q %v", s, err)
	}
	if s, err := LoadSecret(SecretSource{}); err != nil || s != "" {
		t.Errorf("empty source: %q %v", s, err)
	}

	blob, err := EncryptSecret("from-file", "pw")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keystore.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}
	if s, err := LoadSecret(SecretSource{KeystorePath: path, Password: "pw"}); err != nil || s != "from-file" {
		t.Errorf("keystore secret: %q %v", s, err)
	}
}
