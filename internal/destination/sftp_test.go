package destination

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifySSHError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]"), ErrAuth},
		{errors.New("ssh: handshake failed: ssh: no supported methods remain"), ErrAuth},
		{errors.New("dial tcp 10.0.0.9:22: connect: connection refused"), ErrConnectivity},
		{errors.New("ssh: handshake failed: EOF"), ErrConnectivity},
	}
	for _, tc := range cases {
		if got := classifySSHError(tc.err); got != tc.want {
			t.Fatalf("classifySSHError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestSFTPMissingIdentityIsAuthError(t *testing.T) {
	d, err := ParseDescriptor("sftp://backup@nas.local/cams?identity=/nonexistent/id_ed25519")
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	sink, err := newSFTP(d, nopLogger(t))
	if err != nil {
		t.Fatalf("newSFTP: %v", err)
	}

	_, err = sink.ensureClient()
	if err == nil {
		t.Fatal("ensureClient should fail without an identity file")
	}
	if kind, ok := KindOf(err); !ok || kind != ErrAuth {
		t.Fatalf("kind = %v, want auth", kind)
	}
}

func TestTransferErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	var err error = &TransferError{Kind: ErrConnectivity, Op: "write", Err: inner}
	wrapped := fmt.Errorf("upload failed: %w", err)

	if kind, ok := KindOf(wrapped); !ok || kind != ErrConnectivity {
		t.Fatalf("KindOf through wrapping = %v, %v", kind, ok)
	}
	if !errors.Is(wrapped, inner) {
		t.Fatal("TransferError should unwrap to the inner error")
	}
}
