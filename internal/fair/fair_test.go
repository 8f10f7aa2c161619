package fair

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"testing"
)

func TestCrashPointNeverBelowOne(t *testing.T) {
	cases := []struct {
		name       string
		serverSeed string
		clientSeed string
		nonce      int
		houseEdge  float64
	}{
		{
			name:       "Zeros",
			serverSeed: "0000000000000000000000000000000000000000000000000000000000000000",
			clientSeed: "00000000000000000000000000000000",
			nonce:      0,
			houseEdge:  0.05,
		},
		{
			name:       "HighNonce",
			serverSeed: "5f2b3c9d1e8a7f6054d3c2b1a0918273645f5e4d3c2b1a09f8e7d6c5b4a39281",
			clientSeed: "9d8c7b6a5f4e3d2c1b0a998877665544",
			nonce:      1000000,
			houseEdge:  0.05,
		},
		{
			name:       "BigHouseEdge",
			serverSeed: "aaaabbbbccccddddeeeeffff00001111222233334444555566667777888899aa",
			clientSeed: "ffeeddccbbaa99887766554433221100",
			nonce:      7,
			houseEdge:  0.5,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := CrashPoint(tc.serverSeed, tc.clientSeed, tc.nonce, tc.houseEdge)
			if got < 1.0 {
				t.Errorf("crash point below 1.0: %f", got)
			}
		})
	}
}

func TestCrashPointDeterministic(t *testing.T) {
	t.Parallel()

	first := CrashPoint("server-seed", "client-seed", 3, 0.05)

	for i := 0; i < 100; i++ {
		if got := CrashPoint("server-seed", "client-seed", 3, 0.05); got != first {
			t.Fatalf("crash point changed between calls: %f vs %f", first, got)
		}
	}
}

func TestCrashPointMatchesReferenceDerivation(t *testing.T) {
	t.Parallel()

	const (
		serverSeed = "a3f1c2d4e5b6978812345678deadbeefcafebabe00112233445566778899aabb"
		clientSeed = "0123456789abcdef0123456789abcdef"
		nonce      = 42
		houseEdge  = 0.05
	)

	sum := sha256.Sum256([]byte(serverSeed + "-" + clientSeed + "-" + strconv.Itoa(nonce)))
	h := hex.EncodeToString(sum[:])

	d, err := strconv.ParseUint(h[:8], 16, 64)
	if err != nil {
		t.Fatalf("parse hash prefix: %v", err)
	}

	f := float64(d) / float64(0xffffffff)
	want := math.Max(1.0, 1/(1-houseEdge-f*(1-houseEdge)))

	if got := CrashPoint(serverSeed, clientSeed, nonce, houseEdge); got != want {
		t.Errorf("unexpected crash point, want: %f, got: %f", want, got)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	f := New(0.05)

	for i := 0; i < 50; i++ {
		c := f.Commit()

		point := f.CrashPoint(c)

		if !Verify(c.ServerSeed, c.ClientSeed, c.Nonce, 0.05, point) {
			t.Fatalf("round-trip verify failed for nonce %d, point %f", c.Nonce, point)
		}
	}
}

func TestVerifyRejectsWrongClaim(t *testing.T) {
	t.Parallel()

	f := New(0.05)
	c := f.Commit()

	point := f.CrashPoint(c)

	if Verify(c.ServerSeed, c.ClientSeed, c.Nonce, 0.05, point+0.001) {
		t.Error("verify accepted a claim outside tolerance")
	}

	if Verify(c.ServerSeed, c.ClientSeed, c.Nonce, 0.05, point*2) {
		t.Error("verify accepted a doubled claim")
	}
}

func TestCommit(t *testing.T) {
	t.Parallel()

	f := New(0.05)

	first := f.Commit()
	second := f.Commit()
	third := f.Commit()

	if len(first.ServerSeed) != 64 {
		t.Errorf("server seed must carry 256 bits, got %d hex chars", len(first.ServerSeed))
	}

	if len(first.ClientSeed) != 32 {
		t.Errorf("client seed must carry 128 bits, got %d hex chars", len(first.ClientSeed))
	}

	if first.Nonce != 0 || second.Nonce != 1 || third.Nonce != 2 {
		t.Errorf("nonce must count rounds: got %d, %d, %d", first.Nonce, second.Nonce, third.Nonce)
	}

	if first.ServerSeed == second.ServerSeed || first.ClientSeed == second.ClientSeed {
		t.Error("seeds must be regenerated every round")
	}

	if first.Hash != Hash(first.ServerSeed, first.ClientSeed, first.Nonce) {
		t.Error("published hash does not match seed material")
	}
}
