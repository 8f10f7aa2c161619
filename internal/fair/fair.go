package fair

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"sync"

	"go-crashout/internal/lib/random"
)

// VerifyTolerance absorbs float rounding differences between independent
// verifier implementations of the same derivation.
const VerifyTolerance = 1e-4

// SeedCommit is the fairness material for one round. Hash is published
// before any bet is accepted; ServerSeed only after the round terminates.
type SeedCommit struct {
	ServerSeed string
	ClientSeed string
	Nonce      int
	Hash       string
}

// ProvablyFair hands out one seed commit per round. Seeds are regenerated
// every round; the nonce counts rounds within the process lifetime and is
// not persisted, each round verifies from its own published triple.
type ProvablyFair struct {
	mu        sync.Mutex
	houseEdge float64
	nonce     int
	committed bool
}

func New(houseEdge float64) *ProvablyFair {
	return &ProvablyFair{houseEdge: houseEdge}
}

func (f *ProvablyFair) HouseEdge() float64 {
	return f.houseEdge
}

// Commit generates fresh seed material for the next round. The server seed
// carries 256 bits of entropy, the client seed 128.
func (f *ProvablyFair) Commit() SeedCommit {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.committed {
		f.nonce++
	}
	f.committed = true

	serverSeed := random.NewHexString(32)
	clientSeed := random.NewHexString(16)

	return SeedCommit{
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Nonce:      f.nonce,
		Hash:       Hash(serverSeed, clientSeed, f.nonce),
	}
}

// CrashPoint derives the commit's crash multiplier.
func (f *ProvablyFair) CrashPoint(c SeedCommit) float64 {
	return CrashPoint(c.ServerSeed, c.ClientSeed, c.Nonce, f.houseEdge)
}

func Hash(serverSeed, clientSeed string, nonce int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%d", serverSeed, clientSeed, nonce)))

	return hex.EncodeToString(sum[:])
}

// CrashPoint maps the seed triple onto [1.0, +inf). The first 8 hex chars of
// the SHA256 digest become a uniform draw f in [0,1); the house edge then
// shapes it as 1/(1 - edge - f*(1 - edge)). The division approaches a
// singularity as f -> 1; that is the rare astronomically-high round, not an
// error. All arithmetic is float64 in the written order so independent
// verifiers agree within VerifyTolerance.
func CrashPoint(serverSeed, clientSeed string, nonce int, houseEdge float64) float64 {
	h := Hash(serverSeed, clientSeed, nonce)

	d, err := strconv.ParseUint(h[:8], 16, 64)
	if err != nil {
		panic("fair: malformed sha256 hex: " + err.Error())
	}

	f := float64(d) / float64(0xffffffff)

	raw := 1 / (1 - houseEdge - f*(1-houseEdge))

	return math.Max(1.0, raw)
}

// Verify recomputes the crash point from the revealed seeds and compares it
// against the claimed one.
func Verify(serverSeed, clientSeed string, nonce int, houseEdge, claimed float64) bool {
	return math.Abs(CrashPoint(serverSeed, clientSeed, nonce, houseEdge)-claimed) < VerifyTolerance
}
