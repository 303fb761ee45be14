// Package id generates position identifiers.
//
// IDs are ULIDs: lexicographically sortable by creation time, so ledger
// listings and journal rows come back in open order without extra columns.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand; ulid.Monotonic keeps IDs minted within
	// the same millisecond strictly increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a fresh ULID string.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(time.Now().UTC()), entropy)
	if err != nil {
		// Only possible if the clock or entropy source fails outright.
		panic(err)
	}
	return u.String()
}

// Short returns the first 8 characters of an ID, for logs and reports
// where the full 26 characters are noise. Short ids are not unique.
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
