// Package id issues identifiers for orders and fills.
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

// Prefixes keep order and fill ids distinguishable in history output.
const (
	OrderPrefix = "ord_"
	FillPrefix  = "fil_"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns prefix followed by a ULID stamped with at, so ids sort by
// simulated time. A zero at uses the wall clock.
func New(prefix string, at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}

	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at.UTC()), mono)
	if err != nil {
		// Monotonic entropy overflowed inside one millisecond.
		panic(err)
	}
	return prefix + id.String()
}

// Time recovers the timestamp encoded in an id produced by New.
func Time(s, prefix string) (time.Time, bool) {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	u, err := ulid.ParseStrict(s[len(prefix):])
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()).UTC(), true
}
