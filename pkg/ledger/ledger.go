// Package ledger tracks which progress events have already been applied, so
// a feed that redelivers identical snapshots neither flickers the UI nor
// issues duplicate durable writes.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

const fingerprintDomain = "autoanswer/fingerprint/v2"

// Fingerprint summarizes an answer result's content: answer presence, the
// exact answer bytes and every source reference in order. Blank answers
// fingerprint the same as missing ones.
func Fingerprint(answer *string, sources []core.SourceRef) string {
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})

	var buf [8]byte
	writeField := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}

	if core.HasText(answer) {
		h.Write([]byte{1})
		writeField(*answer)
	} else {
		h.Write([]byte{0})
	}
	binary.BigEndian.PutUint64(buf[:], uint64(len(sources)))
	h.Write(buf[:])
	for _, src := range sources {
		writeField(src.SourceType)
		writeField(src.SourceID)
		writeField(src.Name)
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(src.Score))
		h.Write(buf[:])
	}

	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Key builds the dedup key jobID:index:fingerprint.
func Key(jobID string, index int, fingerprint string) string {
	return jobID + ":" + strconv.Itoa(index) + ":" + fingerprint
}

// Ledger is the set of processed keys, grouped by job so a finished job's
// entries can be dropped at once. It is not safe for concurrent use.
type Ledger struct {
	keys  map[string]string // key -> jobID
	byJob map[string]map[string]struct{}
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		keys:  make(map[string]string),
		byJob: make(map[string]map[string]struct{}),
	}
}

// Contains reports whether key has been processed.
func (l *Ledger) Contains(key string) bool {
	_, ok := l.keys[key]
	return ok
}

// Add records key as processed for jobID. It returns false if the key was
// already present.
func (l *Ledger) Add(jobID, key string) bool {
	if _, ok := l.keys[key]; ok {
		return false
	}
	l.keys[key] = jobID
	set, ok := l.byJob[jobID]
	if !ok {
		set = make(map[string]struct{})
		l.byJob[jobID] = set
	}
	set[key] = struct{}{}
	return true
}

// Forget removes a single key so an equivalent event can be applied again.
func (l *Ledger) Forget(key string) {
	jobID, ok := l.keys[key]
	if !ok {
		return
	}
	delete(l.keys, key)
	if set, ok := l.byJob[jobID]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(l.byJob, jobID)
		}
	}
}

// DiscardJob drops every key recorded for jobID.
func (l *Ledger) DiscardJob(jobID string) int {
	set, ok := l.byJob[jobID]
	if !ok {
		return 0
	}
	for key := range set {
		delete(l.keys, key)
	}
	delete(l.byJob, jobID)
	return len(set)
}

// Len returns the number of processed keys.
func (l *Ledger) Len() int {
	return len(l.keys)
}

// JobLen returns the number of processed keys for jobID.
func (l *Ledger) JobLen(jobID string) int {
	return len(l.byJob[jobID])
}
