package cache

import (
	"encoding/binary"
	"fmt"
	"hash"
	"sort"

	"github.com/minio/highwayhash"
)

// hashKey is the fixed HighwayHash key. Fingerprints only need to be stable
// across runs, not secret.
var hashKey = []byte("c2s-result-cache-fingerprint-key")

// Fingerprint accumulates everything a migration result depends on.
type Fingerprint struct {
	inputs  map[string][]byte
	options []string
	rules   map[string][]byte
}

// NewFingerprint creates an empty fingerprint.
func NewFingerprint() *Fingerprint {
	return &Fingerprint{inputs: make(map[string][]byte), rules: make(map[string][]byte)}
}

// AddInput records an input file.
func (f *Fingerprint) AddInput(path string, content []byte) {
	f.inputs[path] = content
}

// AddRules records a rule file.
func (f *Fingerprint) AddRules(path string, content []byte) {
	f.rules[path] = content
}

// AddOption records an option that changes the migration output, such as
// "usm=true".
func (f *Fingerprint) AddOption(opt string) {
	f.options = append(f.options, opt)
}

// Key returns the hex digest. It does not depend on the order inputs, rules
// or options were added in.
func (f *Fingerprint) Key() (string, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", fmt.Errorf("creating hash: %w", err)
	}
	writeSection(h, "inputs", f.inputs)
	writeSection(h, "rules", f.rules)
	opts := append([]string(nil), f.options...)
	sort.Strings(opts)
	writeField(h, []byte("options"))
	for _, o := range opts {
		writeField(h, []byte(o))
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func writeSection(h hash.Hash, name string, files map[string][]byte) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	writeField(h, []byte(name))
	for _, p := range paths {
		writeField(h, []byte(p))
		writeField(h, files[p])
	}
}

// writeField writes b with a length prefix so adjacent fields cannot run
// into each other.
func writeField(h hash.Hash, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
