package dedup

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/corona10/goimagehash"
)

// DefaultPerceptualThreshold is the Hamming distance between two dHash
// values below which images count as the same picture.
const DefaultPerceptualThreshold = 10

// Fingerprint is a 64-bit content hash of a file's bytes.
type Fingerprint uint64

// Sum fingerprints raw bytes.
func Sum(data []byte) Fingerprint {
	return Fingerprint(xxhash.Sum64(data))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Set remembers what has been seen during one run. Nothing is persisted.
type Set struct {
	mu        sync.Mutex
	seen      map[Fingerprint]string
	hashes    []*goimagehash.ImageHash
	threshold int
}

// NewSet returns an exact-match set.
func NewSet() *Set {
	return &Set{seen: make(map[Fingerprint]string)}
}

// NewPerceptualSet also treats resized or re-encoded copies as duplicates.
func NewPerceptualSet(threshold int) *Set {
	s := NewSet()
	s.threshold = threshold
	return s
}

// Perceptual reports whether near-duplicate detection is on.
func (s *Set) Perceptual() bool {
	return s.threshold > 0
}

// Seen records data under name and reports whether identical bytes were
// already recorded, together with the name they were first seen as.
func (s *Set) Seen(name string, data []byte) (Fingerprint, string, bool) {
	fp := Sum(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if first, ok := s.seen[fp]; ok {
		return fp, first, true
	}
	s.seen[fp] = name
	return fp, "", false
}

// SeenFile is Seen for a path on disk. A read error is returned as-is and
// never reported as a duplicate.
func (s *Set) SeenFile(path string) (Fingerprint, string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	fp, first, dup := s.Seen(path, data)
	return fp, first, dup, nil
}

// SeenImage reports whether img is perceptually close to an earlier image.
// It is a no-op returning false unless the set was built with a threshold.
// Images that cannot be hashed are accepted.
func (s *Set) SeenImage(img image.Image) bool {
	if !s.Perceptual() {
		return false
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.hashes {
		dist, err := hash.Distance(h)
		if err == nil && dist < s.threshold {
			return true
		}
	}
	s.hashes = append(s.hashes, hash)
	return false
}

// Len returns the number of distinct fingerprints recorded.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
