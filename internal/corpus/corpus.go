// Package corpus loads the word lists the stress command interns.
package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	scannerBufferSize    = 64 * 1024
	maxWordSize          = 4 * 1024 * 1024
	largeCorpusThreshold = 10 * 1024 * 1024
)

// Load reads one word per line from path. Files above 10 MiB are mapped into
// memory instead of streamed. Every returned word is its own allocation.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size > largeCorpusThreshold && info.Mode().IsRegular() && size <= int64(^uint(0)>>1) {
		data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
		if err == nil {
			words, readErr := Read(bytes.NewReader(data), int(size))
			_ = unix.Munmap(data)
			if readErr != nil {
				return nil, fmt.Errorf("read %s: %w", path, readErr)
			}
			return words, nil
		}
		// fall back to streaming reader if mmap fails
	}

	hint := 0
	if size <= int64(^uint(0)>>1) {
		hint = int(size)
	}
	words, err := Read(file, hint)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return words, nil
}

// Read returns the non-blank, trimmed lines of r in order, duplicates kept.
func Read(r io.Reader, sizeHint int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	scanner.Buffer(make([]byte, scannerBufferSize), maxWordSize)

	capacity := 256
	if sizeHint <= 0 {
		if statter, ok := r.(interface{ Stat() (fs.FileInfo, error) }); ok {
			if info, err := statter.Stat(); err == nil {
				sizeHint = int(info.Size())
			}
		}
	}
	if sizeHint > 0 {
		estimate := sizeHint / 8
		if estimate > capacity {
			capacity = estimate
		}
	}

	words := make([]string, 0, capacity)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// FromStdin reads words from r unless r is an interactive terminal, in which
// case it returns nil.
func FromStdin(r io.Reader) ([]string, error) {
	if file, ok := r.(*os.File); ok {
		if stat, err := file.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return nil, nil
		}
	}
	return Read(r, 0)
}

var syllables = []string{
	"ka", "zu", "mi", "ro", "te", "sha", "lin", "dor", "vex", "qua",
	"é", "ñu", "ø", "straße", "東", "京", "😀", "λ",
}

// Generate returns n words drawn from a vocabulary of roughly n/4 distinct
// words, so most contents occur several times. The same seed yields the same
// corpus.
func Generate(n int, seed uint64) []string {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	vocabulary := make([]string, n/4+1)
	for i := range vocabulary {
		var b strings.Builder
		parts := 1 + rng.IntN(4)
		for p := 0; p < parts; p++ {
			b.WriteString(syllables[rng.IntN(len(syllables))])
		}
		fmt.Fprintf(&b, "-%d", i)
		vocabulary[i] = b.String()
	}

	words := make([]string, n)
	for i := range words {
		// clone so repeated words do not share backing memory
		words[i] = strings.Clone(vocabulary[rng.IntN(len(vocabulary))])
	}
	return words
}

// Distinct counts the distinct contents in words.
func Distinct(words []string) int {
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return len(seen)
}
