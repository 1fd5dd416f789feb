package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unsafe"
)

func TestReadSkipsBlankLines(t *testing.T) {
	words, err := Read(strings.NewReader("alpha\n\n  beta  \nalpha\n\t\ngamma"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"alpha", "beta", "alpha", "gamma"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("got %v, want %v", words, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\r\nthree\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	words, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(words, []string{"one", "two", "three"}) {
		t.Fatalf("unexpected words %v", words)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestGenerateIsDeterministicWithRepeats(t *testing.T) {
	a := Generate(400, 7)
	b := Generate(400, 7)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different corpora")
	}
	if len(a) != 400 {
		t.Fatalf("expected 400 words, got %d", len(a))
	}
	distinct := Distinct(a)
	if distinct == 0 || distinct >= len(a) {
		t.Fatalf("expected repeated words, got %d distinct of %d", distinct, len(a))
	}
	if Generate(0, 1) != nil {
		t.Fatalf("expected nil corpus for n=0")
	}
}

func TestGeneratedWordsDoNotShareMemory(t *testing.T) {
	words := Generate(64, 3)
	for i := range words {
		for j := i + 1; j < len(words); j++ {
			if words[i] == words[j] && unsafe.StringData(words[i]) == unsafe.StringData(words[j]) {
				t.Fatalf("words %d and %d share backing memory", i, j)
			}
		}
	}
}

func TestDistinct(t *testing.T) {
	if got := Distinct([]string{"a", "b", "a", ""}); got != 3 {
		t.Fatalf("expected 3 distinct, got %d", got)
	}
}
