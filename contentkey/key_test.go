package contentkey

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf16"
)

func TestComputeDeterministic(t *testing.T) {
	a := Compute("abc")
	b := Compute(strings.Clone("abc"))
	if !a.Equal(b) {
		t.Fatalf("expected equal keys for equal content")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("expected identical hashes, got %x and %x", a.Hash(), b.Hash())
	}
	if Compute("abc").Equal(Compute("abd")) {
		t.Fatalf("did not expect keys for different content to be equal")
	}
}

func TestEmptyContentIsValid(t *testing.T) {
	empty := Compute("")
	if empty.Len() != 0 || empty.Content() != "" {
		t.Fatalf("unexpected empty key: %v", empty)
	}
	fromBytes, err := ComputeBytes([]byte{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty.Equal(fromBytes) {
		t.Fatalf("expected empty byte slice to key like the empty string")
	}
}

func TestEqualConfirmsContentOnCollision(t *testing.T) {
	a := Make("left", 42)
	b := Make("right", 42)
	if a.Equal(b) {
		t.Fatalf("equal hashes must not make keys equal")
	}
	if !a.Equal(Make("left", 42)) {
		t.Fatalf("expected same content and hash to be equal")
	}
}

func TestComputeBytesMatchesString(t *testing.T) {
	key, err := ComputeBytes([]byte("héllo"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !key.Equal(Compute("héllo")) {
		t.Fatalf("byte and string keys differ: %v vs %v", key, Compute("héllo"))
	}
}

func TestComputeBytesNil(t *testing.T) {
	if _, err := ComputeBytes(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestComputeUTF16(t *testing.T) {
	content := "intern 𝄞 ü"
	key, err := ComputeUTF16(utf16.Encode([]rune(content)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !key.Equal(Compute(content)) {
		t.Fatalf("utf16 key %v does not match string key %v", key, Compute(content))
	}

	empty, err := ComputeUTF16([]uint16{})
	if err != nil || !empty.Equal(Compute("")) {
		t.Fatalf("unexpected empty utf16 result: %v %v", empty, err)
	}
}

func TestComputeUTF16Rejects(t *testing.T) {
	cases := map[string][]uint16{
		"nil":           nil,
		"lone high":     {'a', 0xD834},
		"lone low":      {0xDD1E, 'a'},
		"high then bmp": {0xD834, 'a'},
	}
	for name, units := range cases {
		if _, err := ComputeUTF16(units); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestKeyStringTruncates(t *testing.T) {
	rendered := Compute(strings.Repeat("x", 100)).String()
	if !strings.Contains(rendered, "...") {
		t.Fatalf("expected truncated rendering, got %s", rendered)
	}
}
