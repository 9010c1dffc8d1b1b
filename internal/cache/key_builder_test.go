package cache

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildRequestKeyDeterministic(t *testing.T) {
	// Two maps with the same content, populated in opposite orders.
	a := map[string]string{}
	b := map[string]string{}
	for i := 0; i < 8; i++ {
		a[fmt.Sprintf("k%d", i)] = fmt.Sprintf("v%d", i)
	}
	for i := 7; i >= 0; i-- {
		b[fmt.Sprintf("k%d", i)] = fmt.Sprintf("v%d", i)
	}

	ka := BuildRequestKey("/matches/live", a)
	kb := BuildRequestKey("/matches/live", b)

	if diff := cmp.Diff(ka, kb); diff != "" {
		t.Fatalf("keys differ for equal-content params (-a +b):\n%s", diff)
	}
	if ka.String() != kb.String() {
		t.Fatalf("String() differs: %s vs %s", ka.String(), kb.String())
	}
}

func TestBuildRequestKeyDistinguishesRequests(t *testing.T) {
	base := BuildRequestKey("/matches/live", map[string]string{"league": "epl"})

	cases := map[string]RequestKey{
		"different endpoint":    BuildRequestKey("/matches/upcoming", map[string]string{"league": "epl"}),
		"different param value": BuildRequestKey("/matches/live", map[string]string{"league": "laliga"}),
		"different param key":   BuildRequestKey("/matches/live", map[string]string{"season": "epl"}),
		"extra param":           BuildRequestKey("/matches/live", map[string]string{"league": "epl", "day": "1"}),
		"no params":             BuildRequestKey("/matches/live", nil),
	}

	for name, k := range cases {
		if k.Hash == base.Hash {
			t.Errorf("%s: hash collided with base key", name)
		}
	}
}

func TestBuildRequestKeyEscapesDelimiterValues(t *testing.T) {
	// A value carrying query delimiters must not canonicalize to the same
	// form as two separate parameters.
	smuggled := BuildRequestKey("/matches/live", map[string]string{"a": "1&b=2"})
	split := BuildRequestKey("/matches/live", map[string]string{"a": "1", "b": "2"})
	if smuggled.Hash == split.Hash {
		t.Fatalf("value %q must not share a key with params a=1, b=2", "1&b=2")
	}

	valueEquals := BuildRequestKey("/matches/live", map[string]string{"a": "1=2"})
	keyEquals := BuildRequestKey("/matches/live", map[string]string{"a=1": "2"})
	if valueEquals.Hash == keyEquals.Hash {
		t.Fatalf("'=' inside a key or value must stay part of that component")
	}
}

func TestBuildRequestKeyNormalizesEndpoint(t *testing.T) {
	withSlash := BuildRequestKey("/standings", map[string]string{"season": "2026"})
	withoutSlash := BuildRequestKey("standings", map[string]string{"season": "2026"})
	padded := BuildRequestKey("  /standings  ", map[string]string{"season": "2026"})

	if withSlash.Hash != withoutSlash.Hash || withSlash.Hash != padded.Hash {
		t.Fatalf("endpoint spellings of the same path must share a key")
	}
	if withSlash.Endpoint != "/standings" {
		t.Fatalf("unexpected normalized endpoint: %q", withSlash.Endpoint)
	}
}

func TestBuildRequestKeyStringFormat(t *testing.T) {
	k := BuildRequestKey("/matches/live", nil)
	want := "resp:" + k.Hash
	if k.String() != want {
		t.Fatalf("String() = %q, want %q", k.String(), want)
	}
	if len(k.Hash) != 64 {
		t.Fatalf("expected hex sha256 hash, got %d chars", len(k.Hash))
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/matches/live", "/matches/live"},
		{"matches/live", "/matches/live"},
		{"  /standings ", "/standings"},
		{"   ", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeEndpoint(tc.in); got != tc.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
