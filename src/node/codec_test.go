package node

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMarshalRoundTrip(t *testing.T) {
	in := Node{
		ID:          "device-1",
		X:           120.5,
		Y:           -48,
		Tag:         `{"ac":"#FFFF0000","p":true}`,
		LastUpdated: time.Now(),
		Kind:        Self,
	}

	raw, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	out, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}

	if out.ID != in.ID || out.X != in.X || out.Y != in.Y || out.Tag != in.Tag {
		t.Fatalf("round trip mismatch. expected %#v, got %#v", in, out)
	}

	if out.Kind != Other {
		t.Fatalf("decoded node should be Other, not %v", out.Kind)
	}

	if !out.LastUpdated.IsZero() {
		t.Fatalf("LastUpdated should not travel on the wire")
	}
}

func TestMarshalOmitsEmptyTag(t *testing.T) {
	raw, err := Marshal(Node{ID: "a", X: 1, Y: 2})
	if err != nil {
		t.Fatal(err)
	}

	s := string(raw)

	if strings.Contains(s, "Tag") {
		t.Fatalf("empty Tag should be omitted: %s", s)
	}

	for _, field := range []string{`"Id":"a"`, `"X":`, `"Y":`} {
		if !strings.Contains(s, field) {
			t.Fatalf("%s should contain %s", s, field)
		}
	}

	for _, field := range []string{"LastUpdated", "Kind"} {
		if strings.Contains(s, field) {
			t.Fatalf("%s should not contain %s", s, field)
		}
	}

	out, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}

	if out.HasTag() {
		t.Fatalf("decoded node should not have a tag")
	}
}

func TestUnmarshalForeignPayload(t *testing.T) {
	// Integer coordinates and unknown fields are accepted
	out, err := Unmarshal([]byte(`{"Id":"peer","X":3,"Y":4,"Extra":true}`))
	if err != nil {
		t.Fatal(err)
	}

	if out.ID != "peer" || out.X != 3 || out.Y != 4 {
		t.Fatalf("unexpected node %#v", out)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	cases := []string{
		"{not json",
		"",
		"   ",
		"WIEB",
		`{"X":1,"Y":2}`,
		`"just a string"`,
	}

	for _, c := range cases {
		_, err := Unmarshal([]byte(c))
		if err == nil {
			t.Fatalf("%q should not decode", c)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: error should wrap ErrMalformed, got %v", c, err)
		}
	}
}

func TestKindString(t *testing.T) {
	if Self.String() != "Self" || Other.String() != "Other" || Default.String() != "Default" {
		t.Fatal("unexpected Kind names")
	}
	if Kind(42).String() != "Unknown" {
		t.Fatal("unknown kind should print Unknown")
	}
}
