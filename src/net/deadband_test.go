package net

import "testing"

func TestDeadBandFirstSendAlwaysAdmitted(t *testing.T) {
	d := newDeadBand(DefaultDeadBand)

	// (0,0) is within 5 of the zero value, but nothing was sent yet
	if !d.admit(0, 0, false) {
		t.Fatal("first position should be admitted")
	}

	if x, y, ok := d.last(); !ok || x != 0 || y != 0 {
		t.Fatalf("unexpected last position %v,%v,%v", x, y, ok)
	}
}

func TestDeadBandSuppressesJitter(t *testing.T) {
	d := newDeadBand(DefaultDeadBand)

	d.admit(100, 100, false)

	moves := [][2]float64{{101, 101}, {104.9, 95.1}, {100, 104}, {97, 97}}
	for _, m := range moves {
		if d.admit(m[0], m[1], false) {
			t.Fatalf("%v should be suppressed", m)
		}
	}

	// suppressed moves do not shift the reference
	if x, y, _ := d.last(); x != 100 || y != 100 {
		t.Fatalf("reference moved to %v,%v", x, y)
	}
}

func TestDeadBandOneAxisIsEnough(t *testing.T) {
	d := newDeadBand(DefaultDeadBand)

	d.admit(100, 100, false)

	if !d.admit(105, 100, false) {
		t.Fatal("a move of 5 in X should be admitted")
	}

	if !d.admit(105, 94, false) {
		t.Fatal("a move of 6 in Y should be admitted")
	}

	if x, y, _ := d.last(); x != 105 || y != 94 {
		t.Fatalf("unexpected reference %v,%v", x, y)
	}
}

func TestDeadBandForce(t *testing.T) {
	d := newDeadBand(DefaultDeadBand)

	d.admit(100, 100, false)

	if !d.admit(101, 101, true) {
		t.Fatal("forced sends are always admitted")
	}

	if x, y, _ := d.last(); x != 101 || y != 101 {
		t.Fatalf("forced send should update the reference, got %v,%v", x, y)
	}
}
