package relay

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/common"
	"github.com/mosaicnetworks/nodegarden/src/node"
)

func testEntries(n int) []Entry {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res := []Entry{}
	for i := 0; i < n; i++ {
		nd := node.NewNode(string(rune('a'+i%26)), float64(i), float64(-i), node.Other)
		nd.Tag = "tag"
		res = append(res, NewEntry(*nd, base.Add(time.Duration(i)*time.Second)))
	}
	return res
}

func checkEntries(t *testing.T, expected, got []Entry) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(got))
	}
	for i := range expected {
		e, g := expected[i], got[i]
		if e.DeviceID != g.DeviceID || e.X != g.X || e.Y != g.Y || e.Tag != g.Tag || !e.Received.Equal(g.Received) {
			t.Fatalf("entry %d: expected %#v, got %#v", i, e, g)
		}
	}
}

func TestInmemLog(t *testing.T) {
	log := NewInmemLog()
	entries := testEntries(5)

	for _, e := range entries {
		if err := log.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.Entries()
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, got)
}

func TestBadgerLog(t *testing.T) {
	dir, err := ioutil.TempDir("", "relay_log")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	logger := common.NewTestEntry(t, common.TestLogLevel)

	log, err := NewBadgerLog(dir, logger)
	if err != nil {
		t.Fatal(err)
	}

	// more than 10 entries to check that keys sort numerically
	entries := testEntries(12)

	for _, e := range entries[:8] {
		if err := log.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.Entries()
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries[:8], got)

	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	// reopen and check that new entries follow the stored ones
	log, err = NewBadgerLog(dir, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	if log.seq != 8 {
		t.Fatalf("sequence should resume at 8, got %d", log.seq)
	}

	for _, e := range entries[8:] {
		if err := log.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err = log.Entries()
	if err != nil {
		t.Fatal(err)
	}
	checkEntries(t, entries, got)
}
