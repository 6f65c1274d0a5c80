package commands

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/nodegarden/src/common"
	"github.com/mosaicnetworks/nodegarden/src/relay"
)

func TestOpenLogWithoutStore(t *testing.T) {
	conf := NewDefaultCLIConfig()

	log, err := openLog(conf, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	if log != nil {
		t.Fatalf("a relay without --store should not record, got %T", log)
	}
}

func TestOpenLogWithStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "relay_cmd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	conf := NewDefaultCLIConfig()
	conf.Store = true
	conf.DBDir = filepath.Join(dir, DefaultBadgerDir)

	log, err := openLog(conf, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	if _, ok := log.(*relay.BadgerLog); !ok {
		t.Fatalf("expected a badger log, got %T", log)
	}
}
