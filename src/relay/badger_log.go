package relay

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

const entryPrefix = "entry"

// BadgerLog is a Log persisted in a Badger database. Entries are keyed by a
// monotonic sequence number so that iteration follows arrival order.
type BadgerLog struct {
	sync.Mutex
	db   *badger.DB
	path string
	seq  uint64
}

// NewBadgerLog opens the database in path, creating it if needed, and resumes
// the sequence after the last stored entry.
func NewBadgerLog(path string, logger *logrus.Entry) (*BadgerLog, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	log := &BadgerLog{
		db:   handle,
		path: path,
	}

	seq, err := log.dbLastSeq()
	if err != nil {
		handle.Close()
		return nil, err
	}
	log.seq = seq

	return log, nil
}

// Append implements the Log interface.
func (l *BadgerLog) Append(e Entry) error {
	val, err := encodeEntry(e)
	if err != nil {
		return err
	}

	l.Lock()
	defer l.Unlock()

	key := entryKey(l.seq + 1)

	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return err
	}

	l.seq++

	return nil
}

// Entries implements the Log interface.
func (l *BadgerLog) Entries() ([]Entry, error) {
	res := []Entry{}
	prefix := []byte(entryPrefix + "_")

	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			e, err := decodeEntry(val)
			if err != nil {
				return err
			}

			res = append(res, e)
		}

		return nil
	})

	return res, err
}

// Close implements the Log interface.
func (l *BadgerLog) Close() error {
	return l.db.Close()
}

func (l *BadgerLog) dbLastSeq() (uint64, error) {
	var last uint64
	prefix := []byte(entryPrefix + "_")

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			seq, err := strconv.ParseUint(strings.TrimPrefix(key, entryPrefix+"_"), 10, 64)
			if err != nil {
				return fmt.Errorf("bad log key %q: %v", key, err)
			}
			last = seq
		}

		return nil
	})

	return last, err
}

// entryKey zero-pads the sequence so that keys sort numerically.
func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", entryPrefix, seq))
}

func encodeEntry(e Entry) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(&e); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry

	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(&e); err != nil {
		return Entry{}, err
	}

	return e, nil
}
