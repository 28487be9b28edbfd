package peers

import (
	"encoding/binary"
	"time"

	"github.com/iov-one/msignode/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var banPrefix = []byte("ban:")

// banList persists peer bans. It is not safe for concurrent use.
type banList struct {
	db      *leveldb.DB
	expires map[string]time.Time
}

// openBanList opens the ban database in dir. An empty dir keeps the bans in
// memory only.
func openBanList(dir string) (*banList, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if dir == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(dir, nil)
		if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
			db, err = leveldb.RecoverFile(dir, nil)
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "open ban database")
	}
	bans, err := loadBanList(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return bans, nil
}

func loadBanList(db *leveldb.DB) (*banList, error) {
	b := &banList{db: db, expires: make(map[string]time.Time)}
	it := db.NewIterator(util.BytesPrefix(banPrefix), nil)
	defer it.Release()
	for it.Next() {
		addr := string(it.Key()[len(banPrefix):])
		if len(it.Value()) != 8 {
			return nil, errors.Wrapf(errors.ErrState, "malformed ban of %q", addr)
		}
		b.expires[addr] = time.Unix(0, int64(binary.BigEndian.Uint64(it.Value())))
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "load bans")
	}
	return b, nil
}

func banKey(addr string) []byte {
	return append(append([]byte(nil), banPrefix...), addr...)
}

// ban stores the ban of the address until the given time.
func (b *banList) ban(addr string, until time.Time) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(until.UnixNano()))
	if err := b.db.Put(banKey(addr), val, nil); err != nil {
		return errors.Wrap(err, "store ban")
	}
	b.expires[addr] = until
	return nil
}

// isBanned returns true if the address is banned at the given time. An
// expired ban is lifted.
func (b *banList) isBanned(addr string, now time.Time) (bool, error) {
	until, ok := b.expires[addr]
	if !ok {
		return false, nil
	}
	if now.Before(until) {
		return true, nil
	}
	delete(b.expires, addr)
	if err := b.db.Delete(banKey(addr), nil); err != nil {
		return false, errors.Wrap(err, "lift ban")
	}
	return false, nil
}

func (b *banList) close() error {
	return b.db.Close()
}
