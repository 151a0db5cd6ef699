package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var errReadOnly = errors.New("ledger is read-only")

const (
	configKey         = "config"
	escrowPrefix      = "escrow/"
	requirementPrefix = "requirements/"
	balancePrefix     = "balance/"
)

// LevelDBStorage persists program state in a leveldb database. Each Update
// runs inside a leveldb transaction.
type LevelDBStorage struct {
	db *leveldb.DB
}

// OpenLevelDBStorage opens or creates the database at path
func OpenLevelDBStorage(path string) (*LevelDBStorage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open escrow ledger at %s: %w", path, err)
	}
	return &LevelDBStorage{db: db}, nil
}

// Close closes the underlying database
func (s *LevelDBStorage) Close() error {
	return s.db.Close()
}

func (s *LevelDBStorage) Update(ctx context.Context, fn func(Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("failed to open ledger transaction: %w", err)
	}
	if err := fn(&levelLedger{reader: tr, writer: tr}); err != nil {
		tr.Discard()
		return err
	}
	if err := tr.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

func (s *LevelDBStorage) View(ctx context.Context, fn func(Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("failed to open ledger snapshot: %w", err)
	}
	defer snap.Release()
	return fn(&levelLedger{reader: snap})
}

func (s *LevelDBStorage) ListEscrows(ctx context.Context) ([]Escrow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter := s.db.NewIterator(util.BytesPrefix([]byte(escrowPrefix)), nil)
	defer iter.Release()

	var out []Escrow
	for iter.Next() {
		var e Escrow
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("corrupt escrow record %s: %w", iter.Key(), err)
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// Mint credits an account with tokens
func (s *LevelDBStorage) Mint(ctx context.Context, token, account Address, amount uint64) error {
	return s.Update(ctx, func(l Ledger) error {
		ll := l.(*levelLedger)
		bal, err := ll.balance(token, account)
		if err != nil {
			return err
		}
		if math.MaxUint64-bal < amount {
			return ErrInvalidAmount
		}
		return ll.put(balanceKeyBytes(token, account), bal+amount)
	})
}

// Balance returns the token balance of an account
func (s *LevelDBStorage) Balance(ctx context.Context, token, account Address) (uint64, error) {
	var bal uint64
	err := s.View(ctx, func(l Ledger) error {
		var err error
		bal, err = l.(*levelLedger).balance(token, account)
		return err
	})
	return bal, err
}

type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

type levelWriter interface {
	Put(key, value []byte, wo *opt.WriteOptions) error
}

type levelLedger struct {
	reader levelReader
	writer levelWriter
}

func balanceKeyBytes(token, account Address) []byte {
	return []byte(balancePrefix + token.String() + "/" + account.String())
}

func (l *levelLedger) get(key []byte, v interface{}) error {
	data, err := l.reader.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corrupt record %s: %w", key, err)
	}
	return nil
}

func (l *levelLedger) put(key []byte, v interface{}) error {
	if l.writer == nil {
		return errReadOnly
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.writer.Put(key, data, nil)
}

func (l *levelLedger) balance(token, account Address) (uint64, error) {
	var bal uint64
	err := l.get(balanceKeyBytes(token, account), &bal)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return bal, err
}

func (l *levelLedger) LoadConfig() (*ProgramConfig, error) {
	var cfg ProgramConfig
	if err := l.get([]byte(configKey), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *levelLedger) StoreConfig(cfg *ProgramConfig) error {
	return l.put([]byte(configKey), cfg)
}

func (l *levelLedger) LoadEscrow(intentID IntentID) (*Escrow, error) {
	var e Escrow
	if err := l.get([]byte(escrowPrefix+intentID.String()), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (l *levelLedger) StoreEscrow(e *Escrow) error {
	return l.put([]byte(escrowPrefix+e.IntentID.String()), e)
}

func (l *levelLedger) LoadRequirements(intentID IntentID) (*Requirements, error) {
	var r Requirements
	if err := l.get([]byte(requirementPrefix+intentID.String()), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (l *levelLedger) StoreRequirements(r *Requirements) error {
	return l.put([]byte(requirementPrefix+r.IntentID.String()), r)
}

func (l *levelLedger) Transfer(token, from, to Address, amount uint64) error {
	if l.writer == nil {
		return errReadOnly
	}
	src, err := l.balance(token, from)
	if err != nil {
		return err
	}
	if src < amount {
		return ErrInsufficientFunds
	}
	if err := l.put(balanceKeyBytes(token, from), src-amount); err != nil {
		return err
	}
	// read after the debit so a self-transfer is a no-op
	dst, err := l.balance(token, to)
	if err != nil {
		return err
	}
	if math.MaxUint64-dst < amount {
		return ErrInvalidAmount
	}
	return l.put(balanceKeyBytes(token, to), dst+amount)
}
