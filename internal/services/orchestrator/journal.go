package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/ltvlabs/vaultdesk/internal/domain"
)

const (
	txIntentKeyPrefix     = "tx_intent_"
	txIntentStatusPending = "pending"
	txIntentStatusDone    = "done"
	txIntentStatusFailed  = "failed"

	journalSegmentLimit = 1000
	journalMaxSegments  = 100
)

// txIntentRecord is one persisted transaction attempt. An intent left
// pending after a restart marks a submission whose outcome was never
// observed.
type txIntentRecord struct {
	ID     string           `json:"id"`
	Status string           `json:"status"`
	Action domain.Action    `json:"action"`
	Side   domain.TokenSide `json:"side,omitempty"`
	Amount string           `json:"amount"`
	TxHash string           `json:"tx_hash,omitempty"`
	Error  string           `json:"error,omitempty"`
	Time   time.Time        `json:"time"`
}

// Journal records transaction intents in a write-ahead log so a crash
// between signing and confirmation is visible on restart.
type Journal struct {
	mu      sync.Mutex
	wal     *gowal.Wal
	intents map[string]*txIntentRecord
}

// NewJournal opens (or creates) the WAL under dir and replays the
// existing records.
func NewJournal(dir string) (*Journal, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "tx_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init tx journal WAL")
	}

	j := &Journal{wal: wal, intents: make(map[string]*txIntentRecord)}
	for idx := uint64(1); idx <= wal.CurrentIndex(); idx++ {
		key, payload, err := wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, txIntentKeyPrefix) {
			continue
		}
		var rec txIntentRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, errors.Wrap(err, "decode tx intent")
		}
		j.intents[rec.ID] = &rec
	}
	return j, nil
}

// Prepare writes a pending intent before any signing happens.
func (j *Journal) Prepare(action domain.Action, side domain.TokenSide, amount string) (*txIntentRecord, error) {
	rec := &txIntentRecord{
		ID:     uuid.New().String(),
		Status: txIntentStatusPending,
		Action: action,
		Side:   side,
		Amount: amount,
		Time:   time.Now(),
	}
	if err := j.persist(rec); err != nil {
		return nil, err
	}

	j.mu.Lock()
	j.intents[rec.ID] = rec
	j.mu.Unlock()
	return rec, nil
}

// MarkSubmitted records the transaction hash once the node accepted it.
func (j *Journal) MarkSubmitted(rec *txIntentRecord, hash string) error {
	if rec == nil {
		return nil
	}
	rec.TxHash = hash
	return j.persist(rec)
}

// MarkDone settles the intent as confirmed.
func (j *Journal) MarkDone(rec *txIntentRecord) error {
	if rec == nil {
		return nil
	}
	rec.Status = txIntentStatusDone
	rec.Error = ""
	return j.persist(rec)
}

// MarkFailed settles the intent with the terminal error.
func (j *Journal) MarkFailed(rec *txIntentRecord, cause error) error {
	if rec == nil {
		return nil
	}
	rec.Status = txIntentStatusFailed
	if cause != nil {
		rec.Error = cause.Error()
	}
	return j.persist(rec)
}

// Pending returns intents that never settled, e.g. after a crash.
func (j *Journal) Pending() []*txIntentRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*txIntentRecord
	for _, rec := range j.intents {
		if rec.Status == txIntentStatusPending {
			out = append(out, rec)
		}
	}
	return out
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}

func (j *Journal) persist(rec *txIntentRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal tx intent")
	}
	key := fmt.Sprintf("%s%s", txIntentKeyPrefix, rec.ID)

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Write(j.wal.CurrentIndex()+1, key, payload)
}
