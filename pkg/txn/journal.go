package txn

import "encoding/binary"

// The recovery journal is a small, fixed-capacity table of pending
// dirty-page originals, written durably before the caller's write lands
// so that a process crash between mark_dirty and commit can be undone
// on the next Open. Grounded on the teacher's pkg/wal redo-log idea
// (persist before you mutate), adapted from an append-only log of
// entries to a fixed slot table sized for this store's small bound on
// concurrent transactions.
//
// Only dirty ranges up to journalInlineSize bytes are journaled; this
// favors the common case (small header/field-sized writes) and is a
// deliberate, documented simplification — see DESIGN.md. Larger writes
// still get full protection against Abort (the pre-image lives in the
// in-memory dirty list) but not against a hard crash mid-transaction.
const (
	// JournalCapacity bounds how many pending dirty-page originals can
	// be durably staged across all in-flight transactions at once.
	JournalCapacity = 256

	journalInlineSize = 256
	journalEntrySize  = 8 + 8 + 4 + journalInlineSize // txnID, offset, size, inline original
	journalHeaderSize = 16

	// JournalTableSize is the fixed on-region footprint of the journal.
	JournalTableSize = journalHeaderSize + JournalCapacity*journalEntrySize
)

type journalTable []byte

func initJournalTable(j journalTable) {
	for i := range j {
		j[i] = 0
	}
}

func slotOffset(i int) int { return journalHeaderSize + i*journalEntrySize }

func (j journalTable) txnID(i int) uint64 {
	return binary.LittleEndian.Uint64(j[slotOffset(i):])
}

func (j journalTable) setTxnID(i int, v uint64) {
	binary.LittleEndian.PutUint64(j[slotOffset(i):], v)
}

func (j journalTable) offset(i int) uint64 {
	return binary.LittleEndian.Uint64(j[slotOffset(i)+8:])
}

func (j journalTable) setOffset(i int, v uint64) {
	binary.LittleEndian.PutUint64(j[slotOffset(i)+8:], v)
}

func (j journalTable) size(i int) uint32 {
	return binary.LittleEndian.Uint32(j[slotOffset(i)+16:])
}

func (j journalTable) setSize(i int, v uint32) {
	binary.LittleEndian.PutUint32(j[slotOffset(i)+16:], v)
}

func (j journalTable) original(i int) []byte {
	start := slotOffset(i) + 20
	return j[start : start+journalInlineSize]
}

// clear marks slot i free.
func (j journalTable) clear(i int) {
	j.setTxnID(i, 0)
	j.setOffset(i, 0)
	j.setSize(i, 0)
}
