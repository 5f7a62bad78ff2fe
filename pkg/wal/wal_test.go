package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nainya/parajoin/pkg/document"
	"github.com/nainya/parajoin/pkg/join"
)

func setupTestWAL(t *testing.T) (*WAL, string) {
	path := filepath.Join(t.TempDir(), "journal", "book.wal")
	w := &WAL{Path: path}
	if err := w.Open(); err != nil {
		t.Fatalf("Failed to open WAL: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
}

func testDoc() *document.Document {
	doc := &document.Document{}
	pg := doc.AddPage("1")
	for i, text := range []string{"Hello", " World", "!"} {
		doc.AddParagraph(pg, document.Paragraph{
			Key:        string(rune('a' + i)),
			PageNumber: 1,
			Order:      i,
			BlockTag:   "p",
			SrcText:    text,
			SrcJoined:  text,
		})
	}
	return doc
}

func TestEntryEncodeDecode(t *testing.T) {
	entry := ToggleEntry(document.Key{Page: "3", Para: "3_1"}, true, join.Options{Separator: " ", Reset: join.PreserveReviewed})
	entry.LSN = 42
	entry.Timestamp = time.Now()

	decoded, err := DecodeEntry(entry.Encode())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.LSN != 42 || decoded.OpType != OpToggle {
		t.Errorf("header mismatch: %s", decoded)
	}
	if !decoded.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("timestamp mismatch: got %v, want %v", decoded.Timestamp, entry.Timestamp)
	}

	key, err := decoded.ParagraphKey()
	if err != nil || key.Page != "3" || key.Para != "3_1" {
		t.Errorf("key mismatch: %v %v", key, err)
	}
	on, opts, err := decoded.Params()
	if err != nil || !on || opts.Separator != " " || opts.Reset != join.PreserveReviewed {
		t.Errorf("params mismatch: %v %+v %v", on, opts, err)
	}
}

func TestDecodeCorrupted(t *testing.T) {
	entry := AlignEntry()
	data := entry.Encode()
	data[EntryHeaderSize-1] ^= 0xFF

	if _, err := DecodeEntry(data); err != ErrCorrupted {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
	if _, err := DecodeEntry(data[:10]); err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestAppendAndReopen(t *testing.T) {
	w, path := setupTestWAL(t)

	for i := 0; i < 3; i++ {
		if _, err := w.Append(RebuildEntry(join.Options{})); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// simulate a crash in the middle of an append
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte{1, 2, 3})
	f.Close()

	w2 := &WAL{Path: path}
	if err := w2.Open(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer w2.Close()

	entries, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if next := w2.NextLSN(); next != 4 {
		t.Errorf("LSN not restored: next=%d, want 4", next)
	}
	if w2.Size() != int64(3*entries[0].Size()) {
		t.Errorf("torn tail not truncated: size=%d", w2.Size())
	}
}

func TestRecoverPendingEdits(t *testing.T) {
	w, _ := setupTestWAL(t)

	// saved state: b joined to a
	if _, err := w.Append(ToggleEntry(document.Key{Page: "1", Para: "b"}, true, join.Options{})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	// edit journaled but never saved
	if _, err := w.Append(ToggleEntry(document.Key{Page: "1", Para: "c"}, true, join.Options{})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	doc := testDoc()
	join.ApplyToggle(doc, document.Key{Page: "1", Para: "b"}, true, join.Options{})

	recovered, stats, err := NewRecovery(w.Path).Recover(doc)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if stats.TotalEntries != 3 || stats.ReplayedEdits != 1 || stats.LastCheckpointLSN != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if got := recovered.Paragraphs[0].SrcJoined; got != "Hello World!" {
		t.Errorf("joined text %q, want %q", got, "Hello World!")
	}
	if doc.Paragraphs[2].Join {
		t.Errorf("Recover modified the loaded document")
	}
}

func TestRecoverFailureKeepsDocument(t *testing.T) {
	w, _ := setupTestWAL(t)

	// first edit replays cleanly, second names a paragraph the book lacks
	if _, err := w.Append(ToggleEntry(document.Key{Page: "1", Para: "b"}, true, join.Options{})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := w.Append(ToggleEntry(document.Key{Page: "9", Para: "z"}, true, join.Options{})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	doc := testDoc()
	before := doc.Clone()
	recovered, _, err := NewRecovery(w.Path).Recover(doc)
	if err == nil {
		t.Fatalf("expected replay error")
	}
	if recovered != doc {
		t.Errorf("failed recovery should return the loaded document")
	}
	for i := range doc.Paragraphs {
		if doc.Paragraphs[i].Join != before.Paragraphs[i].Join || doc.Paragraphs[i].SrcJoined != before.Paragraphs[i].SrcJoined {
			t.Errorf("paragraph %d changed by partial replay", i)
		}
	}
}

func TestRecoverMissingJournal(t *testing.T) {
	doc := testDoc()
	recovered, stats, err := NewRecovery(filepath.Join(t.TempDir(), "none.wal")).Recover(doc)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if recovered != doc || stats.ReplayedEdits != 0 {
		t.Errorf("missing journal should leave the document as loaded")
	}
}

func TestReplayUnknownParagraph(t *testing.T) {
	entry := ToggleEntry(document.Key{Page: "9", Para: "z"}, true, join.Options{})
	if _, err := Replay(testDoc(), []*Entry{&entry}); err == nil {
		t.Errorf("expected replay error for unknown paragraph")
	}
}

func TestCheckpointCompacts(t *testing.T) {
	w, _ := setupTestWAL(t)

	big := Entry{OpType: OpAlign, Value: make([]byte, MaxJournalSize/2)}
	for i := 0; i < 2; i++ {
		if _, err := w.Append(big); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := w.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	entries, err := ReadAll(w.Path)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 1 || entries[0].OpType != OpCheckpoint {
		t.Errorf("expected journal compacted to one checkpoint, got %d entries", len(entries))
	}
}
