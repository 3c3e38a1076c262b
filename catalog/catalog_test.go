package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/seliria/questfile/pkg/bytecode"
	"github.com/seliria/questfile/pkg/prs"
	"github.com/seliria/questfile/pkg/quest"
)

func testCodec() *quest.Codec {
	return &quest.Codec{Compressor: prs.Codec{}}
}

// writeQuestFile packs a minimal quest archive into dir and returns its
// path.
func writeQuestFile(t *testing.T, dir, name string, questNo uint16, questName string, episodeArg int32) string {
	t.Helper()
	source := fmt.Sprintf("0:\n    set_episode %d\n    ret\n", episodeArg)
	result := bytecode.Assemble(source)
	if err := result.Err(); err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	q := &quest.Quest{
		QuestNo:  questNo,
		ID:       uint32(questNo),
		Name:     questName,
		Episode:  quest.EpisodeI,
		Segments: result.Segments,
	}
	data, err := testCodec().EncodeQuest(q, name)
	if err != nil {
		t.Fatalf("EncodeQuest() error: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCatalogAddAndList(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	alpha := writeQuestFile(t, dir, "alpha.qst", 2, "Alpha", 0)
	beta := writeQuestFile(t, dir, "beta.qst", 1, "Beta", 1)

	q, warnings, err := cat.Add(alpha)
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Add() warnings = %q, want none", warnings)
	}
	if q.Name != "Alpha" {
		t.Errorf("Name = %q, want Alpha", q.Name)
	}
	if _, _, err := cat.Add(beta); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	entries, err := cat.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].Name != "Beta" || entries[1].Name != "Alpha" {
		t.Errorf("List() order = %q, %q, want Beta, Alpha", entries[0].Name, entries[1].Name)
	}
	if entries[0].Episode != quest.EpisodeII {
		t.Errorf("Beta episode = %v, want %v", entries[0].Episode, quest.EpisodeII)
	}
	if entries[1].QuestNo != 2 || entries[1].ID != 2 {
		t.Errorf("Alpha numbers = (%d, %d), want (2, 2)", entries[1].QuestNo, entries[1].ID)
	}
	if entries[1].ObjectCount != 0 || entries[1].NpcCount != 0 {
		t.Errorf("Alpha counts = (%d, %d), want (0, 0)", entries[1].ObjectCount, entries[1].NpcCount)
	}
}

func TestCatalogAddReplaces(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	path := writeQuestFile(t, dir, "alpha.qst", 2, "Alpha", 0)
	for i := 0; i < 2; i++ {
		if _, _, err := cat.Add(path); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}

	entries, err := cat.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() returned %d entries, want 1", len(entries))
	}
}

func TestCatalogListEpisode(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	alpha := writeQuestFile(t, dir, "alpha.qst", 2, "Alpha", 0)
	beta := writeQuestFile(t, dir, "beta.qst", 1, "Beta", 1)
	if _, _, err := cat.Add(alpha); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cat.Add(beta); err != nil {
		t.Fatal(err)
	}

	entries, err := cat.ListEpisode(quest.EpisodeII)
	if err != nil {
		t.Fatalf("ListEpisode() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Beta" {
		t.Errorf("ListEpisode(II) = %+v, want only Beta", entries)
	}
}

func TestCatalogFind(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	path := writeQuestFile(t, dir, "alpha.qst", 2, "Alpha", 0)
	if _, _, err := cat.Add(path); err != nil {
		t.Fatal(err)
	}

	entry, err := cat.Find(path)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if entry.Name != "Alpha" || entry.QuestNo != 2 {
		t.Errorf("Find() = %+v, want Alpha quest 2", entry)
	}

	if _, err := cat.Find(filepath.Join(dir, "missing.qst")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCatalogSnapshot(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	path := writeQuestFile(t, dir, "beta.qst", 1, "Beta", 1)
	if _, _, err := cat.Add(path); err != nil {
		t.Fatal(err)
	}

	snap, err := cat.Snapshot(path)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if snap.Name != "Beta" {
		t.Errorf("snapshot name = %q, want Beta", snap.Name)
	}
	if snap.Episode != uint8(quest.EpisodeII) {
		t.Errorf("snapshot episode = %d, want %d", snap.Episode, uint8(quest.EpisodeII))
	}

	if _, err := cat.Snapshot("missing.qst"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Snapshot(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCatalogQuestCache(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")
	cat, err := Open(dbPath, testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	path := writeQuestFile(t, dir, "alpha.qst", 2, "Alpha", 0)
	added, _, err := cat.Add(path)
	if err != nil {
		t.Fatal(err)
	}

	cached, err := cat.Quest(path)
	if err != nil {
		t.Fatalf("Quest() error: %v", err)
	}
	if cached != added {
		t.Error("Quest() did not serve the cached decode")
	}

	// A fresh catalog has a cold cache and must decode from disk.
	cat2, err := Open(dbPath, testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat2.Close()
	cold, err := cat2.Quest(path)
	if err != nil {
		t.Fatalf("Quest() error: %v", err)
	}
	if cold.Name != "Alpha" {
		t.Errorf("Name = %q, want Alpha", cold.Name)
	}
}

func TestCatalogRemove(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	path := writeQuestFile(t, dir, "alpha.qst", 2, "Alpha", 0)
	if _, _, err := cat.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := cat.Remove(path); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := cat.Find(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find() after Remove() error = %v, want ErrNotFound", err)
	}
}

func TestCatalogAddMissingFile(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(filepath.Join(dir, "catalog.db"), testCodec())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer cat.Close()

	if _, _, err := cat.Add(filepath.Join(dir, "missing.qst")); err == nil {
		t.Error("Add() accepted a missing file")
	}
}
