package transaction

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJournal_Lifecycle(t *testing.T) {
	dir := t.TempDir()

	j := NewJournal("yt-dlp")
	if j.ID == "" || j.State != StatePending {
		t.Fatalf("NewJournal() = %+v", j)
	}

	j.Begin("brew")
	j.Finish(StateFailed, errors.New("brew not installed"))
	j.Begin("release")
	j.TrackTemp(filepath.Join(dir, "yt-dlp.part"))
	j.TrackTemp(filepath.Join(dir, "yt-dlp.part"))
	if err := j.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadJournal(j.Path())
	if err != nil {
		t.Fatalf("LoadJournal() error = %v", err)
	}
	if loaded.Dependency != "yt-dlp" || len(loaded.Steps) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Steps[0].LastError != "brew not installed" || loaded.Steps[1].State != StateInProgress {
		t.Errorf("steps = %+v", loaded.Steps)
	}
	if len(loaded.TempFiles) != 1 {
		t.Errorf("TempFiles = %v, want one deduplicated entry", loaded.TempFiles)
	}

	j.Finish(StateCompleted, nil)
	if err := j.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if _, err := os.Stat(loaded.Path()); !os.IsNotExist(err) {
		t.Error("journal should be removed on completion")
	}
}

func TestInterrupted(t *testing.T) {
	dir := t.TempDir()

	if got, err := Interrupted(filepath.Join(dir, "missing")); err != nil || got != nil {
		t.Errorf("Interrupted(missing) = %v, %v", got, err)
	}

	older := NewJournal("ffmpeg")
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := NewJournal("whisperModel")
	for _, j := range []*Journal{newer, older} {
		if err := j.Save(dir); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, journalPrefix+"broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "unrelated.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Interrupted(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Dependency != "ffmpeg" || got[1].Dependency != "whisperModel" {
		t.Errorf("Interrupted() = %+v", got)
	}
}

func TestJournal_Discard(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "ggml-base.bin.part")
	if err := os.WriteFile(partial, []byte("half"), 0o644); err != nil {
		t.Fatal(err)
	}

	j := NewJournal("whisperModel")
	j.TrackTemp(partial)
	j.TrackTemp(filepath.Join(dir, "never-created.part"))
	if err := j.Save(dir); err != nil {
		t.Fatal(err)
	}
	journalPath := j.Path()

	if err := j.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	for _, p := range []string{partial, journalPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", p)
		}
	}
}

func TestJournal_Adopt(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "yt-dlp.part")
	if err := os.WriteFile(partial, []byte("half"), 0o644); err != nil {
		t.Fatal(err)
	}

	prev := NewJournal("yt-dlp")
	prev.Begin("release")
	prev.TrackTemp(partial)
	if err := prev.Save(dir); err != nil {
		t.Fatal(err)
	}
	prevPath := prev.Path()

	next := NewJournal("yt-dlp")
	if err := next.Adopt(prev); err != nil {
		t.Fatalf("Adopt() error = %v", err)
	}
	if _, err := os.Stat(prevPath); !os.IsNotExist(err) {
		t.Error("adopted journal file should be removed")
	}
	if len(next.TempFiles) != 1 || next.TempFiles[0] != partial {
		t.Errorf("TempFiles = %v, want [%s]", next.TempFiles, partial)
	}
	if _, err := os.Stat(partial); err != nil {
		t.Errorf("partial download removed by Adopt: %v", err)
	}

	if err := next.Save(dir); err != nil {
		t.Fatal(err)
	}
	if err := next.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Error("leftover partial should be removed on completion")
	}
	if got, err := Interrupted(dir); err != nil || len(got) != 0 {
		t.Errorf("Interrupted() = %v, %v, want none", got, err)
	}
}
