package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/models"
)

func sampleProgress() *models.Progress {
	p := models.NewProgress()
	p.ProcessedChunks = 12
	p.Entities.Add(models.People, "John")
	p.Entities.Add(models.People, "Sarah")
	p.Entities.Add(models.Companies, "Acme Corp")
	return p
}

// exerciseStore runs the shared contract every backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if got.ProcessedChunks != 0 || got.Entities.Total() != 0 {
		t.Fatalf("empty store returned %+v", got)
	}
	if has, _ := HasProgress(ctx, s); has {
		t.Error("empty store should have no progress")
	}

	want := sampleProgress()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ProcessedChunks != 12 || !got.Entities.Equal(want.Entities) {
		t.Errorf("round trip: got %d %v", got.ProcessedChunks, got.Entities.Sorted(models.People))
	}

	want.ProcessedChunks = 20
	want.Entities.Add(models.Companies, "Globex")
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Load(ctx)
	if got.ProcessedChunks != 20 || got.Entities.Len(models.Companies) != 2 {
		t.Errorf("overwrite not visible: %d", got.ProcessedChunks)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = s.Load(ctx)
	if got.ProcessedChunks != 0 || got.Entities.Total() != 0 {
		t.Errorf("clear left %+v", got)
	}
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_savesAreCopies(t *testing.T) {
	m := NewMemory()
	p := sampleProgress()
	_ = m.Save(context.Background(), p)
	p.Entities.Add(models.People, "Later")
	got, _ := m.Load(context.Background())
	if got.Entities.Has(models.People, "Later") {
		t.Error("mutating the saved value changed the store")
	}
	if m.Saves() != 1 {
		t.Errorf("saves = %d", m.Saves())
	}
}

func TestFile(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nested", "doc.json"))
	defer f.Close()
	exerciseStore(t, f)
}

func TestFile_format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	f := NewFile(path)
	defer f.Close()
	if err := f.Save(context.Background(), sampleProgress()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back models.Progress
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("file is not a checkpoint document: %v", err)
	}
	if back.ProcessedChunks != 12 {
		t.Errorf("processed = %d", back.ProcessedChunks)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFile_corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	f := NewFile(path)
	defer f.Close()
	if _, err := f.Load(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

func TestSQLite(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cp.db"), "doc-a")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLite_keysAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.db")
	a, err := NewSQLite(path, "doc-a")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewSQLite(path, "doc-b")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := context.Background()
	if err := a.Save(ctx, sampleProgress()); err != nil {
		t.Fatal(err)
	}
	got, _ := b.Load(ctx)
	if got.ProcessedChunks != 0 {
		t.Errorf("doc-b saw doc-a progress: %d", got.ProcessedChunks)
	}
	keys, err := a.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "doc-a" {
		t.Errorf("keys = %v", keys)
	}
}

func TestRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	exerciseStore(t, NewRedisWithClient(client, "kakusu:checkpoint:doc-a", 0))
}

func TestRedis_ttl(t *testing.T) {
	srv := miniredis.RunT(t)
	r := NewRedis(srv.Addr(), "cp:doc", time.Minute)
	defer r.Close()
	ctx := context.Background()
	if err := r.Save(ctx, sampleProgress()); err != nil {
		t.Fatal(err)
	}
	if ttl := srv.TTL("cp:doc"); ttl != time.Minute {
		t.Errorf("ttl = %v", ttl)
	}
	srv.FastForward(2 * time.Minute)
	got, err := r.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProcessedChunks != 0 {
		t.Error("expired checkpoint should load as zero progress")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.CheckpointConfig
		key     string
		wantErr bool
	}{
		{"file", config.CheckpointConfig{Backend: config.BackendFile, Dir: dir}, "doc-1", false},
		{"sqlite", config.CheckpointConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "c.db")}, "doc-1", false},
		{"memory", config.CheckpointConfig{Backend: config.BackendMemory}, "doc-1", false},
		{"unknown", config.CheckpointConfig{Backend: "etcd"}, "doc-1", true},
		{"bad key", config.CheckpointConfig{Backend: config.BackendMemory}, "../x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(&tt.cfg, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}

func TestOpen_fileUsesKey(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(&config.CheckpointConfig{Backend: config.BackendFile, Dir: dir}, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if f, ok := s.(*File); !ok || f.Path() != filepath.Join(dir, "doc-1.json") {
		t.Errorf("unexpected store %#v", s)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0600)
	_ = os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	_ = os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 5), 0600)
	n, err := DiskUsageBytes(dir, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 15 {
		t.Errorf("usage = %d, want 15", n)
	}
}
