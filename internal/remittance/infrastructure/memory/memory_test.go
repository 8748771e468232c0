package memory

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	remittance "pix-remittance/internal/remittance/domain"
)

func TestSequenceCounter_ConcurrentNextIsGapFree(t *testing.T) {
	counter := NewSequenceCounter(5)
	const workers, per = 4, 25

	seen := make(chan int, workers*per)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				v, err := counter.Next(context.Background())
				if err != nil {
					t.Errorf("next: %v", err)
					return
				}
				seen <- v
			}
		}()
	}
	wg.Wait()
	close(seen)

	got := make(map[int]bool)
	for v := range seen {
		if got[v] {
			t.Fatalf("duplicate sequence %d", v)
		}
		got[v] = true
	}
	for v := 6; v <= 5+workers*per; v++ {
		if !got[v] {
			t.Fatalf("missing sequence %d", v)
		}
	}
	if counter.Current() != 5+workers*per {
		t.Fatalf("current = %d", counter.Current())
	}
}

func TestSequenceCounter_NegativeStart(t *testing.T) {
	counter := NewSequenceCounter(-3)
	v, _ := counter.Next(context.Background())
	if v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
}

func TestArchive_PutGet(t *testing.T) {
	archive := NewArchive()
	content := []byte("line\r\n")
	if _, err := archive.Put("t/REM000001.txt", content); err != nil {
		t.Fatalf("put: %v", err)
	}
	content[0] = 'X'

	got, err := archive.Get("t/REM000001.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "line\r\n" {
		t.Fatalf("stored content mutated: %q", got)
	}
	if _, err := archive.Get("missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := archive.Put("t/REM000001.txt", []byte("other")); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist on overwrite, got %v", err)
	}
	if _, err := archive.Put("", content); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestRemittanceRepository_SaveStoresCopy(t *testing.T) {
	repo := NewRemittanceRepository()
	rem := &remittance.Remittance{
		ID:          "rem-1",
		TenantID:    "t",
		Sequence:    3,
		Diagnostics: remittance.Diagnostics{{Row: 1, Field: remittance.FieldAmount}},
	}
	if err := repo.Save(context.Background(), rem); err != nil {
		t.Fatalf("save: %v", err)
	}
	rem.Sequence = 99
	rem.Diagnostics[0].Field = remittance.FieldKey

	stored, err := repo.Get(context.Background(), "rem-1")
	if err != nil || stored == nil {
		t.Fatalf("get: %v %v", stored, err)
	}
	if stored.Sequence != 3 || stored.Diagnostics[0].Field != remittance.FieldAmount {
		t.Fatalf("stored remittance changed with caller: %+v", stored)
	}
	if err := repo.Save(context.Background(), nil); !errors.Is(err, remittance.ErrNilRemittance) {
		t.Fatalf("expected ErrNilRemittance, got %v", err)
	}
	if missing, err := repo.Get(context.Background(), "missing"); err != nil || missing != nil {
		t.Fatalf("expected nil for missing id, got %v %v", missing, err)
	}
}
