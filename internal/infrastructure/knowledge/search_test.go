package knowledge

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/kvolkov/docsense/internal/core/domain"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	store, _ := openTestStore(t)
	ctx := context.Background()

	docs := []struct {
		filename string
		text     string
	}{
		{"invoice_march.png", "invoice total 120 euro for consulting services in march"},
		{"recipe.jpg", "pancake recipe with flour eggs and milk"},
		{"contract.png", "consulting contract between parties with invoice schedule"},
	}
	for _, d := range docs {
		if _, err := store.Create(ctx, blocksOf(d.text), d.filename, domain.SourceUpload, 0); err != nil {
			t.Fatalf("seed %s: %v", d.filename, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	return store
}

func TestSearchExcludesZeroOverlapDocuments(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "pancake", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Filename != "recipe.jpg" {
		t.Fatalf("expected recipe.jpg, got %s", results[0].Filename)
	}
}

func TestSearchRanksRarerTermsHigher(t *testing.T) {
	store := seedStore(t)

	// "invoice" appears in two documents, "march" in one. The document
	// carrying both must outrank the one carrying only "invoice".
	results, err := store.Search(context.Background(), "invoice march", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Filename != "invoice_march.png" {
		t.Fatalf("expected invoice_march.png first, got %s", results[0].Filename)
	}
}

func TestSearchMatchesFilename(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "recipe", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || results[0].Filename != "recipe.jpg" {
		t.Fatalf("expected filename match to rank recipe.jpg first, got %+v", results)
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	first, err := store.Search(ctx, "consulting invoice", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := store.Search(ctx, "consulting invoice", 10)
		if err != nil {
			t.Fatalf("repeat search: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("expected identical results, run %d differed", i)
		}
	}
}

func TestSearchScoresAreBitIdenticalAcrossCalls(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	// Many unique terms so the per-document score is a long float sum;
	// the addend order must not vary between calls.
	query := "invoice consulting contract march services schedule total parties"
	first, err := store.Search(ctx, query, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := store.Search(ctx, query, 10)
		if err != nil {
			t.Fatalf("repeat search: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("result count drifted on run %d: %d vs %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Score != first[j].Score {
				t.Fatalf("score drifted on run %d: %v vs %v", i, again[j].Score, first[j].Score)
			}
		}
	}
}

func TestSearchRespectsTopK(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "invoice consulting contract recipe", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected topK to cap results at 1, got %d", len(results))
	}
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "   !!! ", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for tokenless query, got %d", len(results))
	}
}

func TestSearchBreaksTiesByRecency(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	older, err := store.Create(ctx, blocksOf("duplicate content"), "old.png", domain.SourceUpload, 0)
	if err != nil {
		t.Fatalf("create older: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	newer, err := store.Create(ctx, blocksOf("duplicate content"), "new.png", domain.SourceUpload, 0)
	if err != nil {
		t.Fatalf("create newer: %v", err)
	}

	results, err := store.Search(ctx, "duplicate", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != newer.ID || results[1].ID != older.ID {
		t.Fatalf("expected newer document first on tie")
	}
}

func TestTokenizeAlphaNum(t *testing.T) {
	got := tokenizeAlphaNum("Invoice #120, March-2024 (final)")
	want := []string{"invoice", "120", "march", "2024", "final"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenize mismatch: got %v want %v", got, want)
	}
}
