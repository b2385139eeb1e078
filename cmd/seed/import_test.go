package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ghuser/secondchance/pkg/database"
	"github.com/ghuser/secondchance/pkg/logger"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/memory"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/sqlite"
)

func TestImportItems(t *testing.T) {
	repo := memory.NewItemRepository()
	now := time.Unix(1700000000, 0)

	input := `[
		{"id":"5","name":"Bookshelf","date_added":1690000000},
		{"name":"Lamp","_id":"abc"},
		{"id":7,"name":"Rug"}
	]`

	res, err := importItems(context.Background(), repo, strings.NewReader(input), importOptions{format: "json", now: now})
	if err != nil {
		t.Fatalf("importItems: %v", err)
	}
	if res.imported != 3 {
		t.Fatalf("imported %d, want 3", res.imported)
	}

	shelf, err := repo.FindByID(context.Background(), "5")
	if err != nil {
		t.Fatalf("FindByID(5): %v", err)
	}
	if shelf["date_added"] != int64(1690000000) {
		t.Errorf("date_added = %v", shelf["date_added"])
	}

	lamp, err := repo.FindByID(context.Background(), "6")
	if err != nil {
		t.Fatalf("lamp should take the id after the largest stored one: %v", err)
	}
	if lamp["_id"] == "abc" {
		t.Error("imported _id must be replaced")
	}
	if lamp["date_added"] != now.Unix() {
		t.Errorf("date_added = %v, want %d", lamp["date_added"], now.Unix())
	}

	if _, err := repo.FindByID(context.Background(), "7"); err != nil {
		t.Fatalf("numeric id not normalised: %v", err)
	}

	id, _ := repo.NextID(context.Background())
	if id != "8" {
		t.Errorf("next id = %s, want 8", id)
	}
}

func TestImportItems_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an array", `{"id":"1"}`},
		{"non-numeric id", `[{"id":"abc"}]`},
		{"duplicate id", `[{"id":"1"},{"id":"1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewItemRepository()
			opts := importOptions{format: "json", now: time.Now()}
			if _, err := importItems(context.Background(), repo, strings.NewReader(tt.input), opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestImportItems_YAML(t *testing.T) {
	repo := memory.NewItemRepository()
	now := time.Unix(1700000000, 0)

	input := `
- id: 3
  name: Armchair
  category: Living
  age_days: 400
  date_added: 1690000000
- name: Kettle
  tags: [kitchen, steel]
`
	res, err := importItems(context.Background(), repo, strings.NewReader(input), importOptions{format: "yaml", now: now})
	if err != nil {
		t.Fatalf("importItems: %v", err)
	}
	if res.imported != 2 {
		t.Fatalf("imported %d, want 2", res.imported)
	}

	chair, err := repo.FindByID(context.Background(), "3")
	if err != nil {
		t.Fatalf("FindByID(3): %v", err)
	}
	if chair["name"] != "Armchair" || chair["date_added"] != int64(1690000000) {
		t.Errorf("unexpected document %v", chair)
	}

	kettle, err := repo.FindByID(context.Background(), "4")
	if err != nil {
		t.Fatalf("FindByID(4): %v", err)
	}
	if kettle["date_added"] != now.Unix() {
		t.Errorf("date_added = %v, want %d", kettle["date_added"], now.Unix())
	}
}

func TestImportItems_ExistingIDsOnSQLite(t *testing.T) {
	tests := []struct {
		name         string
		skipExisting bool
		wantErr      bool
		want         importResult
	}{
		{name: "fail on duplicate", wantErr: true, want: importResult{imported: 2}},
		{name: "skip duplicate", skipExisting: true, want: importResult{imported: 2, skipped: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db, err := database.NewSQLite(ctx, ":memory:", logger.Discard())
			if err != nil {
				t.Fatalf("NewSQLite: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			repo, err := sqlite.NewItemRepository(ctx, db)
			if err != nil {
				t.Fatalf("NewItemRepository: %v", err)
			}

			input := `[{"id":"1","name":"Desk"},{"id":"2"},{"id":"1","name":"Copy"}]`
			res, err := importItems(ctx, repo, strings.NewReader(input), importOptions{
				format:       "json",
				skipExisting: tt.skipExisting,
				now:          time.Now(),
			})
			if tt.wantErr {
				if !errors.Is(err, itemdomain.ErrDuplicateID) {
					t.Fatalf("expected ErrDuplicateID, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("importItems: %v", err)
			}
			if res != tt.want {
				t.Fatalf("result = %+v, want %+v", res, tt.want)
			}

			items, err := repo.FindAll(ctx)
			if err != nil {
				t.Fatalf("FindAll: %v", err)
			}
			if len(items) != 2 {
				t.Fatalf("stored %d items, want 2", len(items))
			}
			desk, err := repo.FindByID(ctx, "1")
			if err != nil || desk["name"] != "Desk" {
				t.Fatalf("first document must be kept: %v, %v", desk, err)
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"items.json":     "json",
		"items.yaml":     "yaml",
		"fixtures/a.YML": "yaml",
		"items":          "json",
	}
	for path, want := range tests {
		if got := formatFor(path); got != want {
			t.Errorf("formatFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLockImport_Serialises(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.lock")

	unlock, err := lockImport(context.Background(), path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := lockImport(ctx, path); err == nil {
		t.Fatal("second lock should wait and give up while the first is held")
	}

	unlock()
	unlock2, err := lockImport(context.Background(), path)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock2()
}
