package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ghuser/secondchance/pkg/app"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	"github.com/ghuser/secondchance/services/item/domain/models"
	"github.com/ghuser/secondchance/services/item/domain/repositories"
	domainsvcs "github.com/ghuser/secondchance/services/item/domain/services"
)

var (
	importFile         string
	importLockFile     string
	importSkipExisting bool
)

const lockWait = 30 * time.Second

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Insert items from a JSON or YAML array file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		unlock, err := lockImport(ctx, importLockFile)
		if err != nil {
			return err
		}
		defer unlock()

		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		a, err := app.Build(ctx, cfg, log, app.BusDisabled)
		if err != nil {
			return err
		}
		defer a.Close(context.Background()) //nolint:errcheck

		repo, err := appsvcs.NewRepository(a)
		if err != nil {
			return err
		}

		res, err := importItems(ctx, repo, f, importOptions{
			format:       formatFor(importFile),
			skipExisting: importSkipExisting,
			now:          time.Now(),
		})
		if err != nil {
			return err
		}
		log.Info("items imported", "count", res.imported, "skipped", res.skipped, "file", importFile)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "items.json", "array of item documents (.json, .yaml or .yml)")
	importCmd.Flags().StringVar(&importLockFile, "lock-file", filepath.Join(os.TempDir(), "secondchance-seed.lock"),
		"lock held while importing; concurrent imports on this host wait for it")
	importCmd.Flags().BoolVar(&importSkipExisting, "skip-existing", false,
		"skip documents whose id is already stored instead of failing")
	rootCmd.AddCommand(importCmd)
}

// lockImport takes an exclusive lock on path, waiting up to lockWait.
func lockImport(ctx context.Context, path string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	lock := flock.New(path)
	ok, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: held by another import", path)
	}
	return func() { _ = lock.Unlock() }, nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func decodeDocuments(r io.Reader, format string) ([]map[string]any, error) {
	var docs []map[string]any
	switch format {
	case "yaml":
		if err := yaml.NewDecoder(r).Decode(&docs); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	return docs, nil
}

type importOptions struct {
	format       string
	skipExisting bool
	now          time.Time
}

type importResult struct {
	imported int
	skipped  int
}

// importItems inserts every document of the array in r. Documents without
// an id get the next one from the store; documents without date_added are
// stamped with opts.now. Store-native _id fields are dropped. A document
// whose id is already stored fails the import with ErrDuplicateID unless
// opts.skipExisting is set.
func importItems(ctx context.Context, repo repositories.ItemRepository, r io.Reader, opts importOptions) (importResult, error) {
	var res importResult
	docs, err := decodeDocuments(r, opts.format)
	if err != nil {
		return res, err
	}

	for i, doc := range docs {
		item, err := prepareImport(ctx, repo, doc, opts.now)
		if err != nil {
			return res, fmt.Errorf("item %d: %w", i, err)
		}
		if _, err := repo.Insert(ctx, item); err != nil {
			if opts.skipExisting && errors.Is(err, itemdomain.ErrDuplicateID) {
				res.skipped++
				continue
			}
			return res, fmt.Errorf("item %d: insert: %w", i, err)
		}
		res.imported++
	}
	return res, nil
}

func prepareImport(ctx context.Context, repo repositories.ItemRepository, doc map[string]any, now time.Time) (models.Item, error) {
	item := models.Item(doc)
	delete(item, models.FieldNativeID)

	if _, ok := item[models.FieldID]; ok {
		n, ok := domainsvcs.ParseNumericID(item[models.FieldID])
		if !ok {
			return nil, fmt.Errorf("id %v is not numeric", item[models.FieldID])
		}
		item[models.FieldID] = domainsvcs.FormatID(n)
	} else {
		id, err := repo.NextID(ctx)
		if err != nil {
			return nil, err
		}
		item[models.FieldID] = id
	}

	if n, ok := domainsvcs.ParseNumericID(item[models.FieldDateAdded]); ok && n > 0 {
		item[models.FieldDateAdded] = n
	} else {
		item[models.FieldDateAdded] = now.Unix()
	}

	if err := domainsvcs.ValidateItemForCreation(item); err != nil {
		return nil, err
	}
	return item, nil
}
