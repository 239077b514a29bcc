// Package gcs publishes chart datasets as JSON objects in a Cloud Storage
// bucket, for dashboards that read static files instead of a spreadsheet.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tracker/internal/core"
	ports "tracker/internal/sheets"
)

const uploadTimeout = 2 * time.Minute

// Object names written under the prefix.
const (
	CategoriesObject = "categories.json"
	MonthsObject     = "months.json"
	TypesObject      = "types.json"
)

// objectStore is the part of a bucket the writer needs.
type objectStore interface {
	Put(ctx context.Context, name string, body []byte) error
}

type bucketStore struct {
	bucket *storage.BucketHandle
}

func (b bucketStore) Put(ctx context.Context, name string, body []byte) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", name, err)
	}
	return nil
}

type Writer struct {
	store  objectStore
	client *storage.Client
	prefix string
}

var _ ports.DatasetWriter = (*Writer)(nil)

// NewFromEnv creates a writer for GCS_BUCKET using Application Default
// Credentials. GCS_PREFIX optionally names a folder inside the bucket.
func NewFromEnv(ctx context.Context) (*Writer, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return nil, errors.New("missing GCS_BUCKET")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	w := newWriter(bucketStore{bucket: client.Bucket(bucket)}, os.Getenv("GCS_PREFIX"))
	w.client = client

	slog.InfoContext(ctx, "Cloud Storage export ready", "bucket", bucket, "prefix", w.prefix)
	return w, nil
}

func newWriter(store objectStore, prefix string) *Writer {
	return &Writer{store: store, prefix: strings.Trim(prefix, "/")}
}

// Close releases the storage client.
func (w *Writer) Close() error {
	if w.client == nil {
		return nil
	}
	return w.client.Close()
}

// WriteDatasets uploads the three tables concurrently. Each object is
// replaced as a whole.
func (w *Writer) WriteDatasets(ctx context.Context, ds core.Datasets) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	docs := map[string]any{
		CategoriesObject: categoriesDoc(ds),
		MonthsObject:     monthsDoc(ds),
		TypesObject:      typesDoc(ds),
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		object := path.Join(w.prefix, name)
		g.Go(func() error {
			return w.store.Put(ctx, object, body)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Exported datasets to Cloud Storage",
		"prefix", w.prefix,
		"categories", len(ds.Categories),
		"months", len(ds.Months))
	return nil
}

type categoryEntry struct {
	Category  string          `json:"category"`
	Kind      core.Kind       `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	Magnitude decimal.Decimal `json:"magnitude"`
}

type monthEntry struct {
	Month string          `json:"month"`
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	Max   decimal.Decimal `json:"max"`
	Min   decimal.Decimal `json:"min"`
	Total decimal.Decimal `json:"total"`
}

type document[T any] struct {
	GeneratedAt time.Time `json:"generated_at"`
	Data        T         `json:"data"`
}

func categoriesDoc(ds core.Datasets) document[[]categoryEntry] {
	entries := make([]categoryEntry, 0, len(ds.Categories))
	for _, b := range ds.Categories {
		entries = append(entries, categoryEntry{Category: b.Category, Kind: b.Kind, Value: b.Value, Magnitude: b.Magnitude})
	}
	return document[[]categoryEntry]{GeneratedAt: ds.GeneratedAt.UTC(), Data: entries}
}

func monthsDoc(ds core.Datasets) document[[]monthEntry] {
	entries := make([]monthEntry, 0, len(ds.Months))
	for _, p := range ds.Months {
		entries = append(entries, monthEntry{
			Month: core.YearMonth{Year: p.Year, Month: p.Month}.String(),
			Open:  p.Open, Close: p.Close, Max: p.Max, Min: p.Min, Total: p.Total,
		})
	}
	return document[[]monthEntry]{GeneratedAt: ds.GeneratedAt.UTC(), Data: entries}
}

func typesDoc(ds core.Datasets) document[map[core.Kind]decimal.Decimal] {
	return document[map[core.Kind]decimal.Decimal]{
		GeneratedAt: ds.GeneratedAt.UTC(),
		Data: map[core.Kind]decimal.Decimal{
			core.KindEarning:    ds.Types.Earnings,
			core.KindExpense:    ds.Types.Expenses,
			core.KindInvestment: ds.Types.Investments,
		},
	}
}
