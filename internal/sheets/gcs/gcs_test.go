package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tracker/internal/core"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func (f *fakeStore) Put(_ context.Context, name string, body []byte) error {
	if name == f.failOn {
		return errors.New("bucket unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[name] = body
	return nil
}

func sampleDatasets() core.Datasets {
	return core.Datasets{
		Categories: []core.CategoryBar{
			{Category: "income", Value: decimal.RequireFromString("1000"), Magnitude: decimal.RequireFromString("1000"), Kind: core.KindEarning},
			{Category: "rent", Value: decimal.RequireFromString("-500.5"), Magnitude: decimal.RequireFromString("500.5"), Kind: core.KindExpense},
		},
		Months: []core.MonthPoint{
			{Year: 2020, Month: 1, Total: decimal.RequireFromString("499.5"), Max: decimal.RequireFromString("1000"),
				Min: decimal.RequireFromString("499.5"), Open: decimal.Zero, Close: decimal.RequireFromString("499.5")},
		},
		Types: core.TypeTotals{
			Earnings:    decimal.RequireFromString("1000"),
			Expenses:    decimal.RequireFromString("500.5"),
			Investments: decimal.Zero,
		},
		GeneratedAt: time.Date(2020, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestWriteDatasets(t *testing.T) {
	store := &fakeStore{}
	w := newWriter(store, "/dashboards/tracker/")

	if err := w.WriteDatasets(context.Background(), sampleDatasets()); err != nil {
		t.Fatalf("WriteDatasets() error = %v", err)
	}
	if len(store.objects) != 3 {
		t.Fatalf("wrote %d objects, want 3: %v", len(store.objects), store.objects)
	}

	var cats struct {
		GeneratedAt time.Time `json:"generated_at"`
		Data        []struct {
			Category string `json:"category"`
			Kind     string `json:"kind"`
			Value    string `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(store.objects["dashboards/tracker/categories.json"], &cats); err != nil {
		t.Fatalf("categories.json: %v", err)
	}
	if len(cats.Data) != 2 || cats.Data[1].Category != "rent" || cats.Data[1].Value != "-500.5" || cats.Data[1].Kind != "expense" {
		t.Errorf("categories = %+v", cats.Data)
	}
	if !cats.GeneratedAt.Equal(sampleDatasets().GeneratedAt) {
		t.Errorf("generated_at = %v", cats.GeneratedAt)
	}

	var months struct {
		Data []struct {
			Month string `json:"month"`
			Close string `json:"close"`
		} `json:"data"`
	}
	if err := json.Unmarshal(store.objects["dashboards/tracker/months.json"], &months); err != nil {
		t.Fatalf("months.json: %v", err)
	}
	if len(months.Data) != 1 || months.Data[0].Month != "2020-01" || months.Data[0].Close != "499.5" {
		t.Errorf("months = %+v", months.Data)
	}

	var types struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(store.objects["dashboards/tracker/types.json"], &types); err != nil {
		t.Fatalf("types.json: %v", err)
	}
	if types.Data["earning"] != "1000" || types.Data["expense"] != "500.5" || types.Data["investment"] != "0" {
		t.Errorf("types = %v", types.Data)
	}
}

func TestWriteDatasetsWithoutPrefix(t *testing.T) {
	store := &fakeStore{}
	if err := newWriter(store, "").WriteDatasets(context.Background(), sampleDatasets()); err != nil {
		t.Fatalf("WriteDatasets() error = %v", err)
	}
	for _, name := range []string{CategoriesObject, MonthsObject, TypesObject} {
		if _, ok := store.objects[name]; !ok {
			t.Errorf("object %s not written", name)
		}
	}
}

func TestWriteDatasetsFailure(t *testing.T) {
	store := &fakeStore{failOn: MonthsObject}
	err := newWriter(store, "").WriteDatasets(context.Background(), sampleDatasets())
	if err == nil || err.Error() != "bucket unavailable" {
		t.Errorf("WriteDatasets() error = %v, want bucket failure", err)
	}
}

func TestNewFromEnv_MissingBucket(t *testing.T) {
	t.Setenv("GCS_BUCKET", " ")
	if _, err := NewFromEnv(context.Background()); err == nil || err.Error() != "missing GCS_BUCKET" {
		t.Errorf("NewFromEnv() error = %v", err)
	}
}

func TestCloseWithoutClient(t *testing.T) {
	if err := newWriter(&fakeStore{}, "").Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
