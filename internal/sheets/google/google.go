package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tracker/internal/core"
	ports "tracker/internal/sheets"
)

// Default tab names.
const (
	DefaultCategoriesTab = "Categories"
	DefaultMonthsTab     = "Months"
	DefaultTypesTab      = "Types"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	categoriesTab string
	monthsTab     string
	typesTab      string
}

var _ ports.DatasetWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional tab names: GOOGLE_CATEGORIES_TAB, GOOGLE_MONTHS_TAB, GOOGLE_TYPES_TAB.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentials, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := New(svc, spreadsheetID)
	c.categoriesTab = envOr("GOOGLE_CATEGORIES_TAB", c.categoriesTab)
	c.monthsTab = envOr("GOOGLE_MONTHS_TAB", c.monthsTab)
	c.typesTab = envOr("GOOGLE_TYPES_TAB", c.typesTab)

	slog.InfoContext(ctx, "Google Sheets client ready",
		"spreadsheet_id", spreadsheetID,
		"tabs", []string{c.categoriesTab, c.monthsTab, c.typesTab})
	return c, nil
}

// New wraps an existing service using the default tab names.
func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		categoriesTab: DefaultCategoriesTab,
		monthsTab:     DefaultMonthsTab,
		typesTab:      DefaultTypesTab,
	}
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteDatasets clears and rewrites the three dataset tabs concurrently.
// The first failing tab cancels the others.
func (c *Client) WriteDatasets(ctx context.Context, ds core.Datasets) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	tabs := map[string][][]interface{}{
		c.categoriesTab: CategoryRows(ds.Categories),
		c.monthsTab:     MonthRows(ds.Months),
		c.typesTab:      TypeRows(ds.Types, ds.GeneratedAt),
	}

	g, gctx := errgroup.WithContext(ctx)
	for tab, rows := range tabs {
		g.Go(func() error {
			return c.replaceTab(gctx, tab, rows)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Datasets written to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"categories", len(ds.Categories),
		"months", len(ds.Months))
	return nil
}

func (c *Client) replaceTab(ctx context.Context, tab string, rows [][]interface{}) error {
	_, err := c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetID, tab, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, tab+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", tab, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
