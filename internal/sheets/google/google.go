package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"orcamento/internal/core"
	ports "orcamento/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheValidDuration = 5 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	historySheet  string

	// Row lookup cache: month ID -> 1-based row number.
	mu                 sync.Mutex
	cachedRows         map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var (
	_ ports.HistoryWriter  = (*Client)(nil)
	_ ports.HistoryDeleter = (*Client)(nil)
	_ ports.HistoryReader  = (*Client)(nil)
)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_HISTORY_SHEET (default "Historico").
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	historySheet := strings.TrimSpace(os.Getenv("GOOGLE_HISTORY_SHEET"))
	if historySheet == "" {
		historySheet = "Historico"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, historySheet), nil
}

func New(svc *gsheet.Service, spreadsheetID, historySheet string) *Client {
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		historySheet:       historySheet,
		cacheValidDuration: defaultCacheValidDuration,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var (
		credentialsJSON []byte
		err             error
	)
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

func (c *Client) historyRange(cols string) string {
	return fmt.Sprintf("%s!%s", c.historySheet, cols)
}

// rows returns the ID -> row index, reading column A when the cache expired.
func (c *Client) rows(ctx context.Context) (map[string]int, int, error) {
	c.mu.Lock()
	if c.cachedRows != nil && time.Now().Before(c.cacheExpiresAt) {
		rows, count := c.cachedRows, c.cachedRowCount
		c.mu.Unlock()
		return rows, count, nil
	}
	c.mu.Unlock()

	rng := c.historyRange("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := rowIndexByID(resp.Values)

	c.mu.Lock()
	c.cachedRows = rows
	c.cachedRowCount = len(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return rows, len(resp.Values), nil
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	c.cachedRows = nil
	c.cachedRowCount = 0
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// AppendMonth implements ports.HistoryWriter.
func (c *Client) AppendMonth(ctx context.Context, m core.MonthlyData) (string, error) {
	if m.ID == "" {
		return "", errors.New("closed month without id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows, count, err := c.rows(ctx)
	if err != nil {
		return "", err
	}
	if row, ok := rows[m.ID]; ok {
		return c.historyRange(fmt.Sprintf("A%d:H%d", row, row)), nil
	}

	values := [][]any{monthRow(m)}
	if count == 0 {
		values = [][]any{historyHeader, monthRow(m)}
	}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.historyRange("A:H"), &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.historySheet, err)
	}
	c.invalidateRowCache()

	ref := c.historyRange("A:H")
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Appended closed month to Google Sheets", "month_id", m.ID, "range", ref)
	return ref, nil
}

// DeleteMonth implements ports.HistoryDeleter. Deleting a month that is not
// in the sheet is a no-op.
func (c *Client) DeleteMonth(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rows, _, err := c.rows(ctx)
	if err != nil {
		return err
	}
	row, ok := rows[id]
	if !ok {
		slog.InfoContext(ctx, "Closed month not present in Google Sheets", "month_id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row - 1),
			EndIndex:   int64(row),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d from %s: %w", row, c.historySheet, err)
	}
	c.invalidateRowCache()
	slog.InfoContext(ctx, "Deleted closed month from Google Sheets", "month_id", id, "row", row)
	return nil
}

// ListMonths implements ports.HistoryReader.
func (c *Client) ListMonths(ctx context.Context) ([]ports.MonthRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.historyRange("A:H")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseMonthRows(resp.Values), nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.historySheet {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.historySheet)
}
