// Package google writes the approval ledger to a Google Sheets spreadsheet,
// one sheet per year ("2024 Ledger").
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"eventfin/internal/log"
	"eventfin/internal/sheets"
)

// Ensure interface conformance
var _ sheets.Ledger = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the decision year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger

	// recorded caches the expense ids present in each year's sheet.
	mu       sync.Mutex
	recorded map[int]map[int64]struct{}
}

// New creates a ledger client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string, logger *log.Logger) *Client {
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Ledger"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     strings.TrimSpace(sheetBase),
		logger:        logger.WithComponent(log.ComponentSheets),
		recorded:      make(map[int]map[int64]struct{}),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// Append writes row to its year's sheet unless the expense is already there.
func (c *Client) Append(ctx context.Context, row sheets.LedgerRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if row.ExpenseID <= 0 {
		return "", errors.New("ledger row without expense id")
	}
	year := row.Year()

	c.mu.Lock()
	defer c.mu.Unlock()

	seen, err := c.recordedLocked(ctx, year)
	if err != nil {
		return "", err
	}
	if _, dup := seen[row.ExpenseID]; dup {
		return "", sheets.ErrAlreadyRecorded
	}

	sheet := c.sheetName(year)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:J", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	seen[row.ExpenseID] = struct{}{}

	ref := sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Decision appended to ledger",
		log.FieldOperation, log.OpAppend,
		log.FieldExpenseID, row.ExpenseID,
		"range", ref)
	return ref, nil
}

// Rows reads every decision recorded for year. Rows that do not parse,
// such as the header, are skipped.
func (c *Client) Rows(ctx context.Context, year int) ([]sheets.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.sheetName(year) + "!A:J"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]sheets.LedgerRow, 0, len(resp.Values))
	for i, raw := range resp.Values {
		row, err := sheets.ParseRow(toStrings(raw))
		if err != nil {
			if i > 0 {
				c.logger.DebugContext(ctx, "Skipping unreadable ledger row", "row", i+1, log.FieldError, err)
			}
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (c *Client) recordedLocked(ctx context.Context, year int) (map[int64]struct{}, error) {
	if seen, ok := c.recorded[year]; ok {
		return seen, nil
	}
	rows, err := c.Rows(ctx, year)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		// The range does not parse until the year's sheet exists.
		if err := c.createSheet(ctx, year); err != nil {
			return nil, err
		}
		rows, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		seen[r.ExpenseID] = struct{}{}
	}
	c.recorded[year] = seen
	return seen, nil
}

// createSheet adds the year's sheet with a header row.
func (c *Client) createSheet(ctx context.Context, year int) error {
	name := c.sheetName(year)
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, name+"!A1:J1", &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", name, err)
	}
	c.logger.InfoContext(ctx, "Ledger sheet created", "sheet", name)
	return nil
}

func (c *Client) sheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		// Unformatted numbers arrive as float64.
		if f, ok := v.(float64); ok {
			out[i] = strconv.FormatFloat(f, 'f', -1, 64)
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
