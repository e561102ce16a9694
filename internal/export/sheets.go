// Package export mirrors budget records to a Google Sheets backup
// spreadsheet. The sheet is append-only history, not a second source
// of truth; the database stays authoritative.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
)

type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsClient builds the backup client with service-account
// credentials resolved from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsClient(ctx context.Context, spreadsheetID, sheetName string) (*SheetsClient, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing backup spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Backup"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
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
	return service, nil
}

// AppendExpenseRow writes one backup line for the expense. Columns:
// kind, record id, month, name, category, period, budget, actual,
// notes, exported at.
func (c *SheetsClient) AppendExpenseRow(ctx context.Context, month core.Month, e core.Expense) error {
	row := []any{
		"expense",
		e.ID,
		month.DisplayName(),
		e.Name,
		e.Category,
		e.Period,
		e.Budget.Units(),
		e.Actual.Units(),
		e.Notes,
		time.Now().UTC().Format(time.RFC3339),
	}
	return c.appendRow(ctx, row)
}

// AppendIncomeRow writes one backup line for the income. The income
// type name fills the column expenses use for their own name.
func (c *SheetsClient) AppendIncomeRow(ctx context.Context, month core.Month, in core.Income, typeName string) error {
	row := []any{
		"income",
		in.ID,
		month.DisplayName(),
		typeName,
		"",
		in.Period,
		in.Budget.Units(),
		in.Actual.Units(),
		"",
		time.Now().UTC().Format(time.RFC3339),
	}
	return c.appendRow(ctx, row)
}

func (c *SheetsClient) appendRow(ctx context.Context, row []any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:J", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Backup row appended",
		"sheet", c.sheetName,
		"kind", row[0],
		"id", row[1])
	return nil
}
