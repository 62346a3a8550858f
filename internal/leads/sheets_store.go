package leads

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// DefaultSheetRange is the named range holding the six lead columns.
const DefaultSheetRange = "Leads!A:F"

// SheetsConfig identifies the spreadsheet and the service account that writes to it.
type SheetsConfig struct {
	ServiceAccountEmail string
	PrivateKey          string
	SpreadsheetID       string
	Range               string
	AdminSecret         string
}

// NewSheetsService authenticates as the service account and returns a Sheets
// API client. Extra options are appended after the credentials, so tests can
// point the client at a fake endpoint.
func NewSheetsService(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*sheets.Service, error) {
	if strings.TrimSpace(cfg.ServiceAccountEmail) == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrMissingSpreadsheet
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	clientOpts := append([]option.ClientOption{option.WithTokenSource(jwtCfg.TokenSource(ctx))}, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("leads: create sheets client: %w", err)
	}
	return svc, nil
}

// SheetsStore appends leads to a Google spreadsheet.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	rangeName     string
	adminSecret   string
	logger        *logging.Logger
}

// NewSheetsStore wraps an authenticated Sheets client.
func NewSheetsStore(svc *sheets.Service, cfg SheetsConfig, logger *logging.Logger) *SheetsStore {
	if svc == nil {
		panic("leads: sheets service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	rangeName := strings.TrimSpace(cfg.Range)
	if rangeName == "" {
		rangeName = DefaultSheetRange
	}
	return &SheetsStore{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		rangeName:     rangeName,
		adminSecret:   cfg.AdminSecret,
		logger:        logger.With("component", "sheets_store"),
	}
}

// Append writes the lead as a new row. Values are sent RAW so user text is
// never evaluated as a formula.
func (s *SheetsStore) Append(ctx context.Context, lead Lead) (int64, error) {
	body := &sheets.ValueRange{Values: [][]interface{}{lead.Row()}}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeName, body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Error("failed to append lead to sheet", "error", err, "range", s.rangeName)
		return 0, tag(KindStore, "append", err)
	}

	var cells int64
	if resp != nil && resp.Updates != nil {
		cells = resp.Updates.UpdatedCells
	}
	s.logger.Info("lead added to sheet", "updated_cells", cells)
	return cells, nil
}

// List reads every row back, skipping the header.
func (s *SheetsStore) List(ctx context.Context, secret string) ([]Record, error) {
	if err := authorize(s.adminSecret, secret); err != nil {
		return nil, err
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeName).Context(ctx).Do()
	if err != nil {
		s.logger.Error("failed to read leads from sheet", "error", err, "range", s.rangeName)
		return nil, tag(KindStore, "list", err)
	}
	if resp == nil || len(resp.Values) <= 1 {
		return []Record{}, nil
	}

	records := make([]Record, 0, len(resp.Values)-1)
	for _, row := range resp.Values[1:] {
		records = append(records, RecordFromRow(row))
	}
	return records, nil
}

var _ Store = (*SheetsStore)(nil)
