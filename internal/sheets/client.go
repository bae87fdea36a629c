package sheets

import (
	"context"
	"fmt"

	"online_tables_lite/internal/export"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service *sheets.Service
}

func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	return NewClientWithOptions(ctx, option.WithCredentialsFile(credentialsFile))
}

func NewClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
	}, nil
}

// WriteDataset replaces the contents of sheet with ds, header first.
func (c *Client) WriteDataset(ctx context.Context, spreadsheetID, sheet string, ds *export.Dataset) error {
	if err := c.ClearSheet(ctx, spreadsheetID, sheet); err != nil {
		return err
	}

	matrix := ds.Values()
	values := make([][]interface{}, len(matrix))
	for r, row := range matrix {
		values[r] = make([]interface{}, len(row))
		for i, v := range row {
			values[r][i] = v
		}
	}
	if err := c.UpdateRange(ctx, spreadsheetID, sheet+"!A1", values); err != nil {
		return err
	}

	log.Info().
		Str("spreadsheet_id", spreadsheetID).
		Str("sheet", sheet).
		Int("rows", len(ds.Rows)).
		Int("cols", len(ds.Headers)).
		Msg("Wrote table to spreadsheet")
	return nil
}

func (c *Client) ClearSheet(ctx context.Context, spreadsheetID, sheet string) error {
	_, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, sheet, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}
	return nil
}

// UpdateRange writes values as entered, so cell text is not reinterpreted
// as formulas or numbers.
func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}

	return nil
}
