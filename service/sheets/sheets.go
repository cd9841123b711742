package sheets

import (
	"context"
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	googlesheets "google.golang.org/api/sheets/v4"

	"salchimonster/restaurant-reports/models"
)

type sheets struct {
	sheetsSrv *googlesheets.Service
}

func NewClient(sheetsSrv *googlesheets.Service) *sheets {
	return &sheets{
		sheetsSrv: sheetsSrv,
	}
}

// NewService builds a Sheets service from a service account key file.
func NewService(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*googlesheets.Service, error) {
	if credentialsFile != "" {
		credBytes, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsJSON(credBytes))
	}

	sheetsSrv, err := googlesheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable initiate google sheets client: %w", err)
	}

	return sheetsSrv, nil
}

func (s *sheets) FetchRows(ctx context.Context, spreadsheetId string, sheetName string, cells string) (models.Rows, error) {
	sheetRange := fmt.Sprintf("%s!%s", sheetName, cells)
	response, err := s.sheetsSrv.Spreadsheets.Values.Get(spreadsheetId, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if response.HTTPStatusCode != http.StatusOK {
		return nil, fmt.Errorf("FetchRows: status %d", response.HTTPStatusCode)
	}

	rows := make(models.Rows, 0, len(response.Values))
	for _, v := range response.Values {
		rows = append(rows, v)
	}

	return rows, nil
}

func (s *sheets) AppendRows(ctx context.Context, spreadsheetId string, sheetName string, rows models.Rows) (int64, error) {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, r)
	}

	response, err := s.sheetsSrv.Spreadsheets.Values.
		Append(spreadsheetId, sheetName+"!A1", &googlesheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("AppendRows: %w", err)
	}
	if response.Updates == nil {
		return 0, nil
	}

	return response.Updates.UpdatedRows, nil
}

// AppendInforme appends the per-day rows of informe whose date is not already in the
// first column of the sheet. It returns the number of rows added.
func (s *sheets) AppendInforme(ctx context.Context, spreadsheetId string, sheetName string, informe *models.Informe) (int64, error) {
	existing, err := s.FetchRows(ctx, spreadsheetId, sheetName, "A:A")
	if err != nil {
		return 0, fmt.Errorf("AppendInforme: %w", err)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		if len(row) > 0 {
			seen[fmt.Sprint(row[0])] = struct{}{}
		}
	}

	all := models.InformeDiaRows(informe.PorDia)
	var rows models.Rows
	if len(existing) == 0 {
		rows = append(rows, all[0])
	}
	for _, row := range all[1:] {
		if _, ok := seen[fmt.Sprint(row[0])]; ok {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		log.Infof("Sheets: %s ya está al día", sheetName)
		return 0, nil
	}

	return s.AppendRows(ctx, spreadsheetId, sheetName, rows)
}
