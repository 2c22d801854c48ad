package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
)

// ExportService renders queue exports and investment certificates. Exports
// always run over a visibility-scoped queue supplied by ApplicationService,
// never over the raw table.
type ExportService struct {
	appSvc *ApplicationService
}

func NewExportService(appSvc *ApplicationService) *ExportService {
	return &ExportService{appSvc: appSvc}
}

// exportField is one selectable export column
type exportField struct {
	key   string
	title string
	value func(app *models.Application) string
}

// queueExportFields is the full column set in display order. Callers may
// narrow the selection; identity numbers are deliberately not exportable.
var queueExportFields = []exportField{
	{"reference", "Reference", func(a *models.Application) string { return a.ReferenceID }},
	{"type", "Type", func(a *models.Application) string { return a.Type }},
	{"status", "Status", func(a *models.Application) string { return a.Status }},
	{"applicant", "Applicant", func(a *models.Application) string { return a.ApplicantName }},
	{"email", "Email", func(a *models.Application) string { return a.ApplicantEmail }},
	{"amount", "Amount", func(a *models.Application) string { return a.Amount }},
	{"eligible_amount", "Eligible Amount", func(a *models.Application) string {
		if a.EligibleAmount == nil {
			return ""
		}
		return *a.EligibleAmount
	}},
	{"owner", "Owner", func(a *models.Application) string { return a.OwnerName }},
	{"date_submitted", "Date Submitted", func(a *models.Application) string {
		return a.DateSubmitted.Format("2006-01-02")
	}},
}

// selectFields resolves a field-key selection, keeping display order. An empty
// selection means every column; unknown keys fail validation.
func selectFields(keys []string) ([]exportField, error) {
	if len(keys) == 0 {
		return queueExportFields, nil
	}

	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(strings.ToLower(key))
		if key == "" {
			continue
		}
		found := false
		for _, f := range queueExportFields {
			if f.key == key {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown export field %q", ErrValidationFailed, key)
		}
		wanted[key] = true
	}
	if len(wanted) == 0 {
		return queueExportFields, nil
	}

	fields := make([]exportField, 0, len(wanted))
	for _, f := range queueExportFields {
		if wanted[f.key] {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func exportHeader(fields []exportField) []string {
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.title
	}
	return header
}

func exportRow(fields []exportField, app *models.Application) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = f.value(app)
	}
	return row
}

// ExportQueueCSV exports the actor's visible queue as CSV, optionally limited
// to the selected field keys
func (s *ExportService) ExportQueueCSV(ctx context.Context, actor Actor, query *repository.ApplicationQuery, fieldKeys []string) ([]byte, string, error) {
	fields, err := selectFields(fieldKeys)
	if err != nil {
		return nil, "", err
	}

	apps, _, err := s.appSvc.VisibleQueue(ctx, actor, query)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write(exportHeader(fields))
	for i := range apps {
		_ = writer.Write(exportRow(fields, &apps[i]))
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("applications_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportQueueXLSX exports the actor's visible queue as a spreadsheet,
// optionally limited to the selected field keys
func (s *ExportService) ExportQueueXLSX(ctx context.Context, actor Actor, query *repository.ApplicationQuery, fieldKeys []string) ([]byte, string, error) {
	fields, err := selectFields(fieldKeys)
	if err != nil {
		return nil, "", err
	}

	apps, _, err := s.appSvc.VisibleQueue(ctx, actor, query)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Applications"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for col, title := range exportHeader(fields) {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for row := range apps {
		for col, value := range exportRow(fields, &apps[row]) {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("applications_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// InvestmentCertificate renders a PDF certificate for an approved investment
func (s *ExportService) InvestmentCertificate(ctx context.Context, actor Actor, id uint) ([]byte, string, error) {
	app, err := s.appSvc.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	if app.Type != models.TypeInvestment {
		return nil, "", fmt.Errorf("%w: certificates are issued for investments only", ErrValidationFailed)
	}
	if app.Status != models.StatusApproved {
		return nil, "", fmt.Errorf("%w: investment %s is not approved", ErrValidationFailed, app.ReferenceID)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 20, "Certificate of Investment", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, app.ApplicantName, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	plan := "Investment Plan"
	if app.SelectedPlan != nil {
		plan = *app.SelectedPlan
	}
	pdf.CellFormat(0, 8, fmt.Sprintf("holds an approved investment under the %s", plan), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("in the amount of %s", app.Amount), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", app.ReferenceID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued: %s", time.Now().Format("January 2, 2006")), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("certificate_%s.pdf", app.ReferenceID)
	return buf.Bytes(), filename, nil
}
