package xlsx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

const summarySheet = "Summary"

var summaryHeader = []any{"Document ID", "File name", "Type", "Analysis date", "Confidence"}

var typeHeaders = map[domain.DocumentType][]any{
	domain.TypeBankStatement:  {"Document ID", "Bank", "Branch", "Account", "Owners", "Period start", "Period end", "Ending balance", "Transactions"},
	domain.TypeSalarySlip:     {"Document ID", "Employee", "Employee ID", "Employer", "Position", "Month", "Year", "Gross", "Net"},
	domain.TypeIDCard:         {"Document ID", "ID", "Full name", "Date of birth", "Place of birth", "Nationality", "Issued"},
	domain.TypeIDAppendix:     {"Document ID", "ID", "Address", "Family status", "Children"},
	domain.TypePropertyRecord: {"Document ID", "Block", "Parcel", "Sub-parcel", "Address", "Area", "Owners", "Mortgages"},
}

var typeOrder = []domain.DocumentType{
	domain.TypeBankStatement,
	domain.TypeSalarySlip,
	domain.TypeIDCard,
	domain.TypeIDAppendix,
	domain.TypePropertyRecord,
}

// Exporter renders a folder ledger as a workbook: one summary sheet and one
// sheet per document type present in the ledger.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(ledger domain.Ledger) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}

	entries := sortedEntries(ledger)
	if err := writeRow(f, summarySheet, 1, summaryHeader); err != nil {
		return nil, err
	}
	byType := make(map[domain.DocumentType][]domain.LedgerEntry)
	for i, entry := range entries {
		row := []any{entry.DocumentID, entry.FileName, string(entry.Type), formatTime(entry.AnalysisDate), entry.Results.Confidence}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return nil, err
		}
		byType[entry.Results.Type] = append(byType[entry.Results.Type], entry)
	}

	for _, docType := range typeOrder {
		group := byType[docType]
		if len(group) == 0 {
			continue
		}
		sheet := sheetName(docType)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeRow(f, sheet, 1, typeHeaders[docType]); err != nil {
			return nil, err
		}
		for i, entry := range group {
			if err := writeRow(f, sheet, i+2, typeRow(entry.Results)); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func typeRow(result domain.AnalysisResult) []any {
	switch {
	case result.BankStatement != nil:
		d := result.BankStatement
		return []any{
			result.DocumentID, d.AccountDetails.Bank, d.AccountDetails.Branch, d.AccountDetails.AccountNumber,
			strings.Join(d.AccountDetails.Owners, ", "), formatDate(d.Summary.PeriodStart), formatDate(d.Summary.PeriodEnd),
			d.Summary.EndingBalance, len(d.Transactions),
		}
	case result.SalarySlip != nil:
		d := result.SalarySlip
		return []any{
			result.DocumentID, d.Employee.Name, d.Employee.ID, d.Employee.Employer, d.Employee.Position,
			d.Month, d.Year, d.Salary.Gross, d.Salary.Net,
		}
	case result.IDCard != nil:
		d := result.IDCard
		return []any{
			result.DocumentID, d.ID, d.FullName, formatDate(d.DateOfBirth), d.PlaceOfBirth, d.Nationality, formatDate(d.DateIssued),
		}
	case result.IDAppendix != nil:
		d := result.IDAppendix
		return []any{result.DocumentID, d.ID, d.Address, d.FamilyStatus, len(d.Children)}
	case result.PropertyRecord != nil:
		d := result.PropertyRecord
		owners := make([]string, 0, len(d.Owners))
		for _, owner := range d.Owners {
			owners = append(owners, fmt.Sprintf("%s (%s)", owner.Name, owner.Share))
		}
		return []any{
			result.DocumentID, d.Property.BlockNumber, d.Property.ParcelNumber, d.Property.SubParcelNumber,
			d.Property.Address, d.Property.Area, strings.Join(owners, ", "), len(d.Mortgages),
		}
	}
	return []any{result.DocumentID}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func sortedEntries(ledger domain.Ledger) []domain.LedgerEntry {
	entries := make([]domain.LedgerEntry, 0, len(ledger))
	for _, entry := range ledger {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AnalysisDate.Equal(entries[j].AnalysisDate) {
			return entries[i].AnalysisDate.Before(entries[j].AnalysisDate)
		}
		return entries[i].DocumentID < entries[j].DocumentID
	})
	return entries
}

func sheetName(docType domain.DocumentType) string {
	words := strings.Split(string(docType), "_")
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
