package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type rawAnalysis struct {
	DocumentID string          `json:"documentId"`
	Confidence float64         `json:"confidence"`
	Data       json.RawMessage `json:"data"`
}

type rawBankStatement struct {
	Bank            string           `json:"bank"`
	Branch          string           `json:"branch"`
	AccountNumber   string           `json:"accountNumber"`
	Owners          []string         `json:"owners"`
	Transactions    []rawTransaction `json:"transactions"`
	StartingBalance float64          `json:"startingBalance"`
	EndingBalance   float64          `json:"endingBalance"`
	PeriodStart     flexDate         `json:"periodStart"`
	PeriodEnd       flexDate         `json:"periodEnd"`
}

type rawTransaction struct {
	Date        flexDate `json:"date"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Balance     float64  `json:"balance"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
}

type rawSalarySlip struct {
	EmployeeName string         `json:"employeeName"`
	EmployeeID   string         `json:"employeeId"`
	Position     string         `json:"position"`
	Employer     string         `json:"employer"`
	Month        int            `json:"month"`
	Year         int            `json:"year"`
	GrossSalary  float64        `json:"grossSalary"`
	NetSalary    float64        `json:"netSalary"`
	Deductions   []SalaryAdjust `json:"deductions"`
	Additions    []SalaryAdjust `json:"additions"`
}

type rawIDCard struct {
	ID           string   `json:"id"`
	FullName     string   `json:"fullName"`
	DateOfBirth  flexDate `json:"dateOfBirth"`
	PlaceOfBirth string   `json:"placeOfBirth"`
	Nationality  string   `json:"nationality"`
	DateIssued   flexDate `json:"dateIssued"`
}

type rawIDAppendix struct {
	ID           string `json:"id"`
	Address      string `json:"address"`
	FamilyStatus string `json:"familyStatus"`
	Children     []struct {
		Name        string   `json:"name"`
		ID          string   `json:"id"`
		DateOfBirth flexDate `json:"dateOfBirth"`
	} `json:"children"`
}

type rawPropertyRecord struct {
	BlockNumber     string          `json:"blockNumber"`
	ParcelNumber    string          `json:"parcelNumber"`
	SubParcelNumber string          `json:"subParcelNumber"`
	Address         string          `json:"address"`
	Area            float64         `json:"area"`
	PropertyType    string          `json:"propertyType"`
	Owners          []PropertyOwner `json:"owners"`
	Mortgages       []struct {
		Bank   string   `json:"bank"`
		Amount float64  `json:"amount"`
		Date   flexDate `json:"date"`
	} `json:"mortgages"`
	Liens []struct {
		Type        string   `json:"type"`
		Beneficiary string   `json:"beneficiary"`
		Date        flexDate `json:"date"`
	} `json:"liens"`
}

// ParseAnalysisResult converts the analysis service's untyped payload into
// the typed variant for docType. Shape mismatches fail with *ParseError.
func ParseAnalysisResult(docType DocumentType, raw []byte, now time.Time) (AnalysisResult, error) {
	if !docType.Valid() {
		return AnalysisResult{}, &ParseError{Type: docType, Err: fmt.Errorf("unsupported document type")}
	}

	var envelope rawAnalysis
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return AnalysisResult{}, parseFailure(docType, "", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || data[0] != '{' {
		return AnalysisResult{}, &ParseError{Type: docType, Field: "data", Err: errors.New("expected object")}
	}

	result := AnalysisResult{
		DocumentID:   envelope.DocumentID,
		Type:         docType,
		Confidence:   envelope.Confidence,
		AnalysisDate: now.UTC(),
	}

	var err error
	switch docType {
	case TypeBankStatement:
		result.BankStatement, err = parseBankStatement(data)
	case TypeSalarySlip:
		result.SalarySlip, err = parseSalarySlip(data)
	case TypeIDCard:
		result.IDCard, err = parseIDCard(data)
	case TypeIDAppendix:
		result.IDAppendix, err = parseIDAppendix(data)
	case TypePropertyRecord:
		result.PropertyRecord, err = parsePropertyRecord(data)
	}
	if err != nil {
		return AnalysisResult{}, parseFailure(docType, "data", err)
	}
	return result, nil
}

func parseBankStatement(data []byte) (*BankStatementData, error) {
	var in rawBankStatement
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	if in.Transactions == nil {
		return nil, &ParseError{Type: TypeBankStatement, Field: "transactions", Err: errors.New("missing")}
	}
	out := &BankStatementData{
		AccountDetails: BankAccountDetails{
			Bank:          in.Bank,
			Branch:        in.Branch,
			AccountNumber: in.AccountNumber,
			Owners:        in.Owners,
		},
		Transactions: make([]Transaction, 0, len(in.Transactions)),
		Summary: StatementSummary{
			StartingBalance: in.StartingBalance,
			EndingBalance:   in.EndingBalance,
			PeriodStart:     in.PeriodStart.Time,
			PeriodEnd:       in.PeriodEnd.Time,
		},
	}
	for _, t := range in.Transactions {
		out.Transactions = append(out.Transactions, Transaction{
			Date:        t.Date.Time,
			Description: t.Description,
			Amount:      t.Amount,
			Balance:     t.Balance,
			Type:        t.Type,
			Category:    t.Category,
		})
	}
	return out, nil
}

func parseSalarySlip(data []byte) (*SalarySlipData, error) {
	var in rawSalarySlip
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &SalarySlipData{
		Employee: EmployeeDetails{
			Name:     in.EmployeeName,
			ID:       in.EmployeeID,
			Position: in.Position,
			Employer: in.Employer,
		},
		Month: in.Month,
		Year:  in.Year,
		Salary: SalaryDetails{
			Gross:      in.GrossSalary,
			Net:        in.NetSalary,
			Deductions: in.Deductions,
			Additions:  in.Additions,
		},
	}, nil
}

func parseIDCard(data []byte) (*IDCardData, error) {
	var in rawIDCard
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &IDCardData{
		ID:           in.ID,
		FullName:     in.FullName,
		DateOfBirth:  in.DateOfBirth.Time,
		PlaceOfBirth: in.PlaceOfBirth,
		Nationality:  in.Nationality,
		DateIssued:   in.DateIssued.Time,
	}, nil
}

func parseIDAppendix(data []byte) (*IDAppendixData, error) {
	var in rawIDAppendix
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	out := &IDAppendixData{
		ID:           in.ID,
		Address:      in.Address,
		FamilyStatus: in.FamilyStatus,
	}
	for _, c := range in.Children {
		out.Children = append(out.Children, Child{Name: c.Name, ID: c.ID, DateOfBirth: c.DateOfBirth.Time})
	}
	return out, nil
}

func parsePropertyRecord(data []byte) (*PropertyRecordData, error) {
	var in rawPropertyRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	if in.Owners == nil {
		return nil, &ParseError{Type: TypePropertyRecord, Field: "owners", Err: errors.New("missing")}
	}
	out := &PropertyRecordData{
		Property: PropertyDetails{
			BlockNumber:     in.BlockNumber,
			ParcelNumber:    in.ParcelNumber,
			SubParcelNumber: in.SubParcelNumber,
			Address:         in.Address,
			Area:            in.Area,
			Type:            in.PropertyType,
		},
		Owners: in.Owners,
	}
	for _, m := range in.Mortgages {
		out.Mortgages = append(out.Mortgages, Mortgage{Bank: m.Bank, Amount: m.Amount, Date: m.Date.Time})
	}
	for _, l := range in.Liens {
		out.Liens = append(out.Liens, Lien{Type: l.Type, Beneficiary: l.Beneficiary, Date: l.Date.Time})
	}
	return out, nil
}

func parseFailure(docType DocumentType, field string, err error) error {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field = typeErr.Field
	}
	return &ParseError{Type: docType, Field: field, Err: err}
}

var flexDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
}

// flexDate accepts the date spellings the analysis service emits. Null and
// empty strings decode to the zero time.
type flexDate struct {
	time.Time
}

func (d *flexDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range flexDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("date: unrecognized format %q", s)
}
