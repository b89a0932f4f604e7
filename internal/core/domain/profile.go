package domain

import "time"

// CustomerProfile aggregates facts extracted across a customer's analyzed
// documents. It lives in memory only.
type CustomerProfile struct {
	PersonalInfo  PersonalInfo   `json:"personalInfo"`
	FinancialInfo *FinancialInfo `json:"financialInfo,omitempty"`
	Assets        *Assets        `json:"assets,omitempty"`
}

type PersonalInfo struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	DateOfBirth  time.Time `json:"dateOfBirth,omitzero"`
	PlaceOfBirth string    `json:"placeOfBirth,omitempty"`
	Nationality  string    `json:"nationality,omitempty"`
	Address      string    `json:"address,omitempty"`
	FamilyStatus string    `json:"familyStatus,omitempty"`
}

type FinancialInfo struct {
	BankAccounts      []BankAccount `json:"bankAccounts"`
	EmploymentHistory []Employment  `json:"employmentHistory"`
}

type BankAccount struct {
	Bank             string  `json:"bank"`
	Branch           string  `json:"branch"`
	AccountNumber    string  `json:"accountNumber"`
	LastKnownBalance float64 `json:"lastKnownBalance"`
}

type Employment struct {
	Employer        string          `json:"employer"`
	Position        string          `json:"position"`
	LastKnownSalary *SalarySnapshot `json:"lastKnownSalary,omitempty"`
}

type SalarySnapshot struct {
	Gross float64   `json:"gross"`
	Net   float64   `json:"net"`
	Date  time.Time `json:"date"`
}

type Assets struct {
	Properties []Property `json:"properties"`
}

type Property struct {
	Address   string     `json:"address"`
	Share     string     `json:"share"`
	Mortgages []Mortgage `json:"mortgages,omitempty"`
}

// CustomerID extracts the personal identifier carried by identity-bearing
// results. Other document types return "".
func (r AnalysisResult) CustomerID() string {
	switch {
	case r.IDCard != nil:
		return r.IDCard.ID
	case r.SalarySlip != nil:
		return r.SalarySlip.Employee.ID
	case r.IDAppendix != nil:
		return r.IDAppendix.ID
	default:
		return ""
	}
}

// Apply folds one analysis result into the profile.
func (p *CustomerProfile) Apply(result AnalysisResult, now time.Time) {
	switch {
	case result.IDCard != nil:
		p.applyIDCard(result.IDCard)
	case result.IDAppendix != nil:
		p.applyIDAppendix(result.IDAppendix)
	case result.SalarySlip != nil:
		p.applySalarySlip(result.SalarySlip, now)
	case result.BankStatement != nil:
		p.applyBankStatement(result.BankStatement)
	case result.PropertyRecord != nil:
		p.applyPropertyRecord(result.PropertyRecord)
	}
}

func (p *CustomerProfile) applyIDCard(data *IDCardData) {
	if data.ID != "" {
		p.PersonalInfo.ID = data.ID
	}
	p.PersonalInfo.FullName = data.FullName
	p.PersonalInfo.DateOfBirth = data.DateOfBirth
	p.PersonalInfo.PlaceOfBirth = data.PlaceOfBirth
	p.PersonalInfo.Nationality = data.Nationality
}

func (p *CustomerProfile) applyIDAppendix(data *IDAppendixData) {
	p.PersonalInfo.Address = data.Address
	p.PersonalInfo.FamilyStatus = data.FamilyStatus
}

func (p *CustomerProfile) financial() *FinancialInfo {
	if p.FinancialInfo == nil {
		p.FinancialInfo = &FinancialInfo{
			BankAccounts:      []BankAccount{},
			EmploymentHistory: []Employment{},
		}
	}
	return p.FinancialInfo
}

func (p *CustomerProfile) applySalarySlip(data *SalarySlipData, now time.Time) {
	fin := p.financial()
	salary := &SalarySnapshot{Gross: data.Salary.Gross, Net: data.Salary.Net, Date: now.UTC()}
	for i := range fin.EmploymentHistory {
		if fin.EmploymentHistory[i].Employer == data.Employee.Employer {
			fin.EmploymentHistory[i].Position = data.Employee.Position
			fin.EmploymentHistory[i].LastKnownSalary = salary
			return
		}
	}
	fin.EmploymentHistory = append(fin.EmploymentHistory, Employment{
		Employer:        data.Employee.Employer,
		Position:        data.Employee.Position,
		LastKnownSalary: salary,
	})
}

func (p *CustomerProfile) applyBankStatement(data *BankStatementData) {
	fin := p.financial()
	for i := range fin.BankAccounts {
		if fin.BankAccounts[i].AccountNumber == data.AccountDetails.AccountNumber {
			fin.BankAccounts[i].LastKnownBalance = data.Summary.EndingBalance
			return
		}
	}
	fin.BankAccounts = append(fin.BankAccounts, BankAccount{
		Bank:             data.AccountDetails.Bank,
		Branch:           data.AccountDetails.Branch,
		AccountNumber:    data.AccountDetails.AccountNumber,
		LastKnownBalance: data.Summary.EndingBalance,
	})
}

// applyPropertyRecord always appends; reprocessing the same record yields a
// duplicate entry.
func (p *CustomerProfile) applyPropertyRecord(data *PropertyRecordData) {
	if p.Assets == nil {
		p.Assets = &Assets{Properties: []Property{}}
	}
	share := "0"
	for _, owner := range data.Owners {
		if owner.ID == p.PersonalInfo.ID {
			share = owner.Share
			break
		}
	}
	p.Assets.Properties = append(p.Assets.Properties, Property{
		Address:   data.Property.Address,
		Share:     share,
		Mortgages: data.Mortgages,
	})
}

// Clone returns a deep copy safe to hand out of a shared store.
func (p CustomerProfile) Clone() CustomerProfile {
	out := CustomerProfile{PersonalInfo: p.PersonalInfo}
	if p.FinancialInfo != nil {
		fin := FinancialInfo{
			BankAccounts:      append([]BankAccount{}, p.FinancialInfo.BankAccounts...),
			EmploymentHistory: make([]Employment, len(p.FinancialInfo.EmploymentHistory)),
		}
		for i, emp := range p.FinancialInfo.EmploymentHistory {
			if emp.LastKnownSalary != nil {
				salary := *emp.LastKnownSalary
				emp.LastKnownSalary = &salary
			}
			fin.EmploymentHistory[i] = emp
		}
		out.FinancialInfo = &fin
	}
	if p.Assets != nil {
		assets := Assets{Properties: make([]Property, len(p.Assets.Properties))}
		for i, prop := range p.Assets.Properties {
			prop.Mortgages = append([]Mortgage(nil), prop.Mortgages...)
			assets.Properties[i] = prop
		}
		out.Assets = &assets
	}
	return out
}
