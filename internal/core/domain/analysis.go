package domain

import "time"

// AnalysisResult is the structured extraction for one document. Exactly one
// of the per-type payloads is set, matching Type.
type AnalysisResult struct {
	DocumentID   string       `json:"documentId"`
	Type         DocumentType `json:"type"`
	Confidence   float64      `json:"confidence"`
	AnalysisDate time.Time    `json:"analysisDate"`

	BankStatement  *BankStatementData  `json:"bankStatement,omitempty"`
	SalarySlip     *SalarySlipData     `json:"salarySlip,omitempty"`
	IDCard         *IDCardData         `json:"idCard,omitempty"`
	IDAppendix     *IDAppendixData     `json:"idAppendix,omitempty"`
	PropertyRecord *PropertyRecordData `json:"propertyRecord,omitempty"`
}

type BankStatementData struct {
	AccountDetails BankAccountDetails `json:"accountDetails"`
	Transactions   []Transaction      `json:"transactions"`
	Summary        StatementSummary   `json:"summary"`
}

type BankAccountDetails struct {
	Bank          string   `json:"bank"`
	Branch        string   `json:"branch"`
	AccountNumber string   `json:"accountNumber"`
	Owners        []string `json:"owners"`
}

type Transaction struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Balance     float64   `json:"balance"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
}

type StatementSummary struct {
	StartingBalance float64   `json:"startingBalance"`
	EndingBalance   float64   `json:"endingBalance"`
	PeriodStart     time.Time `json:"periodStart"`
	PeriodEnd       time.Time `json:"periodEnd"`
}

type SalarySlipData struct {
	Employee EmployeeDetails `json:"employeeDetails"`
	Month    int             `json:"month"`
	Year     int             `json:"year"`
	Salary   SalaryDetails   `json:"salary"`
}

type EmployeeDetails struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Position string `json:"position"`
	Employer string `json:"employer"`
}

type SalaryDetails struct {
	Gross      float64        `json:"gross"`
	Net        float64        `json:"net"`
	Deductions []SalaryAdjust `json:"deductions"`
	Additions  []SalaryAdjust `json:"additions"`
}

type SalaryAdjust struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

type IDCardData struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	DateOfBirth  time.Time `json:"dateOfBirth"`
	PlaceOfBirth string    `json:"placeOfBirth"`
	Nationality  string    `json:"nationality"`
	DateIssued   time.Time `json:"dateIssued"`
}

type IDAppendixData struct {
	ID           string  `json:"id"`
	Address      string  `json:"address"`
	FamilyStatus string  `json:"familyStatus"`
	Children     []Child `json:"children,omitempty"`
}

type Child struct {
	Name        string    `json:"name"`
	ID          string    `json:"id"`
	DateOfBirth time.Time `json:"dateOfBirth"`
}

type PropertyRecordData struct {
	Property  PropertyDetails `json:"propertyDetails"`
	Owners    []PropertyOwner `json:"owners"`
	Mortgages []Mortgage      `json:"mortgages,omitempty"`
	Liens     []Lien          `json:"liens,omitempty"`
}

type PropertyDetails struct {
	BlockNumber     string  `json:"blockNumber"`
	ParcelNumber    string  `json:"parcelNumber"`
	SubParcelNumber string  `json:"subParcelNumber,omitempty"`
	Address         string  `json:"address"`
	Area            float64 `json:"area"`
	Type            string  `json:"type"`
}

type PropertyOwner struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Share string `json:"share"`
}

type Mortgage struct {
	Bank   string    `json:"bank"`
	Amount float64   `json:"amount"`
	Date   time.Time `json:"date"`
}

type Lien struct {
	Type        string    `json:"type"`
	Beneficiary string    `json:"beneficiary"`
	Date        time.Time `json:"date"`
}

// LedgerEntry is one document's record in a client folder's analysis ledger.
type LedgerEntry struct {
	DocumentID   string         `json:"documentId"`
	FileName     string         `json:"fileName"`
	Type         DocumentType   `json:"type"`
	AnalysisDate time.Time      `json:"analysisDate"`
	Results      AnalysisResult `json:"results"`
}

// Ledger maps document id to its latest analysis entry.
type Ledger map[string]LedgerEntry

// AnalysisState is the lifecycle of one analysis request.
type AnalysisState string

const (
	AnalysisSubmitted  AnalysisState = "submitted"
	AnalysisProcessing AnalysisState = "processing"
	AnalysisSucceeded  AnalysisState = "succeeded"
	AnalysisFailed     AnalysisState = "failed"
)

// AnalysisJob tracks an asynchronous analysis request.
type AnalysisJob struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"sessionId"`
	ClientFolderID string        `json:"clientFolderId"`
	DocumentID     string        `json:"documentId"`
	FileName       string        `json:"fileName"`
	MimeType       string        `json:"mimeType,omitempty"`
	Type           DocumentType  `json:"type"`
	Status         AnalysisState `json:"status"`
	Error          string        `json:"error,omitempty"`
	Pages          int           `json:"pages,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Document rebuilds the minimal document view needed to analyze the job.
func (j AnalysisJob) Document() Document {
	return Document{
		ID:       j.DocumentID,
		FileName: j.FileName,
		Type:     j.Type,
		FolderID: j.ClientFolderID,
		MimeType: j.MimeType,
	}
}

// AnalysisHandle identifies a submitted analysis on the remote service.
type AnalysisHandle struct {
	DocumentID string
	JobID      string
}

// JobStatus is one poll reading from the remote analysis service.
type JobStatus struct {
	Status  string
	Payload string
}

const (
	RemoteStatusProcessing = "processing"
	RemoteStatusError      = "error"
)
