package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

func TestFoldWithoutIdentifierIsNoop(t *testing.T) {
	store := newProfileStoreFake()
	uc := NewProfileUseCase(store)

	_, folded := uc.Fold("folder-1", domain.AnalysisResult{
		Type:          domain.TypeBankStatement,
		BankStatement: &domain.BankStatementData{AccountDetails: domain.BankAccountDetails{AccountNumber: "42"}},
	})
	if folded {
		t.Fatalf("expected no fold without an identifier")
	}
	if len(store.List()) != 0 {
		t.Fatalf("expected no profile to be created")
	}
}

func TestFoldUsesFolderBindingForAnonymousDocuments(t *testing.T) {
	store := newProfileStoreFake()
	uc := NewProfileUseCase(store)

	customerID, folded := uc.Fold("folder-1", domain.AnalysisResult{
		Type:   domain.TypeIDCard,
		IDCard: &domain.IDCardData{ID: "123", FullName: "Dana Levi"},
	})
	if !folded || customerID != "123" {
		t.Fatalf("expected id card fold for 123, got %q %v", customerID, folded)
	}

	customerID, folded = uc.Fold("folder-1", domain.AnalysisResult{
		Type: domain.TypePropertyRecord,
		PropertyRecord: &domain.PropertyRecordData{
			Property: domain.PropertyDetails{Address: "1 Main St"},
			Owners:   []domain.PropertyOwner{{ID: "123", Share: "1/2"}},
		},
	})
	if !folded || customerID != "123" {
		t.Fatalf("expected property fold into bound customer, got %q %v", customerID, folded)
	}

	profile, err := uc.Get(context.Background(), "123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if profile.PersonalInfo.FullName != "Dana Levi" {
		t.Fatalf("unexpected personal info: %+v", profile.PersonalInfo)
	}
	if profile.Assets == nil || len(profile.Assets.Properties) != 1 || profile.Assets.Properties[0].Share != "1/2" {
		t.Fatalf("unexpected assets: %+v", profile.Assets)
	}
}

func TestFoldSalarySlipSetsProfileID(t *testing.T) {
	store := newProfileStoreFake()
	uc := NewProfileUseCase(store)

	uc.Fold("", domain.AnalysisResult{
		Type: domain.TypeSalarySlip,
		SalarySlip: &domain.SalarySlipData{
			Employee: domain.EmployeeDetails{ID: "555", Employer: "Acme", Position: "Dev"},
			Salary:   domain.SalaryDetails{Gross: 100, Net: 80},
		},
	})

	profile, err := uc.Get(context.Background(), "555")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if profile.PersonalInfo.ID != "555" {
		t.Fatalf("expected profile id to be set, got %q", profile.PersonalInfo.ID)
	}
	if profile.FinancialInfo == nil || len(profile.FinancialInfo.EmploymentHistory) != 1 {
		t.Fatalf("expected one employment entry, got %+v", profile.FinancialInfo)
	}
}

func TestFoldLedgerBindsIdentityBeforeAnonymousEntries(t *testing.T) {
	store := newProfileStoreFake()
	uc := NewProfileUseCase(store)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	ledger := domain.Ledger{
		"prop": {
			DocumentID:   "prop",
			Type:         domain.TypePropertyRecord,
			AnalysisDate: day,
			Results: domain.AnalysisResult{
				Type: domain.TypePropertyRecord,
				PropertyRecord: &domain.PropertyRecordData{
					Property: domain.PropertyDetails{Address: "1 Main St"},
					Owners:   []domain.PropertyOwner{{ID: "123", Share: "1/2"}},
				},
			},
		},
		"id": {
			DocumentID:   "id",
			Type:         domain.TypeIDCard,
			AnalysisDate: day.Add(time.Hour),
			Results: domain.AnalysisResult{
				Type:   domain.TypeIDCard,
				IDCard: &domain.IDCardData{ID: "123", FullName: "Dana Levi"},
			},
		},
	}

	if n := uc.FoldLedger("folder-1", ledger); n != 2 {
		t.Fatalf("expected 2 folded entries, got %d", n)
	}
	profile, err := uc.Get(context.Background(), "123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if profile.PersonalInfo.FullName != "Dana Levi" {
		t.Fatalf("unexpected personal info: %+v", profile.PersonalInfo)
	}
	if profile.Assets == nil || len(profile.Assets.Properties) != 1 {
		t.Fatalf("expected property folded into bound customer, got %+v", profile.Assets)
	}

	if n := uc.FoldLedger("folder-1", ledger); n != 0 {
		t.Fatalf("expected already folded entries to be skipped, got %d", n)
	}
	profile, _ = uc.Get(context.Background(), "123")
	if len(profile.Assets.Properties) != 1 {
		t.Fatalf("expected no duplicate property, got %d", len(profile.Assets.Properties))
	}
}

func TestGetProfileNotFound(t *testing.T) {
	_, err := NewProfileUseCase(newProfileStoreFake()).Get(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
