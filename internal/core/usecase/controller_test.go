package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

type controllerFixture struct {
	gw       *memGateway
	api      *analysisAPIFake
	profiles *profileStoreFake
	root     string
	ctrl     *StateController
	rejected int
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		gw:       newMemGateway(),
		api:      &analysisAPIFake{raw: []byte(salarySlipPayload)},
		profiles: newProfileStoreFake(),
	}
	f.root = f.gw.addFolder("", "brokerApp")
	session := domain.Session{ID: "s-1", AccessToken: "token", RootFolderID: f.root, UserEmail: "broker@example.com"}
	f.ctrl = NewStateController(session, Services{
		Clients:   NewClientDirectoryUseCase(f.gw),
		Documents: NewDocumentDirectoryUseCase(f.gw),
		Analysis:  NewAnalysisUseCase(f.gw, f.api, inspectorFake{}, AnalysisOptions{PollInterval: time.Millisecond}),
		Profiles:  NewProfileUseCase(f.profiles),
	}, func() { f.rejected++ })
	return f
}

func (f *controllerFixture) loadSingleClient(t *testing.T) domain.Client {
	t.Helper()
	clients, err := f.ctrl.LoadClients(context.Background())
	if err != nil {
		t.Fatalf("LoadClients() error = %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected one client, got %d", len(clients))
	}
	return clients[0]
}

func TestControllerSelectClientRefreshesCount(t *testing.T) {
	f := newControllerFixture(t)
	folder := f.gw.addFolder(f.root, "Alpha")
	client := f.loadSingleClient(t)

	f.gw.addFile(folder, "a.pdf", "", nil)
	f.gw.addFile(folder, "b.pdf", "", nil)

	docs, err := f.ctrl.SelectClient(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	state := f.ctrl.State()
	if state.SelectedClientID != client.ID {
		t.Fatalf("expected client to be selected")
	}
	if state.Clients[0].DocumentCount != 2 {
		t.Fatalf("expected refreshed count 2, got %d", state.Clients[0].DocumentCount)
	}
	if state.Loading {
		t.Fatalf("expected loading to be cleared")
	}
}

func TestControllerReloadKeepsSurrogateIDs(t *testing.T) {
	f := newControllerFixture(t)
	f.gw.addFolder(f.root, "Alpha")
	first := f.loadSingleClient(t)
	second := f.loadSingleClient(t)
	if first.ID != second.ID {
		t.Fatalf("expected id to survive reload within a workspace, got %q and %q", first.ID, second.ID)
	}
}

func TestControllerCreateClientAppendsOnlyOnSuccess(t *testing.T) {
	f := newControllerFixture(t)

	if _, err := f.ctrl.CreateClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if len(f.ctrl.Clients()) != 0 {
		t.Fatalf("expected state untouched after failure")
	}

	created, err := f.ctrl.CreateClient(context.Background(), "Beta")
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	clients := f.ctrl.Clients()
	if len(clients) != 1 || clients[0].ID != created.ID || clients[0].DocumentCount != 0 {
		t.Fatalf("unexpected clients: %+v", clients)
	}
}

func TestControllerUpdateDocumentWriteThenReflect(t *testing.T) {
	f := newControllerFixture(t)
	folder := f.gw.addFolder(f.root, "Alpha")
	docID := f.gw.addFile(folder, "scan.pdf", "", nil)
	client := f.loadSingleClient(t)
	if _, err := f.ctrl.SelectClient(context.Background(), client.ID); err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}

	newType := domain.TypeIDCard
	newName := "  id.pdf "
	f.gw.updateErr = errors.New("rejected")
	if _, err := f.ctrl.UpdateDocument(context.Background(), client.ID, docID, domain.DocumentEdit{FileName: &newName, Type: &newType}); !domain.IsKind(err, domain.ErrUpdateFailed) {
		t.Fatalf("expected update failed, got %v", err)
	}
	cached := f.ctrl.State().DocumentsByClient[client.ID][0]
	if cached.FileName != "scan.pdf" || cached.Type != domain.DefaultDocumentType {
		t.Fatalf("expected local state untouched after failure, got %+v", cached)
	}

	f.gw.updateErr = nil
	before := cached.LastModified
	updated, err := f.ctrl.UpdateDocument(context.Background(), client.ID, docID, domain.DocumentEdit{FileName: &newName, Type: &newType})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	cached = f.ctrl.State().DocumentsByClient[client.ID][0]
	if cached.FileName != "id.pdf" || cached.Type != domain.TypeIDCard {
		t.Fatalf("expected edit reflected locally, got %+v", cached)
	}
	if !updated.LastModified.After(before) {
		t.Fatalf("expected fresh lastModified stamp")
	}
}

func TestControllerUploadAndRefreshAfterPartialFailure(t *testing.T) {
	f := newControllerFixture(t)
	f.gw.addFolder(f.root, "Alpha")
	client := f.loadSingleClient(t)
	f.gw.uploadErr = func(name string) error {
		if name == "two.pdf" {
			return errors.New("rejected")
		}
		return nil
	}

	docs, err := f.ctrl.UploadAndRefresh(context.Background(), client.ID, []domain.UploadFile{
		{Name: "one.pdf"}, {Name: "two.pdf"}, {Name: "three.pdf"},
	})
	if !domain.IsKind(err, domain.ErrUploadFailed) {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected refreshed list with 1 document, got %d", len(docs))
	}
	if f.ctrl.Clients()[0].DocumentCount != 1 {
		t.Fatalf("expected count to follow the refreshed list")
	}
}

func TestControllerAnalyzeDocumentStoresAndFolds(t *testing.T) {
	f := newControllerFixture(t)
	folder := f.gw.addFolder(f.root, "Alpha")
	docID := f.gw.addFile(folder, "slip.pdf", domain.EncodeMetadata("", domain.TypeSalarySlip), []byte("%PDF"))
	client := f.loadSingleClient(t)

	entry, err := f.ctrl.AnalyzeDocument(context.Background(), client.ID, docID)
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if entry.DocumentID != docID || entry.Type != domain.TypeSalarySlip {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	ledger, err := f.ctrl.Ledger(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	if _, ok := ledger[docID]; !ok {
		t.Fatalf("expected ledger entry for %s", docID)
	}
	if _, ok := f.profiles.Get("123456782"); !ok {
		t.Fatalf("expected customer profile to be folded")
	}
	for _, doc := range f.ctrl.State().DocumentsByClient[client.ID] {
		if doc.ID == docID && doc.AnalysisResults == nil {
			t.Fatalf("expected analysis results attached to cached document")
		}
	}
}

func TestControllerSelectClientFoldsStoredResults(t *testing.T) {
	f := newControllerFixture(t)
	folder := f.gw.addFolder(f.root, "Alpha")
	docID := f.gw.addFile(folder, "slip.pdf", domain.EncodeMetadata("", domain.TypeSalarySlip), []byte("%PDF"))
	client := f.loadSingleClient(t)

	// Written by another process, so nothing was folded here yet.
	analysis := NewAnalysisUseCase(f.gw, f.api, inspectorFake{}, AnalysisOptions{})
	_, err := analysis.SaveAnalysisResult(context.Background(), "token", folder,
		domain.Document{ID: docID, FileName: "slip.pdf", Type: domain.TypeSalarySlip},
		domain.AnalysisResult{
			Type: domain.TypeSalarySlip,
			SalarySlip: &domain.SalarySlipData{
				Employee: domain.EmployeeDetails{ID: "555", Employer: "Acme", Position: "Dev"},
				Salary:   domain.SalaryDetails{Gross: 100, Net: 80},
			},
		})
	if err != nil {
		t.Fatalf("SaveAnalysisResult() error = %v", err)
	}
	if _, ok := f.profiles.Get("555"); ok {
		t.Fatalf("expected no profile before the ledger is loaded")
	}

	if _, err := f.ctrl.SelectClient(context.Background(), client.ID); err != nil {
		t.Fatalf("SelectClient() error = %v", err)
	}
	profile, ok := f.profiles.Get("555")
	if !ok {
		t.Fatalf("expected profile folded from the stored ledger")
	}
	if profile.FinancialInfo == nil || len(profile.FinancialInfo.EmploymentHistory) != 1 {
		t.Fatalf("unexpected financial info: %+v", profile.FinancialInfo)
	}

	if _, err := f.ctrl.Ledger(context.Background(), client.ID); err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	profile, _ = f.profiles.Get("555")
	if len(profile.FinancialInfo.EmploymentHistory) != 1 {
		t.Fatalf("expected re-folding to keep one employment entry, got %d", len(profile.FinancialInfo.EmploymentHistory))
	}
}

func TestControllerUnauthorizedTriggersHook(t *testing.T) {
	f := newControllerFixture(t)
	f.gw.listErr = domain.WrapError(domain.ErrUnauthorized, "list", errors.New("401"))

	if _, err := f.ctrl.LoadClients(context.Background()); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if f.rejected != 1 {
		t.Fatalf("expected hook to fire once, got %d", f.rejected)
	}
}

func TestControllerUnknownClient(t *testing.T) {
	f := newControllerFixture(t)
	if _, err := f.ctrl.SelectClient(context.Background(), "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestControllerEnqueueWithoutJobsConfigured(t *testing.T) {
	f := newControllerFixture(t)
	f.gw.addFolder(f.root, "Alpha")
	client := f.loadSingleClient(t)
	if _, err := f.ctrl.EnqueueAnalysis(context.Background(), client.ID, "doc"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestWorkspaceRegistryDropsRejectedSession(t *testing.T) {
	gw := newMemGateway()
	store := newSessionStoreFake()
	sessions := NewSessionService(identityFake{email: "a@b.c"}, NewClientDirectoryUseCase(gw), store, "")
	registry := NewWorkspaceRegistry(sessions, Services{
		Clients:   NewClientDirectoryUseCase(gw),
		Documents: NewDocumentDirectoryUseCase(gw),
		Analysis:  NewAnalysisUseCase(gw, &analysisAPIFake{}, nil, AnalysisOptions{}),
	})

	session, err := registry.Login(context.Background(), "token")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	ws, err := registry.Workspace(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Workspace() error = %v", err)
	}

	gw.listErr = domain.WrapError(domain.ErrUnauthorized, "list", errors.New("401"))
	if _, err := ws.LoadClients(context.Background()); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != session.ID {
		t.Fatalf("expected stored credential to be cleared, got %v", store.deleted)
	}
	if _, err := registry.Workspace(context.Background(), session.ID); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected re-login to be required, got %v", err)
	}
}
