package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

// Services bundles the use cases a StateController orchestrates. Jobs and
// Exporter are optional.
type Services struct {
	Clients   *ClientDirectoryUseCase
	Documents *DocumentDirectoryUseCase
	Analysis  *AnalysisUseCase
	Profiles  *ProfileUseCase
	Jobs      *AnalysisJobUseCase
	Exporter  ports.LedgerExporter
}

// ControllerState is a point-in-time copy of a controller's state.
type ControllerState struct {
	Clients           []domain.Client              `json:"clients"`
	SelectedClientID  string                       `json:"selectedClientId,omitempty"`
	DocumentsByClient map[string][]domain.Document `json:"documentsByClient"`
	Loading           bool                         `json:"loading"`
}

// StateController holds one session's view of clients and documents. Local
// state changes only after the remote call that backs it succeeds.
type StateController struct {
	session        domain.Session
	svc            Services
	onUnauthorized func()
	now            func() time.Time

	mu                sync.Mutex
	clients           []domain.Client
	selectedClientID  string
	documentsByClient map[string][]domain.Document
	loading           int
}

func NewStateController(session domain.Session, svc Services, onUnauthorized func()) *StateController {
	if onUnauthorized == nil {
		onUnauthorized = func() {}
	}
	return &StateController{
		session:           session,
		svc:               svc,
		onUnauthorized:    onUnauthorized,
		now:               time.Now,
		documentsByClient: make(map[string][]domain.Document),
	}
}

func (c *StateController) Session() domain.Session { return c.session }

func (c *StateController) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := make(map[string][]domain.Document, len(c.documentsByClient))
	for id, list := range c.documentsByClient {
		docs[id] = append([]domain.Document(nil), list...)
	}
	return ControllerState{
		Clients:           append([]domain.Client(nil), c.clients...),
		SelectedClientID:  c.selectedClientID,
		DocumentsByClient: docs,
		Loading:           c.loading > 0,
	}
}

func (c *StateController) Clients() []domain.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Client(nil), c.clients...)
}

// LoadClients re-lists the root folder and replaces the client list. Clients
// already known to this controller keep their surrogate id.
func (c *StateController) LoadClients(ctx context.Context) ([]domain.Client, error) {
	done := c.beginLoading()
	defer done()

	listed, err := c.svc.Clients.ListClients(ctx, c.session.AccessToken, c.session.RootFolderID)
	if err != nil {
		return nil, c.observe(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	known := make(map[string]string, len(c.clients))
	for _, client := range c.clients {
		known[client.FolderID] = client.ID
	}
	kept := make(map[string]bool, len(listed))
	for i := range listed {
		if id, ok := known[listed[i].FolderID]; ok {
			listed[i].ID = id
		}
		kept[listed[i].ID] = true
	}
	for id := range c.documentsByClient {
		if !kept[id] {
			delete(c.documentsByClient, id)
		}
	}
	if c.selectedClientID != "" && !kept[c.selectedClientID] {
		c.selectedClientID = ""
	}
	c.clients = listed
	return append([]domain.Client(nil), listed...), nil
}

// SelectClient makes the client current, loads its documents with any
// stored analysis results attached and refreshes its document count.
func (c *StateController) SelectClient(ctx context.Context, clientID string) ([]domain.Document, error) {
	client, err := c.client(clientID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.selectedClientID = clientID
	c.mu.Unlock()

	return c.refreshDocuments(ctx, client)
}

func (c *StateController) CreateClient(ctx context.Context, name string) (domain.Client, error) {
	created, err := c.svc.Clients.CreateClient(ctx, c.session.AccessToken, c.session.RootFolderID, name, c.session.UserEmail)
	if err != nil {
		return domain.Client{}, c.observe(err)
	}

	c.mu.Lock()
	c.clients = append(c.clients, created)
	c.mu.Unlock()
	return created, nil
}

// UpdateDocument applies edit to the cached document and reflects it locally
// once the remote patch succeeded.
func (c *StateController) UpdateDocument(ctx context.Context, clientID, documentID string, edit domain.DocumentEdit) (domain.Document, error) {
	client, err := c.client(clientID)
	if err != nil {
		return domain.Document{}, err
	}
	current, err := c.document(ctx, client, documentID)
	if err != nil {
		return domain.Document{}, err
	}

	updated := edit.ApplyTo(current)
	if err := c.svc.Documents.UpdateDocument(ctx, c.session.AccessToken, updated); err != nil {
		return domain.Document{}, c.observe(err)
	}
	updated.LastModified = c.now().UTC()

	c.mu.Lock()
	docs := c.documentsByClient[clientID]
	for i := range docs {
		if docs[i].ID == updated.ID {
			docs[i] = updated
			break
		}
	}
	c.mu.Unlock()
	return updated, nil
}

// UploadAndRefresh uploads files into the client's folder and then re-lists
// it, also after a partial failure. The upload error wins over a refresh
// error.
func (c *StateController) UploadAndRefresh(ctx context.Context, clientID string, files []domain.UploadFile) ([]domain.Document, error) {
	client, err := c.client(clientID)
	if err != nil {
		return nil, err
	}

	uploaded, uploadErr := c.svc.Documents.UploadDocuments(ctx, c.session.AccessToken, client.FolderID, files)
	if uploadErr != nil {
		uploadErr = c.observe(uploadErr)
		if domain.IsKind(uploadErr, domain.ErrUnauthorized) {
			return nil, uploadErr
		}
	}
	slog.Info("documents_uploaded", "client_id", clientID, "uploaded", uploaded, "requested", len(files))

	docs, err := c.refreshDocuments(ctx, client)
	if uploadErr != nil {
		return docs, uploadErr
	}
	return docs, err
}

// AnalyzeDocument runs the analysis synchronously, stores the result in the
// client's ledger, folds it into the customer profile and attaches it to the
// cached document.
func (c *StateController) AnalyzeDocument(ctx context.Context, clientID, documentID string) (domain.LedgerEntry, error) {
	client, err := c.client(clientID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	doc, err := c.document(ctx, client, documentID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	result, err := c.svc.Analysis.Analyze(ctx, c.session.AccessToken, doc)
	if err != nil {
		return domain.LedgerEntry{}, c.observe(err)
	}
	entry, err := c.svc.Analysis.SaveAnalysisResult(ctx, c.session.AccessToken, client.FolderID, doc, result)
	if err != nil {
		return domain.LedgerEntry{}, c.observe(err)
	}
	if c.svc.Profiles != nil {
		if customerID, ok := c.svc.Profiles.FoldEntry(client.FolderID, entry); ok {
			slog.Info("profile_folded", "customer_id", customerID, "document_id", doc.ID)
		}
	}

	c.mu.Lock()
	docs := c.documentsByClient[clientID]
	for i := range docs {
		if docs[i].ID == documentID {
			stored := result
			docs[i].AnalysisResults = &stored
			break
		}
	}
	c.mu.Unlock()
	return entry, nil
}

// EnqueueAnalysis hands the analysis to the background worker.
func (c *StateController) EnqueueAnalysis(ctx context.Context, clientID, documentID string) (*domain.AnalysisJob, error) {
	if c.svc.Jobs == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue analysis", errors.New("asynchronous analysis is not configured"))
	}
	client, err := c.client(clientID)
	if err != nil {
		return nil, err
	}
	doc, err := c.document(ctx, client, documentID)
	if err != nil {
		return nil, err
	}
	job, err := c.svc.Jobs.Enqueue(ctx, c.session, doc)
	if err != nil {
		return nil, c.observe(err)
	}
	return job, nil
}

func (c *StateController) Ledger(ctx context.Context, clientID string) (domain.Ledger, error) {
	client, err := c.client(clientID)
	if err != nil {
		return nil, err
	}
	ledger, err := c.svc.Analysis.LoadAnalysisResults(ctx, c.session.AccessToken, client.FolderID)
	if err != nil {
		return nil, c.observe(err)
	}
	c.foldLedger(client, ledger)
	return ledger, nil
}

func (c *StateController) ExportLedger(ctx context.Context, clientID string) ([]byte, error) {
	if c.svc.Exporter == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export ledger", errors.New("ledger export is not configured"))
	}
	ledger, err := c.Ledger(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out, err := c.svc.Exporter.Export(ledger)
	if err != nil {
		return nil, fmt.Errorf("export ledger: %w", err)
	}
	return out, nil
}

func (c *StateController) refreshDocuments(ctx context.Context, client domain.Client) ([]domain.Document, error) {
	done := c.beginLoading()
	defer done()

	docs, err := c.svc.Documents.ListDocuments(ctx, c.session.AccessToken, client.FolderID)
	if err != nil {
		return nil, c.observe(err)
	}

	ledger, err := c.svc.Analysis.LoadAnalysisResults(ctx, c.session.AccessToken, client.FolderID)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnauthorized) {
			return nil, c.observe(err)
		}
		slog.Warn("ledger_load_failed", "client_id", client.ID, "folder_id", client.FolderID, "error", err)
	}
	c.foldLedger(client, ledger)
	for i := range docs {
		if entry, ok := ledger[docs[i].ID]; ok {
			result := entry.Results
			docs[i].AnalysisResults = &result
		}
	}

	c.mu.Lock()
	c.documentsByClient[client.ID] = docs
	for i := range c.clients {
		if c.clients[i].ID == client.ID {
			c.clients[i].DocumentCount = len(docs)
			break
		}
	}
	c.mu.Unlock()

	return append([]domain.Document(nil), docs...), nil
}

// foldLedger brings the profile store up to date with results that were
// analyzed elsewhere, such as by the background worker.
func (c *StateController) foldLedger(client domain.Client, ledger domain.Ledger) {
	if c.svc.Profiles == nil || len(ledger) == 0 {
		return
	}
	if n := c.svc.Profiles.FoldLedger(client.FolderID, ledger); n > 0 {
		slog.Debug("ledger_folded", "client_id", client.ID, "entries", n)
	}
}

func (c *StateController) client(clientID string) (domain.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		if client.ID == clientID {
			return client, nil
		}
	}
	return domain.Client{}, domain.WrapError(domain.ErrNotFound, "find client", fmt.Errorf("unknown client %q", clientID))
}

// document returns the cached document, loading the client's documents once
// when the cache does not have it yet.
func (c *StateController) document(ctx context.Context, client domain.Client, documentID string) (domain.Document, error) {
	if documentID == "" {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "find document", errors.New("document id is required"))
	}
	if doc, ok := c.cachedDocument(client.ID, documentID); ok {
		return doc, nil
	}
	if _, err := c.refreshDocuments(ctx, client); err != nil {
		return domain.Document{}, err
	}
	if doc, ok := c.cachedDocument(client.ID, documentID); ok {
		return doc, nil
	}
	return domain.Document{}, domain.WrapError(domain.ErrNotFound, "find document", fmt.Errorf("unknown document %q", documentID))
}

func (c *StateController) cachedDocument(clientID, documentID string) (domain.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.documentsByClient[clientID] {
		if doc.ID == documentID {
			return doc, true
		}
	}
	return domain.Document{}, false
}

func (c *StateController) beginLoading() func() {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
	}
}

// observe fires the unauthorized hook when the remote service rejected the
// session's credential.
func (c *StateController) observe(err error) error {
	if domain.IsKind(err, domain.ErrUnauthorized) {
		c.onUnauthorized()
	}
	return err
}
