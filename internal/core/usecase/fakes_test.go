package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

type memEntry struct {
	entry    domain.StorageEntry
	parentID string
	content  []byte
}

// memGateway is an in-memory remote file store.
type memGateway struct {
	mu      sync.Mutex
	seq     int
	order   []string
	entries map[string]*memEntry

	uploadErr      func(name string) error
	listErr        error
	updateErr      error
	downloadErr    error
	permissionErr  error
	findErr        error
	permissions    []string
	createdFolders int
	uploads        int
	contentUpdates int
	metadataPatch  []domain.MetadataPatch
}

func newMemGateway() *memGateway {
	return &memGateway{entries: make(map[string]*memEntry)}
}

func (g *memGateway) add(parentID string, entry domain.StorageEntry, content []byte) string {
	g.seq++
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("id-%d", g.seq)
	}
	if entry.Kind == "" {
		entry.Kind = domain.EntryFile
	}
	stamp := time.Date(2024, 1, 1, 0, 0, g.seq, 0, time.UTC)
	entry.CreatedTime = stamp
	entry.ModifiedTime = stamp
	g.entries[entry.ID] = &memEntry{entry: entry, parentID: parentID, content: content}
	g.order = append(g.order, entry.ID)
	return entry.ID
}

func (g *memGateway) addFolder(parentID, name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(parentID, domain.StorageEntry{Name: name, Kind: domain.EntryFolder, MimeType: "application/vnd.google-apps.folder"}, nil)
}

func (g *memGateway) addFile(parentID, name, description string, content []byte) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(parentID, domain.StorageEntry{Name: name, Description: description, MimeType: "application/pdf"}, content)
}

func (g *memGateway) content(id string) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[id]; ok {
		return e.content
	}
	return nil
}

func (g *memGateway) childNames(parentID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var names []string
	for _, id := range g.order {
		if e := g.entries[id]; e.parentID == parentID {
			names = append(names, e.entry.Name)
		}
	}
	return names
}

func (g *memGateway) FindFolderByName(_ context.Context, _ string, name string) (*domain.StorageEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	for _, id := range g.order {
		e := g.entries[id]
		if e.entry.IsFolder() && e.entry.Name == name {
			out := e.entry
			return &out, nil
		}
	}
	return nil, nil
}

func (g *memGateway) FindFileByName(_ context.Context, _ string, parentID, name string) (*domain.StorageEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	for _, id := range g.order {
		e := g.entries[id]
		if !e.entry.IsFolder() && e.parentID == parentID && e.entry.Name == name {
			out := e.entry
			return &out, nil
		}
	}
	return nil, nil
}

func (g *memGateway) CreateFolder(_ context.Context, _ string, name, parentID string) (*domain.StorageEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createdFolders++
	id := g.add(parentID, domain.StorageEntry{Name: name, Kind: domain.EntryFolder}, nil)
	out := g.entries[id].entry
	return &out, nil
}

func (g *memGateway) ListFolderContents(_ context.Context, _ string, folderID string) ([]domain.StorageEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	if folderID == "" {
		return []domain.StorageEntry{}, nil
	}
	var out []domain.StorageEntry
	for _, id := range g.order {
		if e := g.entries[id]; e.parentID == folderID {
			out = append(out, e.entry)
		}
	}
	return out, nil
}

func (g *memGateway) UploadFile(_ context.Context, _ string, folderID string, file domain.UploadFile) (*domain.StorageEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		if err := g.uploadErr(file.Name); err != nil {
			return nil, err
		}
	}
	g.uploads++
	id := g.add(folderID, domain.StorageEntry{Name: file.Name, MimeType: file.MimeType}, file.Content)
	out := g.entries[id].entry
	return &out, nil
}

func (g *memGateway) UpdateFileContent(_ context.Context, _ string, fileID, _ string, content []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[fileID]
	if !ok {
		return errors.New("file not found")
	}
	g.contentUpdates++
	e.content = content
	return nil
}

func (g *memGateway) UpdateMetadata(_ context.Context, _ string, fileID string, patch domain.MetadataPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	e, ok := g.entries[fileID]
	if !ok {
		return errors.New("file not found")
	}
	g.metadataPatch = append(g.metadataPatch, patch)
	if patch.Name != "" {
		e.entry.Name = patch.Name
	}
	e.entry.Description = patch.Description
	return nil
}

func (g *memGateway) DownloadFile(_ context.Context, _ string, fileID string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.downloadErr != nil {
		return nil, g.downloadErr
	}
	e, ok := g.entries[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return append([]byte(nil), e.content...), nil
}

func (g *memGateway) SetPermissions(_ context.Context, _ string, fileID, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.permissionErr != nil {
		return g.permissionErr
	}
	g.permissions = append(g.permissions, fileID+":"+email)
	return nil
}

// analysisAPIFake replays a scripted sequence of job statuses.
type analysisAPIFake struct {
	mu          sync.Mutex
	statuses    []domain.JobStatus
	polls       int
	submits     int
	submitErr   error
	raw         []byte
	schemaID    string
	standardize int
}

func (f *analysisAPIFake) Submit(context.Context, string, []byte) (domain.AnalysisHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return domain.AnalysisHandle{}, f.submitErr
	}
	return domain.AnalysisHandle{DocumentID: "remote-doc", JobID: "job-1"}, nil
}

func (f *analysisAPIFake) JobStatus(context.Context, string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.statuses) == 0 {
		return domain.JobStatus{Status: "completed"}, nil
	}
	idx := f.polls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *analysisAPIFake) Standardize(_ context.Context, _ string, schemaID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.standardize++
	f.schemaID = schemaID
	return "std-1", nil
}

func (f *analysisAPIFake) Standardization(context.Context, string) ([]byte, error) {
	return f.raw, nil
}

type inspectorFake struct {
	pages int
	err   error
}

func (f inspectorFake) Inspect(context.Context, string, []byte) (int, error) {
	return f.pages, f.err
}

type profileStoreFake struct {
	mu       sync.Mutex
	profiles map[string]*domain.CustomerProfile
	folders  map[string]string
}

func newProfileStoreFake() *profileStoreFake {
	return &profileStoreFake{
		profiles: make(map[string]*domain.CustomerProfile),
		folders:  make(map[string]string),
	}
}

func (s *profileStoreFake) Update(customerID string, fn func(*domain.CustomerProfile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[customerID]
	if !ok {
		p = &domain.CustomerProfile{}
		s.profiles[customerID] = p
	}
	fn(p)
}

func (s *profileStoreFake) Get(customerID string) (domain.CustomerProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[customerID]
	if !ok {
		return domain.CustomerProfile{}, false
	}
	return p.Clone(), true
}

func (s *profileStoreFake) List() []domain.CustomerProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CustomerProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	return out
}

func (s *profileStoreFake) BindFolder(folderID, customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[folderID] = customerID
}

func (s *profileStoreFake) CustomerForFolder(folderID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.folders[folderID]
	return id, ok
}

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	deleted  []string
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{sessions: make(map[string]domain.Session)}
}

func (s *sessionStoreFake) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *sessionStoreFake) Load(_ context.Context, id string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.WrapError(domain.ErrNotFound, "load session", errors.New("no such session"))
	}
	return session, nil
}

func (s *sessionStoreFake) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type identityFake struct {
	email string
	err   error
}

func (f identityFake) UserEmail(context.Context, string) (string, error) {
	return f.email, f.err
}

const salarySlipPayload = `{
  "documentId": "remote-doc",
  "confidence": 0.9,
  "data": {
    "employeeName": "Dana Levi",
    "employeeId": "123456782",
    "position": "Engineer",
    "employer": "Acme",
    "month": 5,
    "year": 2024,
    "grossSalary": 20000,
    "netSalary": 15000
  }
}`
