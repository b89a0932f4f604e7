package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/broker-docs/internal/adapters/http/openapi"
	"github.com/kirillkom/broker-docs/internal/config"
	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
	"github.com/kirillkom/broker-docs/internal/observability/metrics"
)

const (
	serviceName     = "api"
	xlsxMimeType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	multipartMemory = 32 << 20
)

type Router struct {
	cfg        config.Config
	workspaces ports.WorkspaceProvider
	jobs       ports.AnalysisJobReader
	profiles   ports.ProfileReader

	metrics   *metrics.HTTPServerMetrics
	validator *openapi.Validator
}

func NewRouter(
	cfg config.Config,
	workspaces ports.WorkspaceProvider,
	jobs ports.AnalysisJobReader,
	profiles ports.ProfileReader,
) *Router {
	return &Router{
		cfg:        cfg,
		workspaces: workspaces,
		jobs:       jobs,
		profiles:   profiles,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithValidator(v *openapi.Validator) *Router {
	rt.validator = v
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/session", rt.login)
	mux.HandleFunc("DELETE /v1/session", rt.logout)
	mux.HandleFunc("GET /v1/clients", rt.listClients)
	mux.HandleFunc("POST /v1/clients", rt.createClient)
	mux.HandleFunc("GET /v1/clients/{clientId}/documents", rt.selectClient)
	mux.HandleFunc("POST /v1/clients/{clientId}/documents", rt.uploadDocuments)
	mux.HandleFunc("PATCH /v1/clients/{clientId}/documents/{documentId}", rt.updateDocument)
	mux.HandleFunc("POST /v1/clients/{clientId}/documents/{documentId}/analysis", rt.analyzeDocument)
	mux.HandleFunc("GET /v1/clients/{clientId}/analysis", rt.getLedger)
	mux.HandleFunc("GET /v1/clients/{clientId}/analysis.xlsx", rt.exportLedger)
	mux.HandleFunc("GET /v1/analysis-jobs/{jobId}", rt.getAnalysisJob)
	mux.HandleFunc("GET /v1/profiles", rt.listProfiles)
	mux.HandleFunc("GET /v1/profiles/{customerId}", rt.getProfile)

	var handler http.Handler = mux
	if rt.validator != nil {
		handler = validationMiddleware(handler, rt.validator)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "login", errors.New("access_token is required")))
		return
	}

	session, err := rt.workspaces.Login(r.Context(), req.AccessToken)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set(sessionHeader, session.ID)
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.workspaces.Logout(r.Context(), sessionID); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listClients(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clients, err := ws.LoadClients(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (rt *Router) createClient(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}

	client, err := ws.CreateClient(r.Context(), req.Name)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (rt *Router) selectClient(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clientID, err := pathParam(r, "clientId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	docs, err := ws.SelectClient(r.Context(), clientID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": nonNilDocuments(docs)})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clientID, err := pathParam(r, "clientId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	if rt.cfg.APIMaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}

	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUpload(header)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		files = append(files, file)
	}

	docs, err := ws.UploadAndRefresh(r.Context(), clientID, files)
	if rt.metrics != nil {
		rt.metrics.RecordUploadBatch(serviceName, len(files), err)
	}
	if err != nil {
		status := rt.errorStatus(r, err)
		writeJSON(w, status, uploadErrorResponse{Error: err.Error(), Documents: docs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": nonNilDocuments(docs)})
}

func (rt *Router) updateDocument(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clientID, err := pathParam(r, "clientId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	documentID, err := pathParam(r, "documentId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	var edit domain.DocumentEdit
	if err := decodeJSONBody(r, &edit); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if edit.Type != nil && !edit.Type.Valid() {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "update document", fmt.Errorf("unknown document type %q", *edit.Type)))
		return
	}
	if edit.FileName != nil && strings.TrimSpace(*edit.FileName) == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "update document", errors.New("fileName must not be empty")))
		return
	}

	doc, err := ws.UpdateDocument(r.Context(), clientID, documentID, edit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clientID, err := pathParam(r, "clientId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	documentID, err := pathParam(r, "documentId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	async, err := boolQueryParam(r, "async")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	start := time.Now()
	if async {
		job, err := ws.EnqueueAnalysis(r.Context(), clientID, documentID)
		rt.recordAnalysis("async", start, err)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/analysis-jobs/"+job.ID)
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	entry, err := ws.AnalyzeDocument(r.Context(), clientID, documentID)
	rt.recordAnalysis("sync", start, err)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) getLedger(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clientID, err := pathParam(r, "clientId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	ledger, err := ws.Ledger(r.Context(), clientID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if ledger == nil {
		ledger = domain.Ledger{}
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (rt *Router) exportLedger(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	clientID, err := pathParam(r, "clientId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	workbook, err := ws.ExportLedger(r.Context(), clientID)
	if rt.metrics != nil {
		rt.metrics.RecordLedgerExport(serviceName, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="analysis-%s.xlsx"`, clientID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(workbook)
}

func (rt *Router) getAnalysisJob(w http.ResponseWriter, r *http.Request) {
	ws, ok := rt.workspace(w, r)
	if !ok {
		return
	}
	jobID, err := pathParam(r, "jobId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.jobs == nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrNotFound, "get analysis job", errors.New("asynchronous analysis is not configured")))
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	// Jobs are visible to the session that enqueued them only.
	if job.SessionID != ws.Session().ID {
		rt.writeError(w, r, domain.WrapError(domain.ErrNotFound, "get analysis job", fmt.Errorf("analysis job %s", jobID)))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) listProfiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := rt.workspace(w, r); !ok {
		return
	}
	profiles, err := rt.profiles.List(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []domain.CustomerProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := rt.workspace(w, r); !ok {
		return
	}
	customerID, err := pathParam(r, "customerId")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	profile, err := rt.profiles.Get(r.Context(), customerID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) workspace(w http.ResponseWriter, r *http.Request) (ports.Workspace, bool) {
	sessionID, err := sessionIDFromRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return nil, false
	}
	ws, err := rt.workspaces.Workspace(r.Context(), sessionID)
	if err != nil {
		rt.writeError(w, r, err)
		return nil, false
	}
	return ws, true
}

func (rt *Router) recordAnalysis(mode string, start time.Time, err error) {
	if rt.metrics != nil {
		rt.metrics.RecordAnalysis(serviceName, mode, time.Since(start), err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadErrorResponse struct {
	Error     string            `json:"error"`
	Documents []domain.Document `json:"documents"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, rt.errorStatus(r, err), errorResponse{Error: err.Error()})
}

func (rt *Router) errorStatus(r *http.Request, err error) int {
	status := mapErrorToHTTPStatus(err)
	switch {
	case status == http.StatusUnauthorized:
		if rt.metrics != nil {
			rt.metrics.RecordUnauthorized(serviceName)
		}
	case status >= http.StatusInternalServerError:
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	return status
}

func readUpload(header *multipart.FileHeader) (domain.UploadFile, error) {
	file, err := header.Open()
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(content)
	}
	return domain.UploadFile{Name: header.Filename, MimeType: mimeType, Content: content}, nil
}

func nonNilDocuments(docs []domain.Document) []domain.Document {
	if docs == nil {
		return []domain.Document{}
	}
	return docs
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
