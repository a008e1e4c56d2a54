// Package httpapi exposes the document indexing service over HTTP using
// chi for routing, with auth, CORS, and demo-mode middleware chained in
// front of a chi.Mux.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/services/activity"
	"github.com/docuindex/engine/internal/app/services/apikeys"
	"github.com/docuindex/engine/internal/app/services/indexer"
	"github.com/docuindex/engine/internal/app/services/locks"
	"github.com/docuindex/engine/internal/app/services/retention"
	"github.com/docuindex/engine/internal/app/services/roles"
	"github.com/docuindex/engine/internal/app/services/rootregistry"
	"github.com/docuindex/engine/internal/app/services/runs"
	"github.com/docuindex/engine/internal/app/services/scan"
	"github.com/docuindex/engine/internal/app/services/scheduler"
	"github.com/docuindex/engine/internal/app/services/search"
	"github.com/docuindex/engine/internal/app/services/virtualroots"
	"github.com/docuindex/engine/internal/app/storage"
	"github.com/docuindex/engine/infrastructure/logging"
)

// Services bundles every collaborator the handler dispatches to. It is
// built once by the composition root and handed to NewHandler.
type Services struct {
	Indexer      *indexer.Service
	Search       *search.Service
	Locks        *locks.Service
	RootRegistry *rootregistry.Service
	Scan         *scan.Service
	Scheduler    *scheduler.Scheduler
	Retention    *retention.Orchestrator
	Runs         *runs.Service
	APIKeys      *apikeys.Service
	Roles        *roles.Stack
	VirtualRoots *virtualroots.Service
	Activity     *activity.Service
}

type handler struct {
	svc    Services
	logger *logging.Logger
}

// recordActivity appends an Activity Log entry for an admin-initiated HTTP
// mutation. svc.Activity may be nil (e.g. in handler tests built without a
// full Services set), in which case this is a no-op.
func (h *handler) recordActivity(r *http.Request, action, clientID string, details map[string]interface{}) {
	if h.svc.Activity == nil {
		return
	}
	var clientIDPtr *string
	if clientID != "" {
		clientIDPtr = &clientID
	}
	if _, err := h.svc.Activity.Record(r.Context(), activity.RecordParams{
		Action:   action,
		ClientID: clientIDPtr,
		Details:  details,
	}); err != nil {
		h.logger.WithError(err).Warn("failed to record admin activity entry")
	}
}

// NewHandler builds the chi mux exposing the REST API of §6, wrapped in
// nothing itself; the auth/CORS/demo-mode middleware is applied by
// NewService around the returned handler.
func NewHandler(svc Services, logger *logging.Logger) http.Handler {
	h := &handler{svc: svc, logger: logger}
	r := chi.NewRouter()

	r.Get("/healthz", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/index", h.index)
		r.Post("/upload-and-index", h.uploadAndIndex)
		r.Post("/search", h.search)

		r.Get("/documents", h.listDocuments)
		r.Delete("/documents/{id}", h.deleteDocument)
		r.Post("/documents/bulk-delete", h.bulkDeleteDocuments)
		r.Post("/documents/export", h.exportDocuments)
		r.Post("/documents/restore", h.restoreDocuments)
		r.Get("/documents/encrypted", h.encryptedDocuments)

		r.Post("/documents/locks/acquire", h.acquireLock)
		r.Post("/documents/locks/release", h.releaseLock)
		r.Post("/documents/locks/force-release", h.forceReleaseLock)
		r.Get("/documents/locks/check", h.checkLock)
		r.Post("/documents/locks/cleanup", h.cleanupLocks)

		r.Get("/watched-folders", h.listFolders)
		r.Post("/watched-folders", h.addFolder)
		r.Put("/watched-folders/{id}", h.updateFolder)
		r.Delete("/watched-folders/{id}", h.removeFolder)
		r.Post("/watched-folders/{id}/scan", h.scanFolder)
		r.Post("/watched-folders/{id}/transition-scope", h.transitionScope)

		r.Get("/scheduler/status", h.schedulerStatus)
		r.Post("/scheduler/pause", h.schedulerPause)
		r.Post("/scheduler/resume", h.schedulerResume)
		r.Post("/scheduler/scan-now", h.schedulerScanNow)

		r.Post("/retention/run", h.retentionRun)

		r.Get("/indexing/runs", h.listRuns)
		r.Get("/indexing/runs/summary", h.runsSummary)
		r.Get("/indexing/runs/{id}", h.getRun)

		r.Get("/compliance/export", h.complianceExport)

		r.Get("/virtual-roots", h.listVirtualRoots)
		r.Post("/virtual-roots", h.registerVirtualRoot)
		r.Get("/virtual-roots/resolve", h.resolveVirtualRoot)
		r.Delete("/virtual-roots/{id}", h.removeVirtualRoot)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthReport(r.Context()))
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceURI      string                 `json:"source_uri"`
		ForceReindex   bool                   `json:"force_reindex"`
		Metadata       map[string]interface{} `json:"metadata"`
		OCRMode        string                 `json:"ocr_mode"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	result, err := h.svc.Indexer.IndexDocument(r.Context(), indexer.IndexParams{
		SourceURI:      body.SourceURI,
		ForceReindex:   body.ForceReindex,
		CustomMetadata: body.Metadata,
		OCRMode:        body.OCRMode,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) uploadAndIndex(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeAPIError(w, apperrors.Wrap(apperrors.PathValidationFailed, "parse multipart form", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, apperrors.Wrap(apperrors.PathValidationFailed, "file form field is required", err))
		return
	}
	defer file.Close()

	var metadata map[string]interface{}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			writeAPIError(w, apperrors.Wrap(apperrors.PathValidationFailed, "invalid metadata json", err))
			return
		}
	}
	if dt := r.FormValue("document_type"); dt != "" {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["document_type"] = dt
	}

	forceReindex, _ := strconv.ParseBool(r.FormValue("force_reindex"))
	result, err := h.svc.Indexer.UploadAndIndex(r.Context(), indexer.UploadParams{
		Reader:          file,
		CustomSourceURI: r.FormValue("custom_source_uri"),
		OriginalName:    header.Filename,
		ForceReindex:    forceReindex,
		CustomMetadata:  metadata,
		OCRMode:         r.FormValue("ocr_mode"),
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string                 `json:"query"`
		TopK      int                    `json:"top_k"`
		MinScore  float64                `json:"min_score"`
		Filters   map[string]interface{} `json:"filters"`
		UseHybrid bool                   `json:"use_hybrid"`
		Alpha     float64                `json:"alpha"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}

	filters := make([]search.MetadataFilter, 0, len(body.Filters))
	for path, value := range body.Filters {
		filters = append(filters, search.MetadataFilter{Path: path, Value: value})
	}

	results, err := h.svc.Search.Search(r.Context(), search.Params{
		Query:     body.Query,
		TopK:      body.TopK,
		MinScore:  body.MinScore,
		Filters:   filters,
		UseHybrid: body.UseHybrid,
		Alpha:     body.Alpha,
		CallerID:  callerID(r.Context()),
		IsAdmin:   callerIsAdmin(r.Context()),
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := paginationParams(q)
	filter := storage.ChunkFilter{
		SourcePrefix: q.Get("source_prefix"),
		SortBy:       q.Get("sort_by"),
		SortDir:      q.Get("sort_dir"),
		Limit:        limit,
		Offset:       offset,
		UserID:       callerID(r.Context()),
		IsAdmin:      callerIsAdmin(r.Context()),
	}
	chunks, total, err := h.svc.Indexer.ListDocuments(r.Context(), filter)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": chunks, "total": total})
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.Indexer.DeleteDocument(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunks_deleted": n})
}

// filterDTO is the wire shape of a chunk filter, snake_case per §6, mapped
// onto storage.ChunkFilter (whose field names follow Go convention rather
// than the wire format).
type filterDTO struct {
	DocumentID         string                 `json:"document_id"`
	SourcePrefix       string                 `json:"source_prefix"`
	MetadataEquals     map[string]interface{} `json:"metadata_equals"`
	IncludeQuarantined bool                   `json:"include_quarantined"`
	OnlyQuarantined    bool                   `json:"only_quarantined"`
}

func (f filterDTO) toChunkFilter(callerID string, isAdmin bool) storage.ChunkFilter {
	return storage.ChunkFilter{
		DocumentID:         f.DocumentID,
		SourcePrefix:       f.SourcePrefix,
		MetadataEquals:     f.MetadataEquals,
		IncludeQuarantined: f.IncludeQuarantined,
		OnlyQuarantined:    f.OnlyQuarantined,
		UserID:             callerID,
		IsAdmin:            isAdmin,
	}
}

func (h *handler) bulkDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filters filterDTO `json:"filters"`
		Preview bool      `json:"preview"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	filter := body.Filters.toChunkFilter(callerID(r.Context()), callerIsAdmin(r.Context()))
	n, preview, err := h.svc.Indexer.BulkDelete(r.Context(), indexer.BulkDeleteParams{Filter: filter, Preview: body.Preview})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if preview != nil {
		writeJSON(w, http.StatusOK, preview)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunks_deleted": n})
}

func (h *handler) exportDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filters filterDTO `json:"filters"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	filter := body.Filters.toChunkFilter(callerID(r.Context()), callerIsAdmin(r.Context()))
	chunks, err := h.svc.Indexer.ExportDocuments(r.Context(), filter)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunks": chunks})
}

func (h *handler) restoreDocuments(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Chunks []domain.Chunk `json:"chunks"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	n, err := h.svc.Indexer.RestoreDocuments(r.Context(), body.Chunks)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunks_restored": n})
}

func (h *handler) encryptedDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"source_uris": h.svc.Indexer.EncryptedPDFs()})
}

func (h *handler) acquireLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceURI    string  `json:"source_uri"`
		ClientID     string  `json:"client_id"`
		TTLSeconds   int     `json:"ttl_seconds"`
		LockReason   string  `json:"lock_reason"`
		RootID       *string `json:"root_id"`
		RelativePath *string `json:"relative_path"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	result, err := h.svc.Locks.AcquireLock(r.Context(), locks.AcquireParams{
		SourceURI:    body.SourceURI,
		ClientID:     body.ClientID,
		TTL:          time.Duration(body.TTLSeconds) * time.Second,
		LockReason:   body.LockReason,
		RootID:       body.RootID,
		RelativePath: body.RelativePath,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !result.OK {
		writeJSON(w, http.StatusConflict, map[string]interface{}{"ok": false, "holder": result.Holder})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) releaseLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceURI    string  `json:"source_uri"`
		ClientID     string  `json:"client_id"`
		RootID       *string `json:"root_id"`
		RelativePath *string `json:"relative_path"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	if err := h.svc.Locks.ReleaseLock(r.Context(), body.SourceURI, body.ClientID, body.RootID, body.RelativePath); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *handler) forceReleaseLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceURI    string  `json:"source_uri"`
		RootID       *string `json:"root_id"`
		RelativePath *string `json:"relative_path"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	if !callerIsAdmin(r.Context()) {
		writeAPIError(w, apperrors.New(apperrors.Forbidden, "force-release requires admin"))
		return
	}
	if err := h.svc.Locks.ForceReleaseLock(r.Context(), body.SourceURI, body.RootID, body.RelativePath); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *handler) checkLock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceURI := q.Get("source_uri")
	active, held, err := h.svc.Locks.CheckLock(r.Context(), sourceURI, nil, nil)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"held": held, "lock": active})
}

func (h *handler) cleanupLocks(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Locks.CleanupExpiredLocks(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locks_removed": n})
}

func (h *handler) listFolders(w http.ResponseWriter, r *http.Request) {
	enabledOnly, _ := strconv.ParseBool(r.URL.Query().Get("enabled_only"))
	folders, err := h.svc.RootRegistry.ListFolders(r.Context(), enabledOnly, nil, nil)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"folders": folders})
}

func (h *handler) addFolder(w http.ResponseWriter, r *http.Request) {
	var body rootregistry.AddFolderParams
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	folder, err := h.svc.RootRegistry.AddFolder(r.Context(), body)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (h *handler) updateFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body rootregistry.UpdateFolderParams
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	folder, err := h.svc.RootRegistry.UpdateFolder(r.Context(), id, body)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *handler) removeFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.RootRegistry.RemoveFolder(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) scanFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	folder, err := h.svc.RootRegistry.GetFolder(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if folder.ExecutionScope == domain.ScopeServer && clientID != "" {
		writeAPIError(w, apperrors.New(apperrors.NotServerScope, "server-scope root cannot be scanned as client-attributed"))
		return
	}
	params := scan.Params{
		FolderPath: folder.FolderPath,
		RootID:     &folder.RootID,
		Scope:      folder.ExecutionScope,
		Identity:   folder.RootID,
		Trigger:    domain.TriggerManual,
	}
	if clientID != "" {
		params.ClientID = &clientID
	}
	result, _, err := h.svc.Scan.Scan(r.Context(), params)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) transitionScope(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		TargetScope domain.ExecutionScope `json:"target_scope"`
		ExecutorID  *string               `json:"executor_id"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	folder, err := h.svc.RootRegistry.TransitionScope(r.Context(), id, body.TargetScope, body.ExecutorID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (h *handler) schedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Scheduler.Status())
}

func (h *handler) schedulerPause(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RootID string `json:"root_id"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	if err := h.svc.Scheduler.Pause(r.Context(), body.RootID); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *handler) schedulerResume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RootID string `json:"root_id"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	if err := h.svc.Scheduler.Resume(r.Context(), body.RootID); err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *handler) schedulerScanNow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RootID string `json:"root_id"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	result, err := h.svc.Scheduler.ScanNow(r.Context(), body.RootID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) retentionRun(w http.ResponseWriter, r *http.Request) {
	result := h.svc.Retention.ApplyRetention(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r.URL.Query())
	runList, err := h.svc.Runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runList})
}

func (h *handler) runsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Runs.Summary(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.svc.Runs.GetRun(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handler) complianceExport(w http.ResponseWriter, r *http.Request) {
	if !callerIsAdmin(r.Context()) {
		writeAPIError(w, apperrors.New(apperrors.Forbidden, "compliance export requires admin"))
		return
	}
	writeComplianceZIP(r.Context(), w, h.svc)
}

func (h *handler) listVirtualRoots(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "client_id is required"))
		return
	}
	roots, err := h.svc.VirtualRoots.ListForClient(r.Context(), clientID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"virtual_roots": roots})
}

func (h *handler) registerVirtualRoot(w http.ResponseWriter, r *http.Request) {
	var body virtualroots.RegisterParams
	if err := decodeJSON(r.Body, &body); err != nil {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "invalid request body"))
		return
	}
	root, err := h.svc.VirtualRoots.Register(r.Context(), body)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	h.recordActivity(r, "virtual_root_registered", body.ClientID, map[string]interface{}{
		"name":       body.Name,
		"local_path": body.LocalPath,
	})
	writeJSON(w, http.StatusCreated, root)
}

func (h *handler) resolveVirtualRoot(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	clientID := r.URL.Query().Get("client_id")
	if name == "" || clientID == "" {
		writeAPIError(w, apperrors.New(apperrors.PathValidationFailed, "name and client_id are required"))
		return
	}
	root, found, err := h.svc.VirtualRoots.Resolve(r.Context(), name, clientID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !found {
		writeAPIError(w, apperrors.New(apperrors.VirtualRootNotFound, "virtual root not found"))
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (h *handler) removeVirtualRoot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.VirtualRoots.Remove(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	h.recordActivity(r, "virtual_root_removed", "", map[string]interface{}{"virtual_root_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeAPIError(w http.ResponseWriter, err error) {
	status, envelope := apperrors.ToEnvelope(err)
	writeJSON(w, status, envelope)
}

func paginationParams(q url.Values) (limit, offset int) {
	limit = 50
	offset = 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
