package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/contacerta/reconciler/internal/auth"
	"github.com/contacerta/reconciler/internal/fiscal"
	"github.com/contacerta/reconciler/internal/ingestion"
	"github.com/contacerta/reconciler/internal/license"
	"github.com/contacerta/reconciler/internal/matching"
	"github.com/contacerta/reconciler/internal/report"
	"github.com/contacerta/reconciler/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	runRepo      *repository.RunRepo
	ingestionSvc *ingestion.Service
	authSvc      *auth.Service
	licenseSvc   *license.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// formUpload pulls one uploaded file out of the multipart form, deriving its
// format from the filename extension.
func formUpload(r *http.Request, field string) (ingestion.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return ingestion.Upload{}, fmt.Errorf("%s file is required", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingestion.Upload{}, fmt.Errorf("read %s: %w", field, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	return ingestion.Upload{Filename: header.Filename, Format: format, Data: data}, nil
}

// --- auth ---

// RegisterCompany performs first-run setup: it creates the installation's
// company together with its first operator account.
func (h *Handlers) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		NIF      string `json:"nif"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.NIF == "" {
		writeError(w, http.StatusBadRequest, "name and nif are required")
		return
	}

	company, err := h.authSvc.RegisterCompany(req.Name, req.NIF)
	if err != nil {
		if errors.Is(err, auth.ErrCompanyExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user, err := h.authSvc.CreateUser(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "admin user: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"company": company, "user": user})
}

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.authSvc.CreateUser(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserLimit), errors.Is(err, auth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrNoCompany):
			writeError(w, http.StatusPreconditionFailed, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, user, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// --- license ---

func (h *Handlers) GetLicenseStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.licenseSvc.Status())
}

// --- reconciliations ---

// launchedBy names the authenticated operator starting a run, or "" when the
// request carries no claims.
func launchedBy(r *http.Request) string {
	if claims := ClaimsFrom(r.Context()); claims != nil {
		return claims.Username
	}
	return ""
}

// ReconcileMovements accepts either a multipart form with the extrato and
// contabilidade files, or a JSON body carrying already-canonical movements
// with optional per-run matching overrides.
func (h *Handlers) ReconcileMovements(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req matching.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		outcome, err := h.ingestionSvc.ReconcileMovementsRequest(r.Context(), req, launchedBy(r))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, outcome)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	extrato, err := formUpload(r, "extrato")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contab, err := formUpload(r, "contabilidade")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.ingestionSvc.ReconcileMovements(r.Context(), extrato, contab, launchedBy(r))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handlers) ReconcileFiscal(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	agt, err := formUpload(r, "agt")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contab, err := formUpload(r, "contabilidade")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.ingestionSvc.ReconcileFiscal(r.Context(), agt, contab, launchedBy(r))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.RunFilter{
		Kind:  q.Get("kind"),
		Page:  parseIntDefault(q.Get("page"), 1),
		Limit: parseIntDefault(q.Get("limit"), 50),
	}

	runs, total, err := h.runRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// loadRun fetches a run by the URL id, writing the error response itself when
// it fails.
func (h *Handlers) loadRun(w http.ResponseWriter, r *http.Request) *repository.Run {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return nil
	}
	run, err := h.runRepo.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil
	}
	return run
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run := h.loadRun(w, r)
	if run == nil {
		return
	}

	var result json.RawMessage
	if run.ResultJSON != "" {
		result = json.RawMessage(run.ResultJSON)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":    run,
		"result": result,
	})
}

// decodeResults splits a stored run into exactly one non-nil result according
// to its kind.
func decodeResults(run *repository.Run) (*matching.Result, *fiscal.Result, error) {
	switch run.Kind {
	case repository.RunMovement:
		var res matching.Result
		if err := json.Unmarshal([]byte(run.ResultJSON), &res); err != nil {
			return nil, nil, fmt.Errorf("decode run %s: %w", run.ID, err)
		}
		return &res, nil, nil
	case repository.RunFiscal:
		var res fiscal.Result
		if err := json.Unmarshal([]byte(run.ResultJSON), &res); err != nil {
			return nil, nil, fmt.Errorf("decode run %s: %w", run.ID, err)
		}
		return nil, &res, nil
	default:
		return nil, nil, fmt.Errorf("unknown run kind %q", run.Kind)
	}
}

func (h *Handlers) GetRunExcel(w http.ResponseWriter, r *http.Request) {
	run := h.loadRun(w, r)
	if run == nil {
		return
	}

	movRes, fisRes, err := decodeResults(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var f *excelize.File
	if movRes != nil {
		f, err = report.MovementWorkbook(run, movRes)
	} else {
		f, err = report.FiscalWorkbook(run, fisRes)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "conciliacao_"+run.ID+".xlsx"))
	if _, err := f.WriteTo(w); err != nil {
		log.Printf("[api] write xlsx: %v", err)
	}
}

func (h *Handlers) GetRunPDF(w http.ResponseWriter, r *http.Request) {
	run := h.loadRun(w, r)
	if run == nil {
		return
	}

	movRes, fisRes, err := decodeResults(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var data []byte
	if movRes != nil {
		data, err = report.MovementPDF(run, movRes)
	} else {
		data, err = report.FiscalPDF(run, fisRes)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "conciliacao_"+run.ID+".pdf"))
	if _, err := w.Write(data); err != nil {
		log.Printf("[api] write pdf: %v", err)
	}
}

// --- dashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runRepo.GetDashboardStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":    stats,
		"license": h.licenseSvc.Status(),
	})
}
