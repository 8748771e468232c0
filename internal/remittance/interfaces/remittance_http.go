package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pix-remittance/internal/audit"
	"pix-remittance/internal/auth"
	"pix-remittance/internal/observability/metrics"
	remittanceapp "pix-remittance/internal/remittance/application"
	remittance "pix-remittance/internal/remittance/domain"
	"pix-remittance/internal/remittance/infrastructure/spreadsheet"
)

const (
	basePath         = "/api/v1/remittances"
	defaultListLimit = 50
	maxListLimit     = 500
	maxUploadBytes   = 10 << 20
)

// RemittanceHandler handles remittance APIs.
type RemittanceHandler struct {
	service       *remittanceapp.Service
	originator    remittance.OriginatorProfile
	defaultTenant string
	tenantChecker auth.RemittanceTenantChecker
	auditLogger   audit.Logger
	logger        *log.Logger
}

// NewRemittanceHandler constructs a handler. originator is used when a request
// does not carry its own profile; defaultTenant when the request is not
// authenticated.
func NewRemittanceHandler(service *remittanceapp.Service, originator remittance.OriginatorProfile, defaultTenant string, tenantChecker auth.RemittanceTenantChecker, auditLogger audit.Logger, logger *log.Logger) (*RemittanceHandler, error) {
	if service == nil {
		return nil, errors.New("remittance handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RemittanceHandler{
		service:       service,
		originator:    originator,
		defaultTenant: defaultTenant,
		tenantChecker: tenantChecker,
		auditLogger:   auditLogger,
		logger:        logger,
	}, nil
}

// ServeHTTP handles remittance routes under /api/v1/remittances.
func (h *RemittanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == basePath && r.Method == http.MethodPost:
		h.handleGenerate(w, r)
		return
	case path == basePath && r.Method == http.MethodGet:
		h.handleList(w, r)
		return
	case path == basePath+"/upload" && r.Method == http.MethodPost:
		h.handleUpload(w, r)
		return
	case strings.HasPrefix(path, basePath+"/"):
		h.handleByID(w, r, strings.TrimPrefix(path, basePath+"/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type paymentRequest struct {
	BeneficiaryName string      `json:"beneficiary_name"`
	Amount          looseAmount `json:"amount"`
	DueDate         string      `json:"due_date"`
	Document        string      `json:"document"`
	Key             string      `json:"key"`
	BankCode        string      `json:"bank_code"`
	Branch          string      `json:"branch"`
	BranchDigit     string      `json:"branch_digit"`
	Account         string      `json:"account"`
	AccountDigit    string      `json:"account_digit"`
}

type generateRequest struct {
	TenantID   string                        `json:"tenant_id"`
	Originator *remittance.OriginatorProfile `json:"originator"`
	Payments   []paymentRequest              `json:"payments"`
}

// looseAmount accepts a JSON number or a string in any notation ParseAmount reads.
type looseAmount struct {
	raw    string
	number bool
}

func (a *looseAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*a = looseAmount{}
	case strings.HasPrefix(raw, `"`):
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*a = looseAmount{raw: value}
	default:
		*a = looseAmount{raw: raw, number: true}
	}
	return nil
}

// parse reads JSON numbers as plain decimals; "1.234" as a string is a thousand.
func (a looseAmount) parse() (decimal.Decimal, bool) {
	if a.number {
		amount, err := decimal.NewFromString(a.raw)
		return amount, err == nil
	}
	return remittance.ParseAmount(a.raw)
}

func (h *RemittanceHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && req.TenantID != "" && req.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	originator := h.originator
	if req.Originator != nil {
		// Only admins may debit a payer account other than the configured one.
		if !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleAdmin) {
			http.Error(w, "forbidden: originator override requires admin", http.StatusForbidden)
			return
		}
		originator = *req.Originator
	}

	payments, diags := decodePayments(req.Payments)
	rem, err := h.service.Generate(r.Context(), tenantID, payments, originator, diags)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rem == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, newSummary(rem))
	h.logAudit(r, rem, audit.ActionGenerate, map[string]any{
		"source":   "json",
		"sequence": rem.Sequence,
		"payments": rem.PaymentCount,
	})
}

func (h *RemittanceHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file error", http.StatusBadRequest)
		return
	}
	queue, err := spreadsheet.ReadQueue(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	rem, err := h.service.Generate(r.Context(), tenantID, queue.Payments(), h.originator, queue.Diagnostics)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rem == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	resp := uploadSummary{
		remittanceSummary: newSummary(rem),
		SheetRows:         queue.SheetRows(),
		BoletoRows:        len(queue.Boleto),
		NotToPay:          queue.NotToPay,
	}
	writeJSON(w, http.StatusCreated, resp)
	h.logAudit(r, rem, audit.ActionGenerate, map[string]any{
		"source":      "xlsx",
		"sequence":    rem.Sequence,
		"payments":    rem.PaymentCount,
		"boleto_rows": len(queue.Boleto),
	})
}

func (h *RemittanceHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxListLimit)
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	list, err := h.service.List(r.Context(), tenantID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := make([]remittanceSummary, 0, len(list))
	for i := range list {
		resp = append(resp, newSummary(&list[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RemittanceHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" && h.tenantChecker != nil {
		if err := h.tenantChecker.EnsureRemittanceTenant(r.Context(), tenantID, id); err != nil {
			respondTenantError(w, err)
			return
		}
	}
	rem, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, newSummary(rem))
		return
	}
	switch parts[1] {
	case "download":
		h.handleDownload(w, r, rem)
	case "summary.pdf":
		h.handleExport(w, r, rem, "pdf")
	case "summary.xlsx":
		h.handleExport(w, r, rem, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RemittanceHandler) handleDownload(w http.ResponseWriter, r *http.Request, rem *remittance.Remittance) {
	content, err := h.service.Content(r.Context(), rem)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=us-ascii")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rem.FileName))
	w.Header().Set("X-Content-Digest", "blake3="+rem.Digest)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
	h.logAudit(r, rem, audit.ActionDownload, map[string]any{"file_name": rem.FileName})
}

func (h *RemittanceHandler) handleExport(w http.ResponseWriter, r *http.Request, rem *remittance.Remittance, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildSummaryPDF(rem)
		contentType = "application/pdf"
	default:
		data, err = BuildSummaryXLSX(rem)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("remittance export failed: id=%s format=%s err=%v", rem.ID, format, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, rem, audit.ActionExport, map[string]any{"format": format})
}

func (h *RemittanceHandler) logAudit(r *http.Request, rem *remittance.Remittance, action string, meta map[string]any) {
	if h.auditLogger == nil || rem == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = rem.TenantID
	}
	payload, _ := json.Marshal(meta)
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: audit.ResourceRemittance,
		ResourceID:   rem.ID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("audit log failed: action=%s id=%s err=%v", action, rem.ID, err)
	}
}

// decodePayments converts request payments. Unparseable amounts and dates
// degrade to zero values and are reported with their 1-based position.
func decodePayments(reqs []paymentRequest) ([]remittance.PaymentInstruction, remittance.Diagnostics) {
	payments := make([]remittance.PaymentInstruction, 0, len(reqs))
	var diags remittance.Diagnostics
	for i, req := range reqs {
		p := remittance.PaymentInstruction{
			BeneficiaryName: req.BeneficiaryName,
			Document:        req.Document,
			Key:             req.Key,
			BankCode:        req.BankCode,
			Branch:          req.Branch,
			BranchDigit:     req.BranchDigit,
			Account:         req.Account,
			AccountDigit:    req.AccountDigit,
		}
		if amount, ok := req.Amount.parse(); ok {
			p.Amount = amount
		} else if p.Method() == remittance.MethodPIX {
			diags = append(diags, remittance.Diagnostic{
				Row:      i + 1,
				Field:    remittance.FieldAmount,
				Reason:   fmt.Sprintf("unparseable amount %q", req.Amount.raw),
				Fallback: "0",
			})
		}
		if due, ok := remittance.ParseDate(req.DueDate); ok {
			p.DueDate = due
		}
		payments = append(payments, p)
	}
	return payments, diags
}

type remittanceSummary struct {
	ID           string                 `json:"id"`
	TenantID     string                 `json:"tenant_id"`
	Sequence     int                    `json:"sequence"`
	FileName     string                 `json:"file_name"`
	PaymentCount int                    `json:"payment_count"`
	RecordCount  int                    `json:"record_count"`
	TotalCents   int64                  `json:"total_cents"`
	Total        string                 `json:"total"`
	Digest       string                 `json:"digest"`
	Diagnostics  remittance.Diagnostics `json:"diagnostics"`
	GeneratedAt  time.Time              `json:"generated_at"`
	DownloadURL  string                 `json:"download_url"`
}

type uploadSummary struct {
	remittanceSummary
	SheetRows  []int `json:"sheet_rows"`
	BoletoRows int   `json:"boleto_rows"`
	NotToPay   int   `json:"not_to_pay"`
}

func newSummary(rem *remittance.Remittance) remittanceSummary {
	diags := rem.Diagnostics
	if diags == nil {
		diags = remittance.Diagnostics{}
	}
	return remittanceSummary{
		ID:           rem.ID,
		TenantID:     rem.TenantID,
		Sequence:     rem.Sequence,
		FileName:     rem.FileName,
		PaymentCount: rem.PaymentCount,
		RecordCount:  rem.RecordCount,
		TotalCents:   rem.TotalCents,
		Total:        formatCents(rem.TotalCents),
		Digest:       rem.Digest,
		Diagnostics:  diags,
		GeneratedAt:  rem.GeneratedAt,
		DownloadURL:  basePath + "/" + rem.ID + "/download",
	}
}

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, remittance.ErrRemittanceNotFound), errors.Is(err, remittance.ErrContentNotArchived):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
