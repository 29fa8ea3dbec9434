package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"boekie.app/internal/access"
	"boekie.app/internal/finance"
)

type invoiceResponse struct {
	ID              string `json:"id"`
	Number          string `json:"number"`
	ClientName      string `json:"client_name"`
	IssueDate       string `json:"issue_date"`
	AmountExclCents int64  `json:"amount_excl_cents"`
	BTWCents        int64  `json:"btw_cents"`
	BTWRate         int    `json:"btw_rate"`
	Status          string `json:"status"`
}

type expenseResponse struct {
	ID              string `json:"id"`
	Supplier        string `json:"supplier"`
	Date            string `json:"date"`
	AmountExclCents int64  `json:"amount_excl_cents"`
	BTWCents        int64  `json:"btw_cents"`
	BTWRate         int    `json:"btw_rate"`
	Category        string `json:"category"`
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, err := a.resolveTenant(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := requirePermission(tc, access.PermRead); err != nil {
		a.mapError(w, r, err)
		return
	}
	invoices, err := a.finance.ListInvoices(r.Context(), tc.CompanyID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, invoiceView(inv))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": tc.CompanyID,
		"invoices":   out,
	})
}

func invoiceView(inv *finance.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:              inv.ID,
		Number:          inv.Number,
		ClientName:      inv.ClientName,
		IssueDate:       inv.IssueDate.UTC().Format("2006-01-02"),
		AmountExclCents: inv.AmountExclCents,
		BTWCents:        finance.BTWAmountCents(inv.AmountExclCents, inv.Rate),
		BTWRate:         int(inv.Rate),
		Status:          inv.Status,
	}
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, err := a.resolveTenant(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := requirePermission(tc, access.PermRead); err != nil {
		a.mapError(w, r, err)
		return
	}
	expenses, err := a.finance.ListExpenses(r.Context(), tc.CompanyID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": tc.CompanyID,
		"expenses":   out,
	})
}

func expenseView(e *finance.Expense) expenseResponse {
	return expenseResponse{
		ID:              e.ID,
		Supplier:        e.Supplier,
		Date:            e.Date.UTC().Format("2006-01-02"),
		AmountExclCents: e.AmountExclCents,
		BTWCents:        finance.BTWAmountCents(e.AmountExclCents, e.Rate),
		BTWRate:         int(e.Rate),
		Category:        e.Category,
	}
}

func (a *API) handleBTWSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, err := a.resolveTenant(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := requirePermission(tc, access.PermVAT); err != nil {
		a.mapError(w, r, err)
		return
	}
	yearStr := r.URL.Query().Get("year")
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "year must be a number")
		return
	}
	summary, err := a.finance.BTWSummaryForYear(r.Context(), tc.CompanyID, year)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	quarters := make([]map[string]any, 0, 4)
	for _, q := range summary.Quarters {
		quarters = append(quarters, map[string]any{
			"quarter":          q.Quarter,
			"revenue_cents":    q.RevenueCents,
			"output_btw_cents": q.OutputBTWCents,
			"input_btw_cents":  q.InputBTWCents,
			"payable_cents":    q.PayableCents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": summary.CompanyID,
		"year":       summary.Year,
		"quarters":   quarters,
	})
}

type exportRow struct {
	Type        string `json:"type"`
	Reference   string `json:"reference"`
	Counterpart string `json:"counterpart"`
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
	BTWCents    int64  `json:"btw_cents"`
}

// handleExport is the flat transaction listing an external bookkeeping
// package pulls. It needs the export permission on top of read.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, err := a.resolveTenant(r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := requirePermission(tc, access.PermExport); err != nil {
		a.mapError(w, r, err)
		return
	}
	invoices, err := a.finance.ListInvoices(r.Context(), tc.CompanyID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	expenses, err := a.finance.ListExpenses(r.Context(), tc.CompanyID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	rows := make([]exportRow, 0, len(invoices)+len(expenses))
	for _, inv := range invoices {
		rows = append(rows, exportRow{
			Type:        "invoice",
			Reference:   inv.Number,
			Counterpart: inv.ClientName,
			Date:        inv.IssueDate.UTC().Format("2006-01-02"),
			AmountCents: inv.AmountExclCents,
			BTWCents:    finance.BTWAmountCents(inv.AmountExclCents, inv.Rate),
		})
	}
	for _, e := range expenses {
		rows = append(rows, exportRow{
			Type:        "expense",
			Reference:   e.ID,
			Counterpart: e.Supplier,
			Date:        e.Date.UTC().Format("2006-01-02"),
			AmountCents: -e.AmountExclCents,
			BTWCents:    -finance.BTWAmountCents(e.AmountExclCents, e.Rate),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id":   tc.CompanyID,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"rows":         rows,
		"row_count":    len(rows),
	})
}
