package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustCommand
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.IdempotencyKey = idempotencyKey(r)

	result, err := h.svc.Adjust(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func recordFilter(r *http.Request) (repository.RecordFilter, error) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		return repository.RecordFilter{}, err
	}
	q := r.URL.Query()
	from, err := parseOptionalTime(q.Get("from"))
	if err != nil {
		return repository.RecordFilter{}, err
	}
	to, err := parseOptionalTime(q.Get("to"))
	if err != nil {
		return repository.RecordFilter{}, err
	}
	return repository.RecordFilter{
		ProductID: strings.TrimSpace(q.Get("product_id")),
		Type:      domain.RecordType(strings.TrimSpace(q.Get("type"))),
		OrderID:   strings.TrimSpace(q.Get("order_id")),
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.svc.ListRecords(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, rows)
}

func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := recordFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Buffered so a failed export can still answer with a JSON error.
	var buf bytes.Buffer
	if err := h.svc.ExportRecords(r.Context(), filter, &buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "inventory-records.xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	rows, err := h.svc.ListBatches(r.Context(), repository.BatchFilter{
		ProductID:     strings.TrimSpace(q.Get("product_id")),
		Status:        domain.BatchStatus(strings.TrimSpace(q.Get("status"))),
		AvailableOnly: q.Get("available") == "true",
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, rows)
}

func (h *Handler) AvailableBatches(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(r.URL.Query().Get("product_id"))
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	rows, err := h.svc.AvailableBatches(r.Context(), productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, rows)
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	rows, err := h.svc.ListMovements(r.Context(), repository.MovementFilter{
		ProductID: strings.TrimSpace(q.Get("product_id")),
		BatchID:   strings.TrimSpace(q.Get("batch_id")),
		OrderID:   strings.TrimSpace(q.Get("order_id")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, rows)
}

func (h *Handler) Valuation(w http.ResponseWriter, r *http.Request) {
	rows, total, err := h.svc.Valuation(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.ProductValuation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows), "total_value": total})
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Audit(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	inconsistent := 0
	for _, row := range rows {
		if !row.Consistent {
			inconsistent++
		}
	}
	if rows == nil {
		rows = []domain.StockAudit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows, "count": len(rows), "inconsistent": inconsistent})
}

func (h *Handler) ExpireBatches(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ExpireBatches(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, rows)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
