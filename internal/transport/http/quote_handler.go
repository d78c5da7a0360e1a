// Copyright 2026 The Cotiza Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cotiza/cotiza/internal/quote"
)

// CreateQuote opens a draft quote
// @Summary Create Quote
// @Tags Quote
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body quote.CreateInput true "Quote header"
// @Success 201 {object} quote.Quote
// @Failure 400 {object} map[string]string
// @Router /quotes [post]
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quote.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.quoteService.Create(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

// ListQuotes lists quotes of the caller's tenant
// @Summary List Quotes
// @Tags Quote
// @Produce json
// @Security BearerAuth
// @Param customerId query string false "Customer filter (staff only)"
// @Param status query string false "Status filter"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} quote.Page
// @Router /quotes [get]
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	page, ok1 := queryInt(r, "page")
	size, ok2 := queryInt(r, "pageSize")
	if !ok1 || !ok2 {
		respondError(w, http.StatusBadRequest, "page and pageSize must be integers")
		return
	}
	res, err := h.quoteService.List(r.Context(), quote.ListFilter{
		CustomerID: r.URL.Query().Get("customerId"),
		Status:     quote.Status(r.URL.Query().Get("status")),
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetQuote returns one quote with its items
// @Summary Get Quote
// @Tags Quote
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Success 200 {object} quote.Quote
// @Failure 404 {object} map[string]string
// @Router /quotes/{quoteID} [get]
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteService.Get(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// UpdateQuote edits the quote header
// @Summary Update Quote
// @Tags Quote
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Param request body quote.UpdateInput true "Changes"
// @Success 200 {object} quote.Quote
// @Failure 409 {object} map[string]string
// @Router /quotes/{quoteID} [patch]
func (h *Handler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	var req quote.UpdateInput
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.quoteService.Update(r.Context(), chi.URLParam(r, "quoteID"), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// AddQuoteItem appends an item built from an uploaded file
// @Summary Add Quote Item
// @Tags Quote
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Param request body quote.AddItemInput true "Item"
// @Success 201 {object} quote.Item
// @Router /quotes/{quoteID}/items [post]
func (h *Handler) AddQuoteItem(w http.ResponseWriter, r *http.Request) {
	var req quote.AddItemInput
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.quoteService.AddItem(r.Context(), chi.URLParam(r, "quoteID"), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, it)
}

// SubmitQuote hands a draft over for pricing
// @Summary Submit Quote
// @Tags Quote
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Success 200 {object} quote.Quote
// @Router /quotes/{quoteID}/submit [post]
func (h *Handler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteService.Submit(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// CalculateRequest optionally overrides item inputs before pricing.
type CalculateRequest struct {
	Updates []quote.ItemUpdate `json:"updates,omitempty"`
}

// CalculateQuote prices the quote's items
// @Summary Calculate Quote
// @Description Prices pending and failed items, or only the items named in updates.
// @Description Items that cannot be priced are reported in errors; the request still succeeds.
// @Tags Quote
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Param request body CalculateRequest false "Item overrides"
// @Success 200 {object} quote.Calculation
// @Failure 409 {object} map[string]string
// @Router /quotes/{quoteID}/calculate [post]
func (h *Handler) CalculateQuote(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	calc, err := h.quoteEngine.Calculate(r.Context(), chi.URLParam(r, "quoteID"), req.Updates)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, calc)
}

// ApproveQuote accepts a priced quote
// @Summary Approve Quote
// @Tags Quote
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Success 200 {object} quote.Quote
// @Failure 409 {object} map[string]string
// @Router /quotes/{quoteID}/approve [post]
func (h *Handler) ApproveQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteService.Approve(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// CancelQuote cancels an open quote
// @Summary Cancel Quote
// @Tags Quote
// @Produce json
// @Security BearerAuth
// @Param quoteID path string true "Quote ID"
// @Success 200 {object} quote.Quote
// @Failure 409 {object} map[string]string
// @Router /quotes/{quoteID}/cancel [post]
func (h *Handler) CancelQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteService.Cancel(r.Context(), chi.URLParam(r, "quoteID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}
