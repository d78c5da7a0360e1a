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

	"github.com/cotiza/cotiza/internal/pricing"
)

// RegisterFileRequest represents an uploaded file
type RegisterFileRequest struct {
	Name        string `json:"name" example:"bracket.stl"`
	ContentHash string `json:"contentHash" example:"9f86d081884c7d65"`
	QuoteItemID string `json:"quoteItemId,omitempty"`
}

// RegisterFile records an uploaded file awaiting analysis
// @Summary Register File
// @Tags File
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterFileRequest true "File"
// @Success 201 {object} files.File
// @Failure 400 {object} map[string]string
// @Router /files [post]
func (h *Handler) RegisterFile(w http.ResponseWriter, r *http.Request) {
	var req RegisterFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.fileService.Register(r.Context(), req.QuoteItemID, req.Name, req.ContentHash)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, f)
}

// GetFile returns a file and its analysis state
// @Summary Get File
// @Tags File
// @Produce json
// @Security BearerAuth
// @Param fileID path string true "File ID"
// @Success 200 {object} files.File
// @Failure 404 {object} map[string]string
// @Router /files/{fileID} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.fileService.Get(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// RecordFileAnalysis stores the geometry extracted from a file
// @Summary Record File Analysis
// @Tags File
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param fileID path string true "File ID"
// @Param request body pricing.GeometryMetrics true "Geometry"
// @Success 200 {object} files.File
// @Failure 400 {object} map[string]string
// @Router /files/{fileID}/analysis [put]
func (h *Handler) RecordFileAnalysis(w http.ResponseWriter, r *http.Request) {
	var req pricing.GeometryMetrics
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.fileService.RecordAnalysis(r.Context(), chi.URLParam(r, "fileID"), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}
