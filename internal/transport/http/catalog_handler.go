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
	"github.com/shopspring/decimal"

	"github.com/cotiza/cotiza/internal/catalog"
)

// MaterialRequest represents material data
type MaterialRequest struct {
	Process         catalog.Process `json:"process" example:"3d_fff"`
	Code            string          `json:"code" example:"PLA"`
	Name            string          `json:"name" example:"PLA White"`
	CostPerUnit     decimal.Decimal `json:"costPerUnit"`
	Co2eFactor      decimal.Decimal `json:"co2eFactor"`
	RecycledPercent decimal.Decimal `json:"recycledPercent"`
	RemovalRate     decimal.Decimal `json:"removalRate"`
}

// MachineRequest represents machine data
type MachineRequest struct {
	Process      catalog.Process `json:"process" example:"3d_fff"`
	Code         string          `json:"code" example:"MK4"`
	Name         string          `json:"name" example:"Prusa MK4"`
	HourlyRate   decimal.Decimal `json:"hourlyRate"`
	SetupMinutes int             `json:"setupMinutes"`
	RatedPowerKw decimal.Decimal `json:"ratedPowerKw"`
}

// ListMaterials lists active materials
// @Summary List Materials
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param process query string false "Process filter"
// @Success 200 {array} catalog.Material
// @Router /catalog/materials [get]
func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalogService.Materials(r.Context(), catalog.Process(r.URL.Query().Get("process")))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ListMachines lists active machines, cheapest first
// @Summary List Machines
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param process query string false "Process filter"
// @Success 200 {array} catalog.Machine
// @Router /catalog/machines [get]
func (h *Handler) ListMachines(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalogService.Machines(r.Context(), catalog.Process(r.URL.Query().Get("process")))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// GetPricingConfig returns the tenant pricing configuration
// @Summary Get Pricing Config
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} catalog.PricingConfig
// @Router /catalog/config [get]
func (h *Handler) GetPricingConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.catalogService.Config(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// UpdatePricingConfig replaces the tenant pricing configuration
// @Summary Update Pricing Config
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body catalog.PricingConfig true "Configuration"
// @Success 200 {object} catalog.PricingConfig
// @Failure 400 {object} map[string]string
// @Router /catalog/config [put]
func (h *Handler) UpdatePricingConfig(w http.ResponseWriter, r *http.Request) {
	var req catalog.PricingConfig
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := h.catalogService.UpdateConfig(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// UpsertMaterial creates or replaces a material
// @Summary Upsert Material
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MaterialRequest true "Material"
// @Success 200 {object} catalog.Material
// @Router /catalog/materials [put]
func (h *Handler) UpsertMaterial(w http.ResponseWriter, r *http.Request) {
	var req MaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.catalogService.UpsertMaterial(r.Context(), catalog.Material{
		Process:         req.Process,
		Code:            req.Code,
		Name:            req.Name,
		CostPerUnit:     req.CostPerUnit,
		Co2eFactor:      req.Co2eFactor,
		RecycledPercent: req.RecycledPercent,
		RemovalRate:     req.RemovalRate,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// DeactivateMaterial hides a material from new calculations
// @Summary Deactivate Material
// @Tags Catalog
// @Security BearerAuth
// @Param materialID path string true "Material ID"
// @Success 204
// @Router /catalog/materials/{materialID} [delete]
func (h *Handler) DeactivateMaterial(w http.ResponseWriter, r *http.Request) {
	if err := h.catalogService.DeactivateMaterial(r.Context(), chi.URLParam(r, "materialID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertMachine creates or replaces a machine
// @Summary Upsert Machine
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MachineRequest true "Machine"
// @Success 200 {object} catalog.Machine
// @Router /catalog/machines [put]
func (h *Handler) UpsertMachine(w http.ResponseWriter, r *http.Request) {
	var req MachineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.catalogService.UpsertMachine(r.Context(), catalog.Machine{
		Process:      req.Process,
		Code:         req.Code,
		Name:         req.Name,
		HourlyRate:   req.HourlyRate,
		SetupMinutes: req.SetupMinutes,
		RatedPowerKw: req.RatedPowerKw,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}
