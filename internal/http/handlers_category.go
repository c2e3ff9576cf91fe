package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/store"
)

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type reorderRequest struct {
	CategoryOrders json.RawMessage `json:"categoryOrders"`
}

type reorderResponse struct {
	Message      string `json:"message"`
	UpdatedCount int    `json:"updatedCount"`
}

type colorsResponse struct {
	Message      string          `json:"message"`
	UpdatedCount int             `json:"updatedCount"`
	Categories   []core.Category `json:"categories"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cats, err := s.svc.Categories.List(ctx, principal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentCategory, applog.OpList)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	c, err := s.svc.Categories.Create(ctx, principal(r).UserID, req.Name, req.Color)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusBadRequest, "Category already exists")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentCategory, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	err := s.svc.Categories.Delete(ctx, principal(r).UserID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentCategory, applog.OpDelete)
		return
	}
	writeMessage(w, http.StatusOK, "Category and all associated expenses deleted successfully")
}

func (s *Server) handleReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var orders []store.CategoryOrder
	if !isJSONArray(req.CategoryOrders) || json.Unmarshal(req.CategoryOrders, &orders) != nil {
		writeError(w, http.StatusBadRequest, "Invalid category orders format")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	n, err := s.svc.Categories.Reorder(ctx, principal(r).UserID, orders)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentCategory, applog.OpReorder)
		return
	}
	writeJSON(w, http.StatusOK, reorderResponse{Message: "Category order updated successfully", UpdatedCount: n})
}

func (s *Server) handleUpdateColors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	cats, err := s.svc.Categories.ResetColors(ctx, principal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentCategory, applog.OpUpdate)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, colorsResponse{
		Message:      "Categories updated successfully",
		UpdatedCount: len(cats),
		Categories:   cats,
	})
}
