package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/pkg/logger"
)

// BlueprintStore is the part of the store the CRUD endpoints use.
type BlueprintStore interface {
	List(ctx context.Context, author string) []model.Blueprint
	Get(ctx context.Context, author, name string) (model.Blueprint, error)
	Create(ctx context.Context, author, name string, points []model.Point) (model.Blueprint, error)
	ReplacePoints(ctx context.Context, author, name string, points []model.Point) (model.Blueprint, error)
	Delete(ctx context.Context, author, name string) error
}

// BlueprintsHandler serves the blueprint CRUD endpoints. None of them
// broadcasts; only live drawing reaches other sessions.
type BlueprintsHandler struct {
	store  BlueprintStore
	logger logger.Logger
}

// NewBlueprintsHandler creates a blueprints handler.
func NewBlueprintsHandler(store BlueprintStore, l logger.Logger) *BlueprintsHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &BlueprintsHandler{store: store, logger: l}
}

type listResponse struct {
	Author      string            `json:"author"`
	Blueprints  []model.Blueprint `json:"blueprints"`
	TotalPoints int               `json:"totalPoints"`
}

type createRequest struct {
	Author string        `json:"author"`
	Name   string        `json:"name"`
	Points []model.Point `json:"points"`
}

func (c createRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Author) == "":
		return fmt.Errorf("%w: missing author", ErrValidation)
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: missing name", ErrValidation)
	}
	return nil
}

type updateRequest struct {
	Points []model.Point `json:"points"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	return nil
}

// HandleList handles GET /blueprints?author=A.
func (h *BlueprintsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	author := r.URL.Query().Get("author")
	if author == "" {
		writeStoreError(w, fmt.Errorf("%w: author query parameter is required", ErrValidation))
		return
	}

	list := h.store.List(r.Context(), author)
	total := 0
	for _, bp := range list {
		total += len(bp.Points)
	}
	writeJSON(w, http.StatusOK, listResponse{Author: author, Blueprints: list, TotalPoints: total})
}

// HandleGet handles GET /blueprints/{author}/{name}.
func (h *BlueprintsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	bp, err := h.store.Get(r.Context(), r.PathValue("author"), r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

// HandleCreate handles POST /blueprints.
func (h *BlueprintsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(r, &req); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeStoreError(w, err)
		return
	}

	bp, err := h.store.Create(r.Context(), req.Author, req.Name, req.Points)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	h.logger.Info(r.Context(), "blueprint created",
		logger.String("author", bp.Author),
		logger.String("name", bp.Name),
		logger.Int("points", len(bp.Points)),
	)
	writeJSON(w, http.StatusCreated, bp)
}

// HandleUpdate handles PUT /blueprints/{author}/{name}. Missing points
// clear the blueprint.
func (h *BlueprintsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(r, &req); err != nil {
		writeStoreError(w, err)
		return
	}

	bp, err := h.store.ReplacePoints(r.Context(), r.PathValue("author"), r.PathValue("name"), req.Points)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	h.logger.Info(r.Context(), "blueprint updated",
		logger.String("author", bp.Author),
		logger.String("name", bp.Name),
		logger.Int("points", len(bp.Points)),
	)
	writeJSON(w, http.StatusOK, bp)
}

// HandleDelete handles DELETE /blueprints/{author}/{name}.
func (h *BlueprintsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	author, name := r.PathValue("author"), r.PathValue("name")
	if err := h.store.Delete(r.Context(), author, name); err != nil {
		writeStoreError(w, err)
		return
	}
	h.logger.Info(r.Context(), "blueprint deleted",
		logger.String("author", author),
		logger.String("name", name),
	)
	w.WriteHeader(http.StatusNoContent)
}
