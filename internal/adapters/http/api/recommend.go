package api

import (
	"fmt"
	"net/http"
	"strings"
)

const recommendFallback = "Could not process recommendations. Please try again."

// RecommendHandler handles product recommendation requests.
type RecommendHandler struct {
	deps    RecommendDependencies
	uploads uploadReader
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies, uploads uploadReader) *RecommendHandler {
	return &RecommendHandler{deps: deps, uploads: uploads}
}

// HandleRecommend handles POST /recommend requests carrying a file and customer_id.
func (h *RecommendHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	up, err := h.uploads.read(w, r)
	if err != nil {
		writeFailure(w, op, recommendFallback, err)
		return
	}
	customerID := strings.TrimSpace(r.FormValue("customer_id"))
	if customerID == "" {
		writeFailure(w, op, recommendFallback, fmt.Errorf("%w: please enter a customer ID", ErrValidation))
		return
	}
	res, err := h.deps.Recommend(r.Context(), sess, customerID, up)
	if err != nil {
		writeFailure(w, op, recommendFallback, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
