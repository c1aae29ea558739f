package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mapdexdb/mapdex/pkg/domain"
)

// queryRequest is the body of POST /models/{model}/query.
type queryRequest struct {
	Filter map[string]interface{} `json:"filter"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// updateRequest is the body of PATCH /models/{model}/documents.
type updateRequest struct {
	Filter map[string]interface{} `json:"filter"`
	Update map[string]interface{} `json:"update"`
}

// removeRequest is the body of DELETE /models/{model}/documents.
type removeRequest struct {
	Filter map[string]interface{} `json:"filter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupModel(mux.Vars(r)["model"])
	if !ok {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	var doc domain.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	id, err := m.Insert(r.Context(), doc)
	if err != nil {
		log.Printf("ERROR: Insert into '%s' failed: %v", m.Name(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"_id": id})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupModel(mux.Vars(r)["model"])
	if !ok {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var opts *domain.FindOptions
	if req.Limit > 0 || req.Offset > 0 {
		opts = &domain.FindOptions{Limit: req.Limit, Offset: req.Offset}
	}
	docs, err := m.Find(r.Context(), req.Filter, opts)
	if err != nil {
		log.Printf("ERROR: Query on '%s' failed: %v", m.Name(), err)
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupModel(mux.Vars(r)["model"])
	if !ok {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	modified, err := m.Update(r.Context(), req.Filter, req.Update)
	if err != nil {
		log.Printf("ERROR: Update on '%s' failed: %v", m.Name(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"modified": modified})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupModel(mux.Vars(r)["model"])
	if !ok {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	deleted, err := m.Remove(r.Context(), req.Filter)
	if err != nil {
		log.Printf("ERROR: Remove on '%s' failed: %v", m.Name(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleGetById(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, ok := s.lookupModel(vars["model"])
	if !ok {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	doc, err := m.FindOne(r.Context(), map[string]interface{}{"_id": vars["id"]})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, ok := s.lookupModel(vars["model"])
	if !ok {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	var doc domain.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	doc["_id"] = vars["id"]

	if err := m.Save(r.Context(), doc); err != nil {
		log.Printf("ERROR: Save on '%s' failed: %v", m.Name(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDuplicateKey):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}
