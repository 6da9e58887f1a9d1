package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/redbco/redb-esadapter/pkg/config"
	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
	"github.com/redbco/redb-esadapter/pkg/health"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      health.Status   `json:"status"`
	Checks      []*health.Check `json:"checks"`
	LastHealthy string          `json:"lastHealthy"`
	Timestamp   string          `json:"timestamp"`
}

// CountResponse is the body of a successful count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// DatastoresResponse lists registered identities.
type DatastoresResponse struct {
	Datastores []string `json:"datastores"`
}

func (s *Server) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// decodeBody decodes the request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_body")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.operationContext(r)
	defer cancel()

	registry := s.adapter.Registry()
	checks := registry.CheckAll(ctx)
	checker := registry.HealthChecker()

	// degraded while at least one datastore still answers
	status := checker.GetOverallStatus()
	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:      status,
		Checks:      checks,
		LastHealthy: checker.GetLastHealthyTime().UTC().Format(time.RFC3339),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listDatastores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DatastoresResponse{Datastores: s.adapter.Registry().Identities()})
}

func (s *Server) registerDatastore(w http.ResponseWriter, r *http.Request) {
	var entry config.DatastoreEntry
	if err := decodeBody(r, &entry); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	if err := s.adapter.RegisterDatastore(ctx, entry.DatastoreConfig, entry.Collections); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	collections, _ := s.adapter.Registry().Collections(entry.Identity)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"identity":    entry.Identity,
		"collections": collections,
	})
}

func (s *Server) teardownDatastore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.operationContext(r)
	defer cancel()

	_ = s.adapter.Teardown(ctx, mux.Vars(r)["identity"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) capabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := s.adapter.Capabilities(mux.Vars(r)["identity"])
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

func (s *Server) describeCollection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, cancel := s.operationContext(r)
	defer cancel()

	def, err := s.adapter.Describe(ctx, vars["identity"], vars["collection"])
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	if def == nil {
		def = map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) defineCollection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var definition map[string]interface{}
	if err := decodeBody(r, &definition); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	if err := s.adapter.Define(ctx, vars["identity"], vars["collection"], definition); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dropCollection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, cancel := s.operationContext(r)
	defer cancel()

	if err := s.adapter.Drop(ctx, vars["identity"], vars["collection"]); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var doc adapter.Document
	if err := decodeBody(r, &doc); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	created, err := s.adapter.Create(ctx, vars["identity"], vars["collection"], doc)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var patch adapter.Document
	if err := decodeBody(r, &patch); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	updated, err := s.adapter.Update(ctx, vars["identity"], vars["collection"], vars["id"], patch)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) destroyDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx, cancel := s.operationContext(r)
	defer cancel()

	ack, err := s.adapter.Destroy(ctx, vars["identity"], vars["collection"], vars["id"])
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var criteria adapter.Criteria
	if err := decodeBody(r, &criteria); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	docs, err := s.adapter.Search(ctx, vars["identity"], vars["collection"], criteria, r.URL.Query()["index"]...)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var criteria adapter.Criteria
	if err := decodeBody(r, &criteria); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	n, err := s.adapter.Count(ctx, vars["identity"], vars["collection"], criteria)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var ops []adapter.BulkOperation
	if err := decodeBody(r, &ops); err != nil {
		s.badRequest(w, err)
		return
	}

	ctx, cancel := s.operationContext(r)
	defer cancel()

	res, err := s.adapter.Bulk(ctx, vars["identity"], vars["collection"], ops)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
