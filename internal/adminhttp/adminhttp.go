// Package adminhttp implements a small ops/status HTTP surface: a
// /status route reporting index and collection counters, a /jobs
// route reporting the job scheduler's queue depth, and a /backup
// route that triggers a directory rotator backup on demand. It is
// deliberately not the query path: there is no search or document
// retrieval route here.
package adminhttp

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func writeResponse(w http.ResponseWriter, status int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		log.Printf("adminhttp: error serializing JSON response: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, "JSON serialization error")
		return
	}
	body = append(body, '\n')
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeResponse(w, status, map[string]string{"message": message})
}

// IndexStatus is the narrow collaborator interface onto the index
// store's document counters.
type IndexStatus interface {
	NumDocs() int
}

// JobQueue is the narrow collaborator interface onto the job
// scheduler's queue depth.
type JobQueue interface {
	QueueDepth() int
}

// Backuper is the narrow collaborator interface onto the directory
// rotator's on-demand backup.
type Backuper interface {
	Backup() error
}

// Handler builds the admin HTTP surface. Any of index, jobs or
// backup may be nil; the corresponding route then reports
// "unavailable" rather than panicking.
func Handler(collectionName string, index IndexStatus, jobs JobQueue, backup Backuper) http.Handler {
	r := mux.NewRouter()
	r.Path("/status").Methods("GET").Handler(&statusHandler{collectionName: collectionName, index: index})
	r.Path("/jobs").Methods("GET").Handler(&jobsHandler{jobs: jobs})
	r.Path("/backup").Methods("POST").Handler(&backupHandler{backup: backup})
	return r
}

// ListenAndServe serves the admin surface on addr.
func ListenAndServe(addr, collectionName string, index IndexStatus, jobs JobQueue, backup Backuper) error {
	return http.ListenAndServe(addr, Handler(collectionName, index, jobs, backup))
}

type statusHandler struct {
	collectionName string
	index          IndexStatus
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type Response struct {
		Collection string `json:"collection"`
		NumDocs    int    `json:"num_docs"`
	}
	if h.index == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "index store not wired up")
		return
	}
	writeResponse(w, http.StatusOK, Response{Collection: h.collectionName, NumDocs: h.index.NumDocs()})
}

type jobsHandler struct {
	jobs JobQueue
}

func (h *jobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type Response struct {
		QueueDepth int `json:"queue_depth"`
	}
	if h.jobs == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "job scheduler not wired up")
		return
	}
	writeResponse(w, http.StatusOK, Response{QueueDepth: h.jobs.QueueDepth()})
}

type backupHandler struct {
	backup Backuper
}

func (h *backupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "directory rotator not wired up")
		return
	}
	if err := h.backup.Backup(); err != nil {
		log.Printf("adminhttp: backup failed: %v", err)
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	type Response struct{}
	writeResponse(w, http.StatusOK, Response{})
}
