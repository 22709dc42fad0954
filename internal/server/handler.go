package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ahmethakanbesel/mining-reports/internal/job"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
)

const maxBodyBytes = 1 << 20

type handler struct {
	jobSvc  *job.Service
	reports *report.Registry
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listReportTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.Specs())
}

func (h *handler) submitJob(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var req job.SubmitRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	j, err := h.jobSvc.Submit(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+strconv.FormatInt(j.ID, 10))
	writeJSON(w, http.StatusAccepted, j)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	req, ok := jobRequest(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.Get(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := job.ListJobsRequest{
		Status:     q.Get("status"),
		ReportType: q.Get("reportType"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		req.Offset = offset
	}

	jobs, err := h.jobSvc.List(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

// getArtifact returns the stored artifact as the response data, unchanged.
func (h *handler) getArtifact(w http.ResponseWriter, r *http.Request) {
	req, ok := jobRequest(w, r)
	if !ok {
		return
	}

	data, _, err := h.jobSvc.Artifact(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, json.RawMessage(data))
}

func jobRequest(w http.ResponseWriter, r *http.Request) (job.GetJobRequest, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return job.GetJobRequest{}, false
	}

	req := job.GetJobRequest{ID: id}
	if appErr := req.Validate(); appErr != nil {
		writeError(w, appErr.HTTPStatus(), appErr.Message())
		return job.GetJobRequest{}, false
	}
	return req, true
}
