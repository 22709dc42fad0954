// Package artifact persists computed report results. An artifact is written
// once per job and never modified afterwards.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
)

// Row is one report record keyed by column name.
type Row = map[string]any

// Artifact is the immutable result of a completed job.
type Artifact struct {
	JobID    int64    `json:"jobId"`
	Columns  []string `json:"columns"`
	RowCount int      `json:"rowCount"`
	Rows     []Row    `json:"rows"`
}

// Backend-level sentinel errors.
var (
	ErrNotFound = errors.New("artifact not found")
	ErrExists   = errors.New("artifact already exists")
)

// Backend stores opaque blobs by key. Put must be all-or-nothing: a
// concurrent Get sees either the whole blob or ErrNotFound. Put on an
// existing key returns ErrExists.
type Backend interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store encodes artifacts onto a Backend.
type Store struct {
	backend Backend
}

func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

const refPrefix = "jobs/"
const refSuffix = "/result.json"

// Locator returns the stable reference for a job's artifact.
func Locator(jobID int64) string {
	return refPrefix + strconv.FormatInt(jobID, 10) + refSuffix
}

// JobIDFromLocator is the inverse of Locator.
func JobIDFromLocator(ref string) (int64, bool) {
	if !strings.HasPrefix(ref, refPrefix) || !strings.HasSuffix(ref, refSuffix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(ref, refPrefix), refSuffix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Write persists rows for jobID and returns the artifact reference.
func (s *Store) Write(ctx context.Context, jobID int64, columns []string, rows []Row) (string, error) {
	if rows == nil {
		rows = []Row{}
	}
	a := Artifact{JobID: jobID, Columns: columns, RowCount: len(rows), Rows: rows}

	data, err := json.Marshal(a)
	if err != nil {
		return "", apperror.Wrap(apperror.Store, "encode artifact", err)
	}

	ref := Locator(jobID)
	if err := s.backend.Put(ctx, ref, data); err != nil {
		return "", apperror.Wrap(apperror.Store, fmt.Sprintf("write artifact %s", ref), err)
	}
	return ref, nil
}

// ReadRaw returns the stored bytes for ref.
func (s *Store) ReadRaw(ctx context.Context, ref string) ([]byte, error) {
	if _, ok := JobIDFromLocator(ref); !ok {
		return nil, apperror.New(apperror.ArtifactNotFound, fmt.Sprintf("invalid artifact reference %q", ref))
	}
	data, err := s.backend.Get(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(apperror.ArtifactNotFound, fmt.Sprintf("artifact %s missing", ref), err)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.Store, fmt.Sprintf("read artifact %s", ref), err)
	}
	return data, nil
}

// Read returns the decoded artifact for ref. Numbers decode as json.Number
// so integer and decimal values keep their exact representation.
func (s *Store) Read(ctx context.Context, ref string) (*Artifact, error) {
	data, err := s.ReadRaw(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses an encoded artifact.
func Decode(data []byte) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, apperror.Wrap(apperror.Store, "decode artifact", err)
	}
	if a.Rows == nil {
		a.Rows = []Row{}
	}
	return &a, nil
}
