package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/service"
)

type fakeScanner struct {
	anchor    string
	neighbors int
	result    *service.ScanResult
	err       error
}

func (f *fakeScanner) Scan(_ context.Context, anchorName string, neighbors int) (*service.ScanResult, error) {
	f.anchor = anchorName
	f.neighbors = neighbors

	return f.result, f.err
}

type fakeScanHistory struct {
	limit int
	scans []models.Scan
}

func (f *fakeScanHistory) ListRecent(_ context.Context, limit int) ([]models.Scan, error) {
	f.limit = limit

	return f.scans, nil
}

func TestScansHandler_Create(t *testing.T) {
	scanner := &fakeScanner{result: &service.ScanResult{
		Anchor:   "entropy",
		Pairs:    []service.ScanPair{{Name: "time", Delta: 0.5}},
		AvgDelta: 0.5,
	}}
	handler := NewScansHandler(scanner, &fakeScanHistory{})

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{"concept":"entropy","neighbors":5}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "entropy", scanner.anchor)
	assert.Equal(t, 5, scanner.neighbors)

	var result service.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.InDelta(t, 0.5, result.AvgDelta, 1e-9)
}

func TestScansHandler_Create_Validation(t *testing.T) {
	handler := NewScansHandler(&fakeScanner{}, &fakeScanHistory{})

	tests := []struct {
		name string
		body string
	}{
		{"missing concept", `{"neighbors":5}`},
		{"neighbors too large", `{"concept":"entropy","neighbors":1000}`},
		{"malformed json", `{"concept"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestScansHandler_Create_AnchorNotFound(t *testing.T) {
	scanner := &fakeScanner{err: drifterrors.NewNotFoundError("concept", "concept not found")}
	handler := NewScansHandler(scanner, &fakeScanHistory{})

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{"concept":"phlogiston"}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScansHandler_List(t *testing.T) {
	history := &fakeScanHistory{scans: []models.Scan{{AnchorConcept: "entropy"}}}
	handler := NewScansHandler(&fakeScanner{}, history)

	req := httptest.NewRequest(http.MethodGet, "/v1/scans", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultScanListLimit, history.limit)

	var resp models.ListScansResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
}

func TestScansHandler_List_LimitParam(t *testing.T) {
	history := &fakeScanHistory{}
	handler := NewScansHandler(&fakeScanner{}, history)

	req := httptest.NewRequest(http.MethodGet, "/v1/scans?limit=5", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, history.limit)
}

func TestScansHandler_List_InvalidLimit(t *testing.T) {
	handler := NewScansHandler(&fakeScanner{}, &fakeScanHistory{})

	req := httptest.NewRequest(http.MethodGet, "/v1/scans?limit=-1", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
