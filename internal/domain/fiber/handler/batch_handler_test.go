package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchFeedbackOverHTTP(t *testing.T) {
	s := newTestServer(t)
	h := s.instructorHeaders()

	code, _ := s.do(t, http.MethodGet, "/batch-feedback", nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodPost, "/batch-feedback", nil, h)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.False(t, body.Get("data.job_started").Bool())

	for _, name := range []string{"García, Juan", "Pérez, Luis"} {
		st := s.student(t, name, "Física", "Química")
		code, _ = s.do(t, http.MethodPost, "/reports", reportBody(st.ID, "Física"), nil)
		require.Equal(t, http.StatusCreated, code)
	}

	code, body = s.do(t, http.MethodGet, "/batch-feedback", nil, h)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.EqualValues(t, 2, body.Get("data.pending_reports").Int())
	assert.EqualValues(t, 2, body.Get("data.breakdown.Física").Int())

	code, body = s.do(t, http.MethodGet, "/batch-feedback?subject=Química", nil, h)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body.Get("data.pending_reports").Int())

	code, body = s.do(t, http.MethodPost, "/batch-feedback", map[string]string{"subject": "Física"}, h)
	require.Equal(t, http.StatusAccepted, code, body.Raw)
	assert.True(t, body.Get("data.job_started").Bool())
	assert.EqualValues(t, 2, body.Get("data.total_reports").Int())
	jobID := body.Get("data.job_id").String()
	require.NotEmpty(t, jobID)

	s.batch.Wait()

	code, body = s.do(t, http.MethodGet, "/batch-feedback/"+jobID, nil, h)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "completed", body.Get("data.status").String())
	assert.EqualValues(t, 2, body.Get("data.successful").Int())
	assert.EqualValues(t, 0, body.Get("data.failed").Int())

	code, _ = s.do(t, http.MethodGet, "/batch-feedback/unknown-job", nil, h)
	assert.Equal(t, http.StatusNotFound, code)
}
