package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchiverWritesDocument(t *testing.T) {
	dir := t.TempDir()
	doc := ArchivedReport{
		ReportID:  uuid.New(),
		StudentID: uuid.New(),
		Subject:   "Química",
		WeekStart: time.Date(2025, 8, 4, 3, 0, 0, 0, time.UTC),
		Answers:   map[string]string{"q1": "moles"},
	}

	path, err := NewLocalArchiver(dir).Archive(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "quimica", doc.StudentID.String(), "2025-08-04.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back ArchivedReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, doc.ReportID, back.ReportID)
}
