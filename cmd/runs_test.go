package main

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/delfi-foods/pricescout/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	runs := []store.RunSummary{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			InputPath:  "products.csv",
			Status:     "complete",
			ResultRows: 42,
			StartedAt:  now,
			FinishedAt: sql.NullTime{Time: now.Add(12 * time.Minute), Valid: true},
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			InputPath: "products-part2.csv",
			Status:    "running",
			StartedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "products.csv")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "2026-08-20 10:42:00")
	assert.Contains(t, output, "running")
}
