package output_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlewatch/shuttlewatch/internal/output"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

func sampleResult() shuttle.SearchResult {
	return shuttle.SearchResult{
		RunID:   uuid.New(),
		Success: true,
		Records: []shuttle.TrainRecord{
			{Number: "EP21", DepartureTime: "08:30", ArrivalTime: "09:05", Seats: 14, Direction: shuttle.SGToJB},
		},
		MatchingRecords: []shuttle.TrainRecord{
			{Number: "EP21", DepartureTime: "08:30", ArrivalTime: "09:05", Seats: 14, Direction: shuttle.SGToJB},
		},
		Criteria: shuttle.SearchCriteria{
			Direction:  shuttle.SGToJB,
			DepartDate: time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
			Adults:     2,
			MinSeats:   2,
		},
		SearchedAt: time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestMemoryRepositorySavesCopies(t *testing.T) {
	repo := output.NewMemoryRepository()

	first := sampleResult()
	second := sampleResult()
	second.Success = false
	second.ErrorKind = shuttle.ErrorKindTimeout

	require.NoError(t, repo.Save(context.Background(), first))
	require.NoError(t, repo.Save(context.Background(), second))

	saved := repo.Results()
	require.Len(t, saved, 2)
	assert.Equal(t, first.RunID, saved[0].RunID)
	assert.Equal(t, shuttle.ErrorKindTimeout, saved[1].ErrorKind)
}

func TestFileRepositoryAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "out.jsonl")
	repo := output.NewFileRepository(output.FileRepositoryConfig{Path: path, Logger: zerolog.Nop()})

	first := sampleResult()
	second := sampleResult()

	require.NoError(t, repo.Save(context.Background(), first))
	require.NoError(t, repo.Save(context.Background(), second))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []shuttle.SearchResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var result shuttle.SearchResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &result))
		lines = append(lines, result)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, first.RunID, lines[0].RunID)
	assert.Equal(t, second.RunID, lines[1].RunID)
	assert.Equal(t, "EP21", lines[0].Records[0].Number)
}
