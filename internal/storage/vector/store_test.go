package vector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/interfaces"
)

func TestDelete_RequiresExactlyOneSelector(t *testing.T) {
	// Selector validation happens before any database access
	s := &Store{tableName: "ycombinator_companies", logger: arbor.NewLogger()}

	tests := []struct {
		name string
		opts interfaces.DeleteOptions
	}{
		{"none", interfaces.DeleteOptions{}},
		{"ids and all", interfaces.DeleteOptions{IDs: []string{"a"}, DeleteAll: true}},
		{"ids and filter", interfaces.DeleteOptions{IDs: []string{"a"}, MetadataFilter: map[string]string{"location": "SF"}}},
		{"all three", interfaces.DeleteOptions{IDs: []string{"a"}, MetadataFilter: map[string]string{"location": "SF"}, DeleteAll: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Delete(context.Background(), tt.opts)
			assert.ErrorIs(t, err, interfaces.ErrArgumentConflict)
		})
	}
}

func TestSchemaStatements_VectorscaleBeforeDiskannIndex(t *testing.T) {
	stmts := schemaStatements("ycombinator_companies", 1536)

	vectorscaleAt, diskannAt := -1, -1
	for i, stmt := range stmts {
		if strings.Contains(stmt, "vectorscale") {
			vectorscaleAt = i
		}
		if strings.Contains(stmt, "USING diskann") {
			diskannAt = i
		}
		assert.Contains(t, stmt, "IF NOT EXISTS", "bootstrap must be idempotent")
	}

	require.NotEqual(t, -1, vectorscaleAt, "vectorscale extension must be installed")
	require.NotEqual(t, -1, diskannAt)
	assert.Less(t, vectorscaleAt, diskannAt, "diskann index needs the vectorscale access method")
}

func TestVectorLiteral(t *testing.T) {
	assert.Nil(t, vectorLiteral(nil))
	assert.Nil(t, vectorLiteral([]float32{}))
	assert.Equal(t, "[0.5,1,-2.25]", vectorLiteral([]float32{0.5, 1, -2.25}))
}

func TestBuildFilters(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	where, args := buildFilters(interfaces.SearchOptions{
		MetadataFilter: map[string]string{"location": "SF"},
		TimeRange:      &interfaces.TimeRange{Start: start, End: end},
	}, 2)

	assert.Equal(t, " AND metadata->>$2 = $3 AND created_at BETWEEN $4 AND $5", where)
	assert.Equal(t, []interface{}{"location", "SF", start, end}, args)
}

func TestBuildFilters_Empty(t *testing.T) {
	where, args := buildFilters(interfaces.SearchOptions{}, 2)
	assert.Empty(t, where)
	assert.Empty(t, args)
}
