package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-order-intake/server/internal/intake/catalog"
	"github.com/smart-order-intake/server/internal/intake/model"
)

func newTestCatalog(t *testing.T, extra ...model.Product) *catalog.Catalog {
	t.Helper()
	products := append([]model.Product{
		{Code: "DSK-0001", Name: "Coffee STRÅDAL 620", Price: 50, Stock: 5, MinOrderQty: 2},
		{Code: "LMP-0200", Name: "Desk Lamp LUMEN", Price: 25, Stock: 100, MinOrderQty: 10},
	}, extra...)
	c, err := catalog.New(products)
	require.NoError(t, err)
	return c
}

func runSearch(t *testing.T, c Searcher, args string) (*SearchCatalogOutput, error) {
	t.Helper()
	ts := GetExtractionTools(c)
	require.Len(t, ts, 1)
	inv, ok := ts[0].(tool.InvokableTool)
	require.True(t, ok)

	raw, err := inv.InvokableRun(context.Background(), args)
	if err != nil {
		return nil, err
	}
	var out SearchCatalogOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return &out, nil
}

func TestSearchCatalog_ExactBeforeFuzzy(t *testing.T) {
	out, err := runSearch(t, newTestCatalog(t), `{"query": "lamp"}`)
	require.NoError(t, err)

	require.Equal(t, 1, out.Total)
	assert.Equal(t, CatalogCandidate{Code: "LMP-0200", Name: "Desk Lamp LUMEN", Price: 25, Stock: 100, MinOrderQty: 10, Match: MatchExact}, out.Candidates[0])
}

func TestSearchCatalog_FuzzyForMisspelling(t *testing.T) {
	out, err := runSearch(t, newTestCatalog(t), `{"query": "STRADAL 620"}`)
	require.NoError(t, err)

	require.NotEmpty(t, out.Candidates)
	assert.Equal(t, "DSK-0001", out.Candidates[0].Code)
	assert.Equal(t, MatchFuzzy, out.Candidates[0].Match)
}

func TestSearchCatalog_MaxResults(t *testing.T) {
	extra := make([]model.Product, 0, 12)
	for i := 0; i < 12; i++ {
		extra = append(extra, model.Product{Code: fmt.Sprintf("WDG-%04d", i), Name: "Widget", Price: 1, Stock: 1, MinOrderQty: 1})
	}
	c := newTestCatalog(t, extra...)

	out, err := runSearch(t, c, `{"query": "widget"}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResults, out.Total)

	out, err = runSearch(t, c, `{"query": "widget", "max_results": 50}`)
	require.NoError(t, err)
	assert.Equal(t, MaxResultsLimit, out.Total)
}

func TestSearchCatalog_RequiresQuery(t *testing.T) {
	_, err := runSearch(t, newTestCatalog(t), `{"query": "  "}`)
	assert.Error(t, err)
}

func TestGetToolInfos(t *testing.T) {
	infos, err := GetToolInfos(context.Background(), GetExtractionTools(newTestCatalog(t)))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, ToolSearchCatalog, infos[0].Name)
}
