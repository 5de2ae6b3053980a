package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/smart-order-intake/server/internal/intake/model"
)

const (
	ToolSearchCatalog = "search_catalog"

	DefaultMaxResults = 5
	MaxResultsLimit   = 10
)

// Match types reported back to the model.
const (
	MatchExact      = "exact"
	MatchFuzzy      = "fuzzy"
	MatchSuggestion = "suggestion"
)

// Searcher is the read-only catalog view the tool needs.
type Searcher interface {
	Search(query string) model.SearchResult
}

type SearchCatalogInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type CatalogCandidate struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	MinOrderQty int     `json:"moq"`
	Match       string  `json:"match"`
}

type SearchCatalogOutput struct {
	Candidates []CatalogCandidate `json:"candidates"`
	Total      int                `json:"total"`
}

func createSearchCatalogTool(catalog Searcher) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchCatalog,
			Desc: "Look up products in the company catalog by product code or (partial) product name. " +
				"Returns candidate products with their canonical code, name, price, stock and minimum order quantity. " +
				"Use it when the email mentions a product by name, or when a code looks misspelt.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Product code or descriptive name as written in the email, e.g. DSK-0001 or STRÅDAL 620.",
					Required: true,
				},
				"max_results": {
					Type: "number",
					Desc: fmt.Sprintf("Maximum number of candidates to return (default: %d, max: %d)", DefaultMaxResults, MaxResultsLimit),
				},
			}),
		},
		func(ctx context.Context, in *SearchCatalogInput) (*SearchCatalogOutput, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			return searchCatalog(catalog, query, in.MaxResults), nil
		},
	)
}

// searchCatalog flattens a SearchResult into candidates, best matches first,
// without repeating a product.
func searchCatalog(catalog Searcher, query string, max int) *SearchCatalogOutput {
	if max <= 0 {
		max = DefaultMaxResults
	}
	if max > MaxResultsLimit {
		max = MaxResultsLimit
	}

	res := catalog.Search(query)
	out := &SearchCatalogOutput{Candidates: []CatalogCandidate{}}
	seen := make(map[string]bool)
	add := func(products []model.Product, match string) {
		for _, p := range products {
			if len(out.Candidates) >= max || seen[p.Code] {
				continue
			}
			seen[p.Code] = true
			out.Candidates = append(out.Candidates, CatalogCandidate{
				Code:        p.Code,
				Name:        p.Name,
				Price:       p.Price,
				Stock:       p.Stock,
				MinOrderQty: p.MinOrderQty,
				Match:       match,
			})
		}
	}
	add(res.ExactMatches, MatchExact)
	add(res.FuzzyMatches, MatchFuzzy)
	add(res.Suggestions, MatchSuggestion)

	out.Total = len(out.Candidates)
	return out
}
