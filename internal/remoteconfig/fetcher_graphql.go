package remoteconfig

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hasura/go-graphql-client"

	"github.com/drallgood/book-catalog/internal/logger"
)

// GraphQLConfig configures a GraphQLFetcher
type GraphQLConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// headerAddingTransport sets auth and content headers on every request
type headerAddingTransport struct {
	token string
	rt    http.RoundTripper
}

func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.rt.RoundTrip(req)
}

// GraphQLFetcher reads parameters from a Hasura-style
// remote_config_parameters table
type GraphQLFetcher struct {
	client *graphql.Client
	log    *logger.Logger
}

// NewGraphQLFetcher creates a fetcher for cfg.Endpoint
func NewGraphQLFetcher(cfg GraphQLConfig, log *logger.Logger) (*GraphQLFetcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("graphql fetcher: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if log == nil {
		log = logger.Get()
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerAddingTransport{
			token: cfg.Token,
			rt:    http.DefaultTransport,
		},
	}
	return &GraphQLFetcher{
		client: graphql.NewClient(cfg.Endpoint, httpClient),
		log:    log.Component("graphql_fetcher"),
	}, nil
}

type parametersQuery struct {
	Parameters []struct {
		Key   string `graphql:"key"`
		Value string `graphql:"value"`
	} `graphql:"remote_config_parameters(where: {key: {_in: $keys}})"`
}

// Fetch implements Fetcher
func (f *GraphQLFetcher) Fetch(ctx context.Context, keys []string) (map[string]string, error) {
	var q parametersQuery
	vars := map[string]interface{}{
		"keys": keys,
	}
	if err := f.client.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("graphql query remote_config_parameters: %w", err)
	}

	values := make(map[string]string, len(q.Parameters))
	for _, p := range q.Parameters {
		values[p.Key] = p.Value
	}
	f.log.Debug("Fetched parameters from graphql", map[string]interface{}{
		"requested": len(keys),
		"found":     len(values),
	})
	return values, nil
}
