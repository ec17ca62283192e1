package mapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Documents resolves bucket keys to the source of the documents with the
// same id in an index. Keys without a document are left unresolved.
type Documents struct {
	client *elasticsearch.Client
	index  string
	logger *zap.Logger
}

func NewDocuments(client *elasticsearch.Client, index string, opts ...Option) *Documents {
	o := buildOptions(opts)
	return &Documents{
		client: client,
		index:  index,
		logger: o.logger,
	}
}

type mgetResponse struct {
	Docs []struct {
		ID     string         `json:"_id"`
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	} `json:"docs"`
}

// MapInstances fetches every key with one mget request. Instances are
// map[string]any holding the document source.
func (d *Documents) MapInstances(ctx context.Context, keys []any) (map[any]any, error) {
	if len(keys) == 0 {
		return map[any]any{}, nil
	}

	// Keys of different types may share an id, e.g. int64(1) and "1".
	ids := make([]string, 0, len(keys))
	byID := make(map[string][]any, len(keys))
	for _, key := range keys {
		id := fmt.Sprint(key)
		if _, ok := byID[id]; !ok {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], key)
	}

	body, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return nil, errors.Wrap(err, "encode mget request")
	}

	res, err := esapi.MgetRequest{
		Index: d.index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, d.client)
	if err != nil {
		return nil, errors.Wrapf(err, "mget %s", d.index)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, errors.Errorf("mget %s: [%s] %s", d.index, res.Status(), bytes.TrimSpace(msg))
	}

	var mr mgetResponse
	if err := json.NewDecoder(res.Body).Decode(&mr); err != nil {
		return nil, errors.Wrap(err, "decode mget response")
	}

	instances := make(map[any]any, len(mr.Docs))
	for _, doc := range mr.Docs {
		if !doc.Found {
			continue
		}
		for _, key := range byID[doc.ID] {
			instances[key] = doc.Source
		}
	}

	d.logger.Debug("Resolved documents",
		zap.String("index", d.index),
		zap.Int("keys", len(ids)),
		zap.Int("found", len(instances)),
	)

	return instances, nil
}
