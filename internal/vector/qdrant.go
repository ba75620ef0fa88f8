// Copyright 2025 Marcin Wiktor
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package vector

import (
	"context"

	"github.com/qdrant/go-client/qdrant"
)

const (
	DefaultQdrantHost = "localhost"
	DefaultQdrantPort = 6334
)

// QdrantStore keeps one collection per indexed API collection. Every
// point is a single endpoint chunk whose payload carries the chunk
// text plus the endpoint metadata (endpoint, method, path, folder)
// used for filtered retrieval.
type QdrantStore struct {
	client *qdrant.Client

	// upserts block until indexed, so a completed ingest task means
	// the endpoints are queryable
	waitUpsert bool
}

func NewQdrantStore(host string, port int) (*QdrantStore, error) {
	if host == "" {
		host = DefaultQdrantHost
	}
	if port == 0 {
		port = DefaultQdrantPort
	}

	c, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, err
	}

	return &QdrantStore{
		client:     c,
		waitUpsert: true,
	}, nil
}

func NewQdrantStoreDefault() (*QdrantStore, error) {
	return NewQdrantStore(DefaultQdrantHost, DefaultQdrantPort)
}

func (s QdrantStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	return s.client.CollectionExists(ctx, collectionName)
}

func (s QdrantStore) CreateCollection(ctx context.Context, collection Collection) error {
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(collection.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (s QdrantStore) Upsert(ctx context.Context, collectionName string, points []*Point) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Wait:           &s.waitUpsert,
		Points:         s.toPointStructs(points),
	})
	return err
}

func (s QdrantStore) Query(ctx context.Context, params *QueryParams) ([]*ScoredPoint, error) {
	queryPoints := &qdrant.QueryPoints{
		CollectionName: params.collection,
		Query:          qdrant.NewQuery(params.query...),
		WithPayload:    qdrant.NewWithPayload(params.withPayload),
	}

	if params.limit > 0 {
		limit := uint64(params.limit)
		queryPoints.Limit = &limit
	}

	if len(params.filters) > 0 {
		queryPoints.Filter = s.toFilter(params.filters)
	}

	res, err := s.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, err
	}

	scoredPoints := make([]*ScoredPoint, 0, len(res))
	for _, sp := range res {
		scoredPoints = append(scoredPoints, &ScoredPoint{
			ID:      sp.Id.GetUuid(),
			Score:   sp.Score,
			Payload: s.fromQdrantPayload(sp.Payload),
		})
	}

	return scoredPoints, nil
}

func (s QdrantStore) Close() error {
	return s.client.Close()
}

func (s QdrantStore) toPointStructs(points []*Point) []*qdrant.PointStruct {
	upsertPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		upsertPoints = append(upsertPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(point.Payload),
		})
	}
	return upsertPoints
}

// toFilter turns endpoint metadata matches (method, folder) into
// qdrant match conditions; multiple filters must all hold.
func (s QdrantStore) toFilter(filters []*QueryMatch) *qdrant.Filter {
	conds := make([]*qdrant.Condition, 0, len(filters))
	for _, filter := range filters {
		conds = append(conds, qdrant.NewMatch(filter.Key, filter.Value))
	}
	return &qdrant.Filter{
		Must: conds,
	}
}

// fromQdrantPayload flattens a point payload to the string fields the
// retrieval executor reads (text, title and the endpoint metadata).
// Non-string payload values have no consumer and are dropped.
func (s QdrantStore) fromQdrantPayload(in map[string]*qdrant.Value) map[string]string {
	payload := make(map[string]string)
	for k, v := range in {
		if textValue := v.GetStringValue(); textValue != "" {
			payload[k] = textValue
		}
	}
	return payload
}
