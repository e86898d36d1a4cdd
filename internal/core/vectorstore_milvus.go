package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	milvusFieldID       = "id"
	milvusFieldVector   = "vector"
	milvusFieldDocument = "document"
	milvusFieldMetadata = "metadata"
)

// milvusStore is a Milvus-backed VectorStore, grounded on the teacher's
// MilvusDB (rag/milvus.go) but reduced to the fixed (id, vector, document,
// metadata) schema of spec §3/§4.2 instead of the teacher's generic
// arbitrary-schema Record abstraction. Metadata, already sanitized to
// primitives by the caller, is stored as one JSON-encoded varchar column —
// Milvus has no native map column type.
type milvusStore struct {
	client    client.Client
	cfg       StoreConfig
	mu        sync.Mutex
	ensured   map[string]bool
}

func newMilvusStore(cfg StoreConfig) (VectorStore, error) {
	c, err := client.NewClient(context.Background(), client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	return &milvusStore{client: c, cfg: cfg, ensured: make(map[string]bool)}, nil
}

func init() {
	registerStore("milvus", newMilvusStore)
}

func (m *milvusStore) EnsureCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensured[name] {
		return nil
	}
	has, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !has {
		schema := entity.NewSchema().WithName(name).WithDescription("retrieval core collection")
		schema.WithField(entity.NewField().WithName(milvusFieldID).WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(512))
		schema.WithField(entity.NewField().WithName(milvusFieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.cfg.Dimension)))
		schema.WithField(entity.NewField().WithName(milvusFieldDocument).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535))
		schema.WithField(entity.NewField().WithName(milvusFieldMetadata).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535))
		if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		idx, err := entity.NewIndexHNSW(m.metric(), 16, 200)
		if err == nil {
			_ = m.client.CreateIndex(ctx, name, milvusFieldVector, idx, false)
		}
	}
	if err := m.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("load collection %s: %w", name, err)
	}
	m.ensured[name] = true
	return nil
}

func (m *milvusStore) metric() entity.MetricType {
	if m.cfg.Metric == "ip" {
		return entity.IP
	}
	return entity.L2
}

func (m *milvusStore) Add(ctx context.Context, collection string, items []VectorEntry) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	vectors := make([][]float32, len(items))
	documents := make([]string, len(items))
	metadatas := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
		vectors[i] = item.Vector
		documents[i] = item.Document
		encoded, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadatas[i] = string(encoded)
	}
	_, err := m.client.Insert(ctx, collection, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnFloatVector(milvusFieldVector, len(vectors[0]), vectors),
		entity.NewColumnVarChar(milvusFieldDocument, documents),
		entity.NewColumnVarChar(milvusFieldMetadata, metadatas),
	)
	if err != nil {
		return wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	return m.client.Flush(ctx, collection, false)
}

func (m *milvusStore) Query(ctx context.Context, collection string, vector []float32, k int, where map[string]any) ([]VectorMatch, error) {
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, err
	}
	results, err := m.client.Search(ctx, collection, nil, "", []string{milvusFieldID, milvusFieldDocument, milvusFieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)}, milvusFieldVector, m.metric(), k, sp)
	if err != nil {
		return nil, wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	var matches []VectorMatch
	for _, r := range results {
		for i := 0; i < r.ResultCount; i++ {
			id, _ := r.IDs.GetAsString(i)
			var document, metaJSON string
			if col := r.Fields.GetColumn(milvusFieldDocument); col != nil {
				if v, err := col.GetAsString(i); err == nil {
					document = v
				}
			}
			if col := r.Fields.GetColumn(milvusFieldMetadata); col != nil {
				if v, err := col.GetAsString(i); err == nil {
					metaJSON = v
				}
			}
			var metadata map[string]any
			_ = json.Unmarshal([]byte(metaJSON), &metadata)
			if where != nil && !matchesWhere(metadata, where) {
				continue
			}
			matches = append(matches, VectorMatch{ID: id, Document: document, Metadata: metadata, Distance: float64(r.Scores[i])})
		}
	}
	return matches, nil
}

func (m *milvusStore) Get(ctx context.Context, collection string, where map[string]any) ([]VectorMatch, error) {
	// Milvus's query-by-scalar-expression surface is schema-specific;
	// the core only ever filters by document_id, so build that expression.
	docID, _ := where["document_id"].(string)
	expr := fmt.Sprintf("%s like \"%s%%\"", milvusFieldID, docID)
	rows, err := m.client.Query(ctx, collection, nil, expr, []string{milvusFieldID, milvusFieldDocument, milvusFieldMetadata})
	if err != nil {
		return nil, wrapErr(ErrVectorStoreError, "VectorStoreError", err)
	}
	var matches []VectorMatch
	idsCol := rows.GetColumn(milvusFieldID)
	docCol := rows.GetColumn(milvusFieldDocument)
	metaCol := rows.GetColumn(milvusFieldMetadata)
	if idsCol == nil {
		return nil, nil
	}
	for i := 0; i < idsCol.Len(); i++ {
		id, _ := idsCol.GetAsString(i)
		var document, metaJSON string
		if docCol != nil {
			document, _ = docCol.GetAsString(i)
		}
		if metaCol != nil {
			metaJSON, _ = metaCol.GetAsString(i)
		}
		var metadata map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &metadata)
		if where != nil && !matchesWhere(metadata, where) {
			continue
		}
		matches = append(matches, VectorMatch{ID: id, Document: document, Metadata: metadata})
	}
	return matches, nil
}

func (m *milvusStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	expr := fmt.Sprintf("%s in [%s]", milvusFieldID, strings.Join(quoted, ","))
	return m.client.Delete(ctx, collection, "", expr)
}

func (m *milvusStore) Count(ctx context.Context, collection string) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, collection)
	if err != nil {
		return 0, err
	}
	var count int
	fmt.Sscanf(stats["row_count"], "%d", &count)
	return count, nil
}

func (m *milvusStore) Close() error {
	return m.client.Close()
}
