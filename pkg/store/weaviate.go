package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	weaviateGraphql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	DocumentClassName = "InkwellDocument"
	ChunkClassName    = "InkwellChunk"

	// Document class properties.
	docIDProperty            = "docId"
	docTitleProperty         = "title"
	docTypeProperty          = "documentType"
	docContentHashProperty   = "contentHash"
	docFormatKeyProperty     = "formatKey"
	docSimHashProperty       = "simhash"
	docGatedProperty         = "gated"
	docEnrichVersionProperty = "enrichmentVersion"
	docCreatedAtProperty     = "createdAt"
	docIngestedAtProperty    = "ingestedAt"
	docMetadataProperty      = "metadataJson"

	// Chunk class properties.
	chunkIDProperty       = "chunkId"
	chunkDocIDProperty    = "docId"
	chunkSequenceProperty = "sequence"
	chunkContentProperty  = "content"
)

// fuzzyWarmLimit caps how many documents seed the simhash sidecar.
const fuzzyWarmLimit = 10000

// WeaviateStore persists documents and chunk vectors in Weaviate.
type WeaviateStore struct {
	client *weaviate.Client
	logger *log.Logger
	fuzzy  *fuzzyIndex
}

var _ VectorStore = (*WeaviateStore)(nil)

func NewWeaviateStore(client *weaviate.Client, logger *log.Logger) *WeaviateStore {
	return &WeaviateStore{
		client: client,
		logger: logger,
		fuzzy:  newFuzzyIndex(),
	}
}

// EnsureSchemaExists creates both classes when missing. Vectorizer is
// none: the pipeline supplies vectors explicitly.
func (s *WeaviateStore) EnsureSchemaExists(ctx context.Context) error {
	if err := s.ensureClass(ctx, s.documentClass()); err != nil {
		return err
	}
	if err := s.ensureClass(ctx, s.chunkClass()); err != nil {
		return err
	}
	return nil
}

func (s *WeaviateStore) ensureClass(ctx context.Context, classObj *models.Class) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(classObj.Class).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking class existence for '%s': %w", classObj.Class, err)
	}
	if exists {
		return nil
	}

	if err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("creating class '%s': %w", classObj.Class, err)
	}
	s.logger.Info("created weaviate class", "class", classObj.Class)
	return nil
}

func (s *WeaviateStore) documentClass() *models.Class {
	return &models.Class{
		Class:      DocumentClassName,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: docIDProperty, DataType: []string{"text"}},
			{Name: docTitleProperty, DataType: []string{"text"}},
			{Name: docTypeProperty, DataType: []string{"text"}},
			{Name: docContentHashProperty, DataType: []string{"text"}},
			{Name: docFormatKeyProperty, DataType: []string{"text"}},
			{Name: docSimHashProperty, DataType: []string{"text"}},
			{Name: docGatedProperty, DataType: []string{"boolean"}},
			{Name: docEnrichVersionProperty, DataType: []string{"text"}},
			{Name: docCreatedAtProperty, DataType: []string{"date"}},
			{Name: docIngestedAtProperty, DataType: []string{"date"}},
			{Name: docMetadataProperty, DataType: []string{"text"}},
		},
	}
}

func (s *WeaviateStore) chunkClass() *models.Class {
	props := []*models.Property{
		{Name: chunkIDProperty, DataType: []string{"text"}},
		{Name: chunkDocIDProperty, DataType: []string{"text"}},
		{Name: chunkSequenceProperty, DataType: []string{"int"}},
		{Name: chunkContentProperty, DataType: []string{"text"}},
		{Name: "chunkType", DataType: []string{"text"}},
		{Name: "sectionTitle", DataType: []string{"text"}},
		{Name: "parentSections", DataType: []string{"text"}},
		{Name: "topics", DataType: []string{"text"}},
		{Name: "projects", DataType: []string{"text"}},
		{Name: "places", DataType: []string{"text"}},
		{Name: "people", DataType: []string{"text"}},
		{Name: "organizations", DataType: []string{"text"}},
		{Name: "technologies", DataType: []string{"text"}},
		{Name: "dates", DataType: []string{"text"}},
		{Name: "createdAt", DataType: []string{"date"}},
		{Name: "ingestedAt", DataType: []string{"date"}},
		{Name: "signalness", DataType: []string{"number"}},
		{Name: "recencyScore", DataType: []string{"number"}},
		{Name: "contentHash", DataType: []string{"text"}},
	}
	return &models.Class{
		Class:      ChunkClassName,
		Vectorizer: "none",
		Properties: props,
	}
}

// PutDocument upserts the metadata row by deterministic object ID, so
// re-ingestion with force overwrites in place.
func (s *WeaviateStore) PutDocument(ctx context.Context, rec DocumentRecord) error {
	properties := map[string]interface{}{
		docIDProperty:            rec.DocID,
		docTitleProperty:         rec.Title,
		docTypeProperty:          rec.DocumentType,
		docContentHashProperty:   rec.ContentSHA256,
		docFormatKeyProperty:     rec.FormatKey,
		docSimHashProperty:       strconv.FormatUint(rec.SimHash, 16),
		docGatedProperty:         rec.Gated,
		docEnrichVersionProperty: rec.EnrichmentVersion,
		docIngestedAtProperty:    rec.IngestedAt.Format(time.RFC3339),
		docMetadataProperty:      rec.MetadataJSON,
	}
	if !rec.CreatedAt.IsZero() {
		properties[docCreatedAtProperty] = rec.CreatedAt.Format(time.RFC3339)
	}

	obj := &models.Object{
		Class:      DocumentClassName,
		ID:         deterministicID("doc", rec.DocID),
		Properties: properties,
	}

	if err := s.storeBatch(ctx, []*models.Object{obj}); err != nil {
		return fmt.Errorf("storing document %s: %w", rec.DocID, err)
	}

	s.fuzzy.add(rec.DocID, rec.SimHash)
	return nil
}

// GetDocument fetches one metadata row by doc ID.
func (s *WeaviateStore) GetDocument(ctx context.Context, docID string) (*DocumentRecord, error) {
	records, err := s.queryDocuments(ctx, docIDProperty, docID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// PutChunks batch-writes chunk objects with their vectors. Chunk object
// IDs derive from chunk_id, so identical input overwrites in place.
func (s *WeaviateStore) PutChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(chunks))
	for _, chunk := range chunks {
		properties := map[string]interface{}{
			chunkIDProperty:       chunk.ChunkID,
			chunkDocIDProperty:    chunk.DocID,
			chunkSequenceProperty: chunk.Sequence,
			chunkContentProperty:  chunk.Text,
		}
		for key, value := range chunk.Metadata {
			properties[key] = value
		}
		objects = append(objects, &models.Object{
			Class:      ChunkClassName,
			ID:         deterministicID("chunk", chunk.ChunkID),
			Properties: properties,
			Vector:     chunk.Vector,
		})
	}

	if err := s.storeBatch(ctx, objects); err != nil {
		return fmt.Errorf("storing %d chunks: %w", len(chunks), err)
	}
	return nil
}

// DeleteDocument removes the metadata row and drops the document from
// the simhash sidecar; used by rollback so a half-stored document never
// shadows a retry as a duplicate.
func (s *WeaviateStore) DeleteDocument(ctx context.Context, docID string) error {
	where := filters.Where().
		WithPath([]string{docIDProperty}).
		WithOperator(filters.Equal).
		WithValueText(docID)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(DocumentClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", docID, err)
	}

	s.fuzzy.remove(docID)
	return nil
}

// DeleteDocumentChunks removes every chunk belonging to a document;
// used by rollback and forced re-ingestion.
func (s *WeaviateStore) DeleteDocumentChunks(ctx context.Context, docID string) error {
	where := filters.Where().
		WithPath([]string{chunkDocIDProperty}).
		WithOperator(filters.Equal).
		WithValueText(docID)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ChunkClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting chunks for document %s: %w", docID, err)
	}
	return nil
}

// FindByContentHash resolves an exact-duplicate lookup.
func (s *WeaviateStore) FindByContentHash(ctx context.Context, hash string) (string, bool, error) {
	return s.findDocBy(ctx, docContentHashProperty, hash)
}

// FindByFormatKey resolves a format-key lookup (email Message-ID, chat
// opening-turn hash).
func (s *WeaviateStore) FindByFormatKey(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	return s.findDocBy(ctx, docFormatKeyProperty, key)
}

// NearestSimHash scans the in-process sidecar.
func (s *WeaviateStore) NearestSimHash(ctx context.Context, hash uint64) (string, float64, bool, error) {
	docID, similarity, found := s.fuzzy.nearest(hash)
	return docID, similarity, found, nil
}

// WarmFuzzyIndex seeds the simhash sidecar from stored documents. Called
// once at startup; lookup quality degrades gracefully if it fails.
func (s *WeaviateStore) WarmFuzzyIndex(ctx context.Context) error {
	fields := []weaviateGraphql.Field{
		{Name: docIDProperty},
		{Name: docSimHashProperty},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(DocumentClassName).
		WithFields(fields...).
		WithLimit(fuzzyWarmLimit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("warming fuzzy index: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("warming fuzzy index: %s", graphqlErrors(result.Errors))
	}

	for _, props := range getObjects(result.Data, DocumentClassName) {
		docID, _ := props[docIDProperty].(string)
		hashHex, _ := props[docSimHashProperty].(string)
		if hash, err := strconv.ParseUint(hashHex, 16, 64); err == nil {
			s.fuzzy.add(docID, hash)
		}
	}

	s.logger.Info("fuzzy index warmed", "documents", s.fuzzy.size())
	return nil
}

func (s *WeaviateStore) findDocBy(ctx context.Context, property, value string) (string, bool, error) {
	records, err := s.queryDocuments(ctx, property, value, 1)
	if err != nil {
		return "", false, err
	}
	if len(records) == 0 {
		return "", false, nil
	}
	return records[0].DocID, true, nil
}

func (s *WeaviateStore) queryDocuments(ctx context.Context, property, value string, limit int) ([]DocumentRecord, error) {
	fields := []weaviateGraphql.Field{
		{Name: docIDProperty},
		{Name: docTitleProperty},
		{Name: docTypeProperty},
		{Name: docContentHashProperty},
		{Name: docFormatKeyProperty},
		{Name: docSimHashProperty},
		{Name: docGatedProperty},
		{Name: docEnrichVersionProperty},
		{Name: docCreatedAtProperty},
		{Name: docIngestedAtProperty},
		{Name: docMetadataProperty},
	}

	where := filters.Where().
		WithPath([]string{property}).
		WithOperator(filters.Equal).
		WithValueText(value)

	result, err := s.client.GraphQL().Get().
		WithClassName(DocumentClassName).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying documents by %s: %w", property, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("querying documents by %s: %s", property, graphqlErrors(result.Errors))
	}

	var records []DocumentRecord
	for _, props := range getObjects(result.Data, DocumentClassName) {
		rec := DocumentRecord{}
		rec.DocID, _ = props[docIDProperty].(string)
		rec.Title, _ = props[docTitleProperty].(string)
		rec.DocumentType, _ = props[docTypeProperty].(string)
		rec.ContentSHA256, _ = props[docContentHashProperty].(string)
		rec.FormatKey, _ = props[docFormatKeyProperty].(string)
		rec.EnrichmentVersion, _ = props[docEnrichVersionProperty].(string)
		rec.MetadataJSON, _ = props[docMetadataProperty].(string)
		if gated, ok := props[docGatedProperty].(bool); ok {
			rec.Gated = gated
		}
		if hashHex, ok := props[docSimHashProperty].(string); ok {
			if hash, err := strconv.ParseUint(hashHex, 16, 64); err == nil {
				rec.SimHash = hash
			}
		}
		if ts, ok := props[docCreatedAtProperty].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.CreatedAt = t
			}
		}
		if ts, ok := props[docIngestedAtProperty].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.IngestedAt = t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *WeaviateStore) storeBatch(ctx context.Context, objects []*models.Object) error {
	batcher := s.client.Batch().ObjectsBatcher()
	for _, obj := range objects {
		batcher = batcher.WithObjects(obj)
	}

	result, err := batcher.Do(ctx)
	if err != nil {
		return fmt.Errorf("batch storing objects: %w", err)
	}
	for _, obj := range result {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("object error: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// deterministicID derives a stable Weaviate object UUID from a logical
// key, making writes idempotent.
func deterministicID(kind, key string) strfmt.UUID {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("inkwell/"+kind+"/"+key))
	return strfmt.UUID(id.String())
}

func getObjects(data map[string]models.JSONObject, className string) []map[string]interface{} {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[className].([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, item := range items {
		if props, ok := item.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func graphqlErrors(errs []*models.GraphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
