package vector

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/mirrorlab/codesync/internal/seal"
)

const defaultClass = "CodeEmbedding"

// WeaviateIndex stores sealed records as vectorless Weaviate objects. The
// object ID is derived deterministically from the chunk hash so upserts are
// idempotent.
type WeaviateIndex struct {
	client *weaviate.Client
	class  string
}

func NewWeaviateIndex(ctx context.Context, cfg *Config) (*WeaviateIndex, error) {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	class := cfg.Class
	if class == "" {
		class = defaultClass
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: weaviate client: %w", err)
	}

	idx := &WeaviateIndex{client: client, class: class}
	if err := idx.ensureClass(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (w *WeaviateIndex) ensureClass(ctx context.Context) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(w.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("vector: check class: %w", err)
	}
	if exists {
		return nil
	}

	err = w.client.Schema().ClassCreator().WithClass(&models.Class{
		Class:      w.class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "chunkHash", DataType: []string{"text"}},
			{Name: "ciphertext", DataType: []string{"text"}},
			{Name: "nonce", DataType: []string{"text"}},
			{Name: "keyId", DataType: []string{"text"}},
		},
	}).Do(ctx)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("vector: create class: %w", err)
	}
	return nil
}

func (w *WeaviateIndex) objectID(chunkHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(w.class+"/"+chunkHash)).String()
}

func (w *WeaviateIndex) Upsert(ctx context.Context, rec *seal.Record) error {
	id := w.objectID(rec.ChunkHash)
	props := map[string]any{
		"chunkHash":  rec.ChunkHash,
		"ciphertext": base64.StdEncoding.EncodeToString(rec.Ciphertext),
		"nonce":      base64.StdEncoding.EncodeToString(rec.Nonce),
		"keyId":      rec.KeyID,
	}

	// delete-then-create keeps the deterministic ID stable across replaces
	_ = w.client.Data().Deleter().WithClassName(w.class).WithID(id).Do(ctx)

	_, err := w.client.Data().Creator().
		WithClassName(w.class).
		WithID(id).
		WithProperties(props).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("vector: upsert %s: %w", rec.ChunkHash, err)
	}
	return nil
}

func (w *WeaviateIndex) Delete(ctx context.Context, chunkHash string) error {
	err := w.client.Data().Deleter().
		WithClassName(w.class).
		WithID(w.objectID(chunkHash)).
		Do(ctx)
	if err != nil && !strings.Contains(err.Error(), "404") {
		return fmt.Errorf("vector: delete %s: %w", chunkHash, err)
	}
	return nil
}

func (w *WeaviateIndex) Get(ctx context.Context, chunkHash string) (*seal.Record, error) {
	objs, err := w.client.Data().ObjectsGetter().
		WithClassName(w.class).
		WithID(w.objectID(chunkHash)).
		Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("vector: get %s: %w", chunkHash, err)
	}
	if len(objs) == 0 {
		return nil, ErrNotFound
	}
	return objectToRecord(objs[0])
}

func (w *WeaviateIndex) Keys(ctx context.Context) ([]string, error) {
	objs, err := w.client.Data().ObjectsGetter().
		WithClassName(w.class).
		WithLimit(10000).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector: list keys: %w", err)
	}

	keys := make([]string, 0, len(objs))
	for _, obj := range objs {
		props, ok := obj.Properties.(map[string]any)
		if !ok {
			continue
		}
		if h, ok := props["chunkHash"].(string); ok {
			keys = append(keys, h)
		}
	}
	return keys, nil
}

func objectToRecord(obj *models.Object) (*seal.Record, error) {
	props, ok := obj.Properties.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("vector: object %s has no properties", obj.ID)
	}

	strProp := func(name string) string {
		s, _ := props[name].(string)
		return s
	}

	ct, err := base64.StdEncoding.DecodeString(strProp("ciphertext"))
	if err != nil {
		return nil, fmt.Errorf("vector: decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(strProp("nonce"))
	if err != nil {
		return nil, fmt.Errorf("vector: decode nonce: %w", err)
	}

	return &seal.Record{
		ChunkHash:  strProp("chunkHash"),
		Ciphertext: ct,
		Nonce:      nonce,
		KeyID:      strProp("keyId"),
	}, nil
}
