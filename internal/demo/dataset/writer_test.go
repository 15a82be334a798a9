package dataset

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/shoptalk/shoptalk/internal/storage"
)

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Now()}, nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var infos []storage.ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestWriterSplitsIntoParts(t *testing.T) {
	store := newMemoryStore()
	writer, err := NewWriter(Config{
		DatasetName: "olist",
		TableName:   "olist_master",
		Rows:        250,
		PartSize:    100,
		Seed:        9,
	}, nil, store)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	parts, err := writer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if parts != 3 {
		t.Fatalf("parts = %d", parts)
	}

	for _, key := range []string{
		"datasets/olist/olist_master/part-00000.parquet",
		"datasets/olist/olist_master/part-00001.parquet",
		"datasets/olist/olist_master/part-00002.parquet",
	} {
		if _, ok := store.objects[key]; !ok {
			t.Fatalf("missing part %q, have %v", key, keysOf(store.objects))
		}
	}

	reader := parquet.NewGenericReader[Row](bytes.NewReader(store.objects["datasets/olist/olist_master/part-00002.parquet"]))
	defer func() { _ = reader.Close() }()
	rows := make([]Row, 60)
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 50 {
		t.Fatalf("last part rows = %d, want 50", n)
	}
}

func TestNewWriterValidation(t *testing.T) {
	if _, err := NewWriter(DefaultConfig(), nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	cfg := DefaultConfig()
	cfg.Rows = 0
	if _, err := NewWriter(cfg, nil, newMemoryStore()); err == nil {
		t.Fatal("expected error for zero rows")
	}
}

func keysOf(objects map[string][]byte) []string {
	keys := make([]string, 0, len(objects))
	for key := range objects {
		keys = append(keys, key)
	}
	return keys
}
