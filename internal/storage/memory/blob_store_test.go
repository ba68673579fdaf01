package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"dataBody":{}}`)
	uri, err := store.PutObject(context.Background(), "raw/price-7.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://raw/price-7.json" {
		t.Fatalf("unexpected uri %s", uri)
	}

	payload[0] = 'X'
	stored, ok := store.Get("raw/price-7.json")
	if !ok {
		t.Fatal("expected stored object")
	}
	if string(stored) != `{"dataBody":{}}` {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}
