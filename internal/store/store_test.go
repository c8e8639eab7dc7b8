package store

import (
	"context"
	"testing"
)

type blob struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemDurableRoundTrip(t *testing.T) {
	d := NewMemDurable()
	ctx := context.Background()

	var out blob
	found, err := d.Load(ctx, "widget", &out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("expected no state before first save")
	}

	if err := d.Save(ctx, "widget", blob{Name: "a", Count: 3}); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err = d.Load(ctx, "widget", &out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatalf("expected state after save")
	}
	if out.Name != "a" || out.Count != 3 {
		t.Fatalf("unexpected state: %+v", out)
	}
}

func TestMemDurableOverwrite(t *testing.T) {
	d := NewMemDurable()
	ctx := context.Background()

	if err := d.Save(ctx, "widget", blob{Name: "a", Count: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := d.Save(ctx, "widget", blob{Name: "b", Count: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out blob
	if _, err := d.Load(ctx, "widget", &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.Name != "b" || out.Count != 2 {
		t.Fatalf("expected overwritten state, got %+v", out)
	}
}

func TestMemKVGetSetDelete(t *testing.T) {
	kv := NewMemKV()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to be absent")
	}

	if err := kv.Set(ctx, "repo:a", "payload", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := kv.Get(ctx, "repo:a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || val != "payload" {
		t.Fatalf("expected payload, got %q ok=%v", val, ok)
	}

	if err := kv.Delete(ctx, "repo:a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err = kv.Get(ctx, "repo:a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be gone after delete")
	}
}
