package primitives

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestBagBasic(t *testing.T) {
	b := NewBag()
	if _, ok := b.Get("nonexistent"); ok {
		t.Error("Get nonexistent should return false")
	}
	b.Set("key", 42)
	v, ok := b.Get("key")
	if !ok {
		t.Error("Get after Set should return true")
	}
	if vi, okk := v.(int); !okk || vi != 42 {
		t.Errorf("Get value mismatch: got %v (%T)", v, v)
	}
	b.Delete("key")
	if _, ok = b.Get("key"); ok {
		t.Error("Get after Delete should return false")
	}
}

func TestBagConcurrentWritesAndReads(t *testing.T) {
	b := NewBag()
	const nWorkers = 50
	const nOpsPerWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < nOpsPerWorker; j++ {
				key := fmt.Sprintf("w%d_j%d", workerID, j)
				b.Set(key, j)
				v, has := b.Get(key)
				if !has || v.(int) != j {
					t.Errorf("Concurrent Set/Get mismatch for key %s: got %v", key, v)
				}
			}
		}(i)
	}
	wg.Wait()
	if got := len(b.Snapshot()); got != nWorkers*nOpsPerWorker {
		t.Errorf("snapshot size = %d, want %d", got, nWorkers*nOpsPerWorker)
	}
}

func TestBagRestoreReplaces(t *testing.T) {
	b := NewBag()
	b.Set("old", true)
	b.Restore(map[string]any{"new": "v"})
	if _, ok := b.Get("old"); ok {
		t.Error("Restore should drop previous keys")
	}
	if v, _ := b.Get("new"); v != "v" {
		t.Errorf("got %v want v", v)
	}
}

func TestBagJSON(t *testing.T) {
	b := NewBag()
	b.Set("orderId", "o-1")
	b.Set("total", 12.5)

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	back := NewBag()
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}
	if v, _ := back.Get("orderId"); v != "o-1" {
		t.Errorf("orderId = %v", v)
	}
	if v, _ := back.Get("total"); v != 12.5 {
		t.Errorf("total = %v", v)
	}
}

func TestBagYAML(t *testing.T) {
	b := NewBag()
	b.Set("step", "packed")

	data, err := yaml.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	back := NewBag()
	if err := yaml.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}
	if v, _ := back.Get("step"); v != "packed" {
		t.Errorf("step = %v", v)
	}
}
