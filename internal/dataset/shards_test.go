package dataset

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadShardsDeterministicOrder(t *testing.T) {
	temp := t.TempDir()
	rootA := filepath.Join(temp, "rootA")
	rootB := filepath.Join(temp, "rootB")
	writeShard(t, filepath.Join(rootA, "shard-000000.tar"), []shardEntry{{key: "a0", label: 0, width: 3, height: 3}})
	writeShard(t, filepath.Join(rootA, "shard-000002.tar"), []shardEntry{{key: "a1", label: 1, width: 3, height: 3}})
	writeShard(t, filepath.Join(rootB, "shard-000001.tar"), []shardEntry{{key: "b0", label: 2, width: 3, height: 3}})

	opts := ShardOptions{Roots: []string{rootA, rootB}, NumWorkers: 3}
	run1, err := LoadShards(context.Background(), opts)
	if err != nil {
		t.Fatalf("LoadShards: %v", err)
	}
	run2, err := LoadShards(context.Background(), opts)
	if err != nil {
		t.Fatalf("LoadShards: %v", err)
	}
	keys := func(m Memory) []string {
		out := make([]string, len(m))
		for i, s := range m {
			out[i] = s.Key
		}
		return out
	}
	want := []string{"a0", "b0", "a1"}
	if got := keys(run1); !reflect.DeepEqual(got, want) {
		t.Fatalf("order=%v want %v", got, want)
	}
	if !reflect.DeepEqual(keys(run1), keys(run2)) {
		t.Fatalf("order not deterministic: %v vs %v", keys(run1), keys(run2))
	}
}

func TestLoadShardsRejectsMixedShapes(t *testing.T) {
	root := t.TempDir()
	writeShard(t, filepath.Join(root, "shard-000000.tar"), []shardEntry{
		{key: "a", width: 3, height: 3},
		{key: "b", width: 4, height: 3},
	})
	if _, err := LoadShards(context.Background(), ShardOptions{Roots: []string{root}}); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestLoadShardsLimit(t *testing.T) {
	root := t.TempDir()
	writeShard(t, filepath.Join(root, "shard-000000.tar"), []shardEntry{
		{key: "a", width: 2, height: 2},
		{key: "b", width: 2, height: 2},
		{key: "c", width: 2, height: 2},
	})
	ds, err := LoadShards(context.Background(), ShardOptions{Roots: []string{root}, Limit: 2})
	if err != nil {
		t.Fatalf("LoadShards: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", ds.Len())
	}
}
