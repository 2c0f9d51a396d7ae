package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// DiscoverShards returns the paths of shard TAR files beneath root, sorted.
func DiscoverShards(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover shards under %s: %w", root, err)
	}
	sort.Strings(entries)
	return entries, nil
}

// interleaveRoots discovers shards in every root and orders them round-robin
// across roots so no single root dominates the front of the dataset.
func interleaveRoots(roots []string) ([]string, error) {
	perRoot := make([][]string, 0, len(roots))
	for _, root := range roots {
		shards, err := DiscoverShards(root)
		if err != nil {
			return nil, err
		}
		if len(shards) == 0 {
			return nil, fmt.Errorf("no shards discovered under %s", root)
		}
		perRoot = append(perRoot, shards)
	}
	var order []string
	for depth := 0; ; depth++ {
		advanced := false
		for _, shards := range perRoot {
			if depth < len(shards) {
				order = append(order, shards[depth])
				advanced = true
			}
		}
		if !advanced {
			break
		}
	}
	return order, nil
}
