package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
)

func TestStreamShardPairsEntries(t *testing.T) {
	dir := t.TempDir()
	shard := filepath.Join(dir, "shard-000000.tar")
	writeShard(t, shard, []shardEntry{
		{key: "000001", label: 3, width: 4, height: 4, fill: 255},
		{key: "000002", label: 7, width: 4, height: 4, fill: 0},
	})

	samplesCh, errCh := StreamShard(context.Background(), shard, 4)
	var samples []Sample
	for s := range samplesCh {
		samples = append(samples, s)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("StreamShard returned error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Key < samples[j].Key })
	if samples[0].Label != 3 || samples[1].Label != 7 {
		t.Fatalf("labels=%d,%d", samples[0].Label, samples[1].Label)
	}
	img := samples[0].Image
	if img.Channels != 1 || img.Height != 4 || img.Width != 4 {
		t.Fatalf("shape=[%d,%d,%d]", img.Channels, img.Height, img.Width)
	}
	if math.Abs(img.At(0, 2, 2)-1) > 1e-9 {
		t.Fatalf("white pixel decoded as %f", img.At(0, 2, 2))
	}
	if samples[1].Image.At(0, 0, 0) != 0 {
		t.Fatalf("black pixel decoded as %f", samples[1].Image.At(0, 0, 0))
	}
}

func TestStreamShardIncompletePair(t *testing.T) {
	dir := t.TempDir()
	shard := filepath.Join(dir, "shard-000000.tar")
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	addTarEntry(t, tw, "lonely.cls", []byte("1"))
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := os.WriteFile(shard, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}

	samplesCh, errCh := StreamShard(context.Background(), shard, 4)
	for range samplesCh {
		t.Fatal("unexpected sample")
	}
	if err := <-errCh; err == nil {
		t.Fatal("expected incomplete-sample error")
	}
}

type shardEntry struct {
	key           string
	label         int
	width, height int
	fill          uint8
}

func writeShard(t *testing.T, path string, entries []shardEntry) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		img := image.NewGray(image.Rect(0, 0, e.width, e.height))
		for y := 0; y < e.height; y++ {
			for x := 0; x < e.width; x++ {
				img.SetGray(x, y, color.Gray{Y: e.fill})
			}
		}
		pngBuf := &bytes.Buffer{}
		if err := png.Encode(pngBuf, img); err != nil {
			t.Fatalf("encode: %v", err)
		}
		addTarEntry(t, tw, e.key+".png", pngBuf.Bytes())
		addTarEntry(t, tw, e.key+".cls", []byte(strconv.Itoa(e.label)))
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}
}

func addTarEntry(t *testing.T, tw *tar.Writer, name string, data []byte) {
	t.Helper()
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("write data: %v", err)
	}
}
