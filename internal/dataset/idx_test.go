package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeIDX(t *testing.T, dir string, gz bool, images [][]byte, rows, cols int, labels []byte) (string, string) {
	t.Helper()
	img := &bytes.Buffer{}
	binary.Write(img, binary.BigEndian, [4]uint32{idxImagesMagic, uint32(len(images)), uint32(rows), uint32(cols)})
	for _, px := range images {
		img.Write(px)
	}
	lbl := &bytes.Buffer{}
	binary.Write(lbl, binary.BigEndian, [2]uint32{idxLabelsMagic, uint32(len(labels))})
	lbl.Write(labels)

	ext := ""
	if gz {
		ext = ".gz"
	}
	imgPath := filepath.Join(dir, "images-idx3-ubyte"+ext)
	lblPath := filepath.Join(dir, "labels-idx1-ubyte"+ext)
	for path, data := range map[string][]byte{imgPath: img.Bytes(), lblPath: lbl.Bytes()} {
		if gz {
			zb := &bytes.Buffer{}
			zw := gzip.NewWriter(zb)
			zw.Write(data)
			zw.Close()
			data = zb.Bytes()
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return imgPath, lblPath
}

func TestLoadIDX(t *testing.T) {
	for _, gz := range []bool{false, true} {
		imgPath, lblPath := writeIDX(t, t.TempDir(), gz,
			[][]byte{{0, 255, 51, 0}, {255, 255, 255, 255}, {0, 0, 0, 0}}, 2, 2, []byte{5, 1, 9})

		ds, err := LoadIDX(imgPath, lblPath, 2)
		if err != nil {
			t.Fatalf("gz=%v LoadIDX: %v", gz, err)
		}
		if ds.Len() != 2 {
			t.Fatalf("gz=%v expected limit of 2 samples, got %d", gz, ds.Len())
		}
		s := ds[0]
		if s.Label != 5 || s.Image.Height != 2 || s.Image.Width != 2 || s.Image.Channels != 1 {
			t.Fatalf("gz=%v unexpected sample %+v", gz, s)
		}
		if math.Abs(s.Image.At(0, 0, 1)-1) > 1e-12 || math.Abs(s.Image.At(0, 1, 0)-0.2) > 1e-12 {
			t.Fatalf("gz=%v pixels=%v", gz, s.Image.Pix)
		}
	}
}

func TestLoadIDXBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad")
	os.WriteFile(path, make([]byte, 16), 0o644)
	if _, err := LoadIDX(path, "", 0); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestLoadIDXReadsOnlyRequestedLabels(t *testing.T) {
	dir := t.TempDir()
	imgPath, _ := writeIDX(t, dir, false, [][]byte{{1}, {2}, {3}}, 1, 1, nil)

	// header claims far more labels than the file holds
	lbl := &bytes.Buffer{}
	binary.Write(lbl, binary.BigEndian, [2]uint32{idxLabelsMagic, math.MaxUint32})
	lbl.Write([]byte{7, 8})
	lblPath := filepath.Join(dir, "huge-labels-idx1-ubyte")
	if err := os.WriteFile(lblPath, lbl.Bytes(), 0o644); err != nil {
		t.Fatalf("write labels: %v", err)
	}

	ds, err := LoadIDX(imgPath, lblPath, 2)
	if err != nil {
		t.Fatalf("LoadIDX: %v", err)
	}
	if ds.Len() != 2 || ds[0].Label != 7 || ds[1].Label != 8 {
		t.Fatalf("unexpected samples %+v", ds)
	}
	if _, err := LoadIDX(imgPath, lblPath, 0); err == nil {
		t.Fatal("expected error when the label file is truncated")
	}
}

func TestLoadIDXTooFewLabels(t *testing.T) {
	imgPath, lblPath := writeIDX(t, t.TempDir(), false, [][]byte{{1}, {2}, {3}}, 1, 1, []byte{4})
	if _, err := LoadIDX(imgPath, lblPath, 0); err == nil {
		t.Fatal("expected label count error")
	}
}
