package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801
)

// LoadIDX reads an MNIST-style IDX image file and its label file. Files
// ending in .gz are decompressed on the fly. A positive limit caps the number
// of samples read.
func LoadIDX(imagesPath, labelsPath string, limit int) (Memory, error) {
	imgR, closeImg, err := openMaybeGzip(imagesPath)
	if err != nil {
		return nil, err
	}
	defer closeImg()

	var header [4]uint32
	if err := binary.Read(imgR, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("idx %s: read header: %w", imagesPath, err)
	}
	if header[0] != idxImagesMagic {
		return nil, fmt.Errorf("idx %s: bad magic %#08x", imagesPath, header[0])
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])

	if limit > 0 && limit < count {
		count = limit
	}

	var labels []byte
	if labelsPath != "" {
		labels, err = readIDXLabels(labelsPath, count)
		if err != nil {
			return nil, err
		}
	}
	samples := make(Memory, count)
	buf := make([]byte, rows*cols)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(imgR, buf); err != nil {
			return nil, fmt.Errorf("idx %s: image %d: %w", imagesPath, i, err)
		}
		img := NewImage(1, rows, cols)
		for j, b := range buf {
			img.Pix[j] = float64(b) / 255.0
		}
		label := -1
		if labels != nil {
			label = int(labels[i])
		}
		samples[i] = Sample{Key: strconv.Itoa(i), Image: img, Label: label}
	}
	return samples, nil
}

// readIDXLabels reads the first want labels. The header count is only
// checked against want, never used to size the buffer.
func readIDXLabels(path string, want int) ([]byte, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("idx %s: read header: %w", path, err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("idx %s: bad magic %#08x", path, header[0])
	}
	if int64(header[1]) < int64(want) {
		return nil, fmt.Errorf("idx: %d labels for %d images", header[1], want)
	}
	labels := make([]byte, want)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("idx %s: labels: %w", path, err)
	}
	return labels, nil
}

func openMaybeGzip(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return bufio.NewReader(f), func() { f.Close() }, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	return bufio.NewReader(gz), func() {
		gz.Close()
		f.Close()
	}, nil
}
