package model

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

type checkpoint struct {
	Format    string       `json:"format"`
	InputSize int          `json:"input_size"`
	Hidden    int          `json:"hidden"`
	Dropout   float64      `json:"dropout"`
	Params    []savedParam `json:"params"`
}

type savedParam struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

const checkpointFormat = "rotforge.mlp.v1"

// Save writes the encoder parameters as JSON.
func (m *MLP) Save(w io.Writer) error {
	ck := checkpoint{
		Format:    checkpointFormat,
		InputSize: m.inputSize,
		Hidden:    m.hidden,
		Dropout:   m.dropout,
	}
	for _, p := range m.Parameters() {
		rows, cols := p.Value.Dims()
		ck.Params = append(ck.Params, savedParam{
			Name: p.Name,
			Rows: rows,
			Cols: cols,
			Data: mat.DenseCopyOf(p.Value).RawMatrix().Data,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ck)
}

// LoadMLP restores an encoder written by Save. The returned encoder is in
// inference mode.
func LoadMLP(r io.Reader) (*MLP, error) {
	var ck checkpoint
	if err := json.NewDecoder(r).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if ck.Format != checkpointFormat {
		return nil, fmt.Errorf("checkpoint: unsupported format %q", ck.Format)
	}
	m, err := NewMLP(MLPConfig{InputSize: ck.InputSize, Hidden: ck.Hidden, Dropout: ck.Dropout})
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Param)
	for _, p := range m.Parameters() {
		byName[p.Name] = p
	}
	for _, sp := range ck.Params {
		p, ok := byName[sp.Name]
		if !ok {
			return nil, fmt.Errorf("checkpoint: unknown parameter %q", sp.Name)
		}
		rows, cols := p.Value.Dims()
		if sp.Rows != rows || sp.Cols != cols || len(sp.Data) != rows*cols {
			return nil, fmt.Errorf("checkpoint: %s is %dx%d, want %dx%d", sp.Name, sp.Rows, sp.Cols, rows, cols)
		}
		p.Value.Copy(mat.NewDense(rows, cols, sp.Data))
		delete(byName, sp.Name)
	}
	if len(byName) > 0 {
		return nil, fmt.Errorf("checkpoint: %d parameters missing", len(byName))
	}
	m.SetTraining(false)
	return m, nil
}
