package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Probabilities maps class label to probability and remembers the order in
// which labels were first set. Overwriting a label keeps its position.
type Probabilities struct {
	labels []string
	values map[string]float64
}

// FromPredictions builds probabilities by walking preds in order (last write wins).
func FromPredictions(preds []Prediction) Probabilities {
	var p Probabilities
	for _, pr := range preds {
		p.Set(pr.Label, pr.Confidence)
	}
	return p
}

func (p *Probabilities) Set(label string, value float64) {
	if p.values == nil {
		p.values = make(map[string]float64)
	}
	if _, ok := p.values[label]; !ok {
		p.labels = append(p.labels, label)
	}
	p.values[label] = value
}

func (p Probabilities) Get(label string) (float64, bool) {
	v, ok := p.values[label]
	return v, ok
}

func (p Probabilities) Len() int { return len(p.labels) }

// Labels returns labels in insertion order.
func (p Probabilities) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// Map returns an unordered copy.
func (p Probabilities) Map() map[string]float64 {
	out := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes an object whose keys follow insertion order.
func (p Probabilities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range p.labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.values[label])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the key order of the source document.
func (p *Probabilities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = Probabilities{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("probabilities: expected object, got %v", tok)
	}
	var out Probabilities
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("probabilities: expected string key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("probabilities: value for %q: %w", label, err)
		}
		out.Set(label, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
