package pipeline

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	OrderFirstOccurrence = "first_occurrence"
	OrderSorted          = "sorted"
)

// Encoder maps the clinic column to numeric codes for the model.
type Encoder interface {
	Name() string
	Encode(clinics []string) ([]float64, error)
}

// BatchEncoder fits a fresh mapping on every call from the clinics present
// in that batch. The same clinic can therefore get different codes in
// different requests. OrderSorted reproduces sklearn's LabelEncoder.
type BatchEncoder struct {
	Order string
}

func NewBatchEncoder(order string) (*BatchEncoder, error) {
	switch order {
	case "", OrderFirstOccurrence:
		return &BatchEncoder{Order: OrderFirstOccurrence}, nil
	case OrderSorted:
		return &BatchEncoder{Order: OrderSorted}, nil
	}
	return nil, fmt.Errorf("unknown encoder order %q", order)
}

func (e *BatchEncoder) Name() string { return "batch:" + e.Order }

func (e *BatchEncoder) Encode(clinics []string) ([]float64, error) {
	codes := make(map[string]float64)
	switch e.Order {
	case OrderSorted:
		distinct := make([]string, 0)
		for _, c := range clinics {
			if _, ok := codes[c]; !ok {
				codes[c] = 0
				distinct = append(distinct, c)
			}
		}
		sort.Strings(distinct)
		for i, c := range distinct {
			codes[c] = float64(i)
		}
	default:
		for _, c := range clinics {
			if _, ok := codes[c]; !ok {
				codes[c] = float64(len(codes))
			}
		}
	}

	out := make([]float64, len(clinics))
	for i, c := range clinics {
		out[i] = codes[c]
	}
	return out, nil
}

// Vocabulary is the clinic list saved next to the model at training time.
// A clinic's code is its index in Classes, matching LabelEncoder.classes_.
type Vocabulary struct {
	Version string   `yaml:"version"`
	Classes []string `yaml:"classes"`
}

func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary yaml: %w", err)
	}
	if len(v.Classes) == 0 {
		return nil, errors.New("vocabulary has no classes")
	}
	return &v, nil
}

// VocabularyEncoder uses a fixed, versioned mapping so codes are stable across
// requests and consistent with training.
type VocabularyEncoder struct {
	version string
	codes   map[string]float64
}

func NewVocabularyEncoder(v *Vocabulary) (*VocabularyEncoder, error) {
	codes := make(map[string]float64, len(v.Classes))
	for i, c := range v.Classes {
		if _, dup := codes[c]; dup {
			return nil, fmt.Errorf("vocabulary %s lists %q twice", v.Version, c)
		}
		codes[c] = float64(i)
	}
	return &VocabularyEncoder{version: v.Version, codes: codes}, nil
}

func (e *VocabularyEncoder) Name() string {
	if e.version == "" {
		return "vocabulary"
	}
	return "vocabulary:" + e.version
}

func (e *VocabularyEncoder) Encode(clinics []string) ([]float64, error) {
	out := make([]float64, len(clinics))
	var unknown []string
	for i, c := range clinics {
		code, ok := e.codes[c]
		if !ok {
			unknown = append(unknown, c)
			continue
		}
		out[i] = code
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: clinic(s) not in vocabulary %s: %s",
			ErrUnknownCategory, e.Name(), strings.Join(dedupe(unknown), ", "))
	}
	return out, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NewEncoder builds the configured clinic encoder. A vocabulary, when given,
// takes precedence over the batch order.
func NewEncoder(order, vocabularyPath string) (Encoder, error) {
	if vocabularyPath != "" {
		v, err := LoadVocabulary(vocabularyPath)
		if err != nil {
			return nil, err
		}
		enc, err := NewVocabularyEncoder(v)
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
	enc, err := NewBatchEncoder(order)
	if err != nil {
		return nil, err
	}
	return enc, nil
}
