// Package pipeline turns a prediction request into a ranked, annotated result
// set: filter and project the dataset, encode the clinic column, run the
// classifier, then compose and order the results. Stages run strictly in that
// order and a run either returns the complete result set or an error.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"noshow-prediction-api/dataset"
	"noshow-prediction-api/metrics"
	"noshow-prediction-api/models"
)

type Pipeline struct {
	store    *dataset.Store
	encoder  Encoder
	provider ModelProvider
}

func New(store *dataset.Store, encoder Encoder, provider ModelProvider) *Pipeline {
	return &Pipeline{store: store, encoder: encoder, provider: provider}
}

type Result struct {
	RunID        string
	Window       Window
	Results      models.ResultSet
	Encoder      string
	ModelVersion string
	Duration     time.Duration
}

func (p *Pipeline) Store() *dataset.Store { return p.store }

func (p *Pipeline) EncoderName() string { return p.encoder.Name() }

// ModelVersion loads the classifier if necessary and reports its version.
func (p *Pipeline) ModelVersion(ctx context.Context) (string, error) {
	clf, err := p.model(ctx)
	if err != nil {
		return "", err
	}
	return clf.Version(), nil
}

func (p *Pipeline) model(ctx context.Context) (Classifier, error) {
	clf, err := p.provider.Model(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if clf == nil {
		return nil, fmt.Errorf("%w: provider returned no model", ErrModelUnavailable)
	}
	return clf, nil
}

// Handle parses the raw request and runs it.
func (p *Pipeline) Handle(ctx context.Context, req models.PredictionRequest) (*Result, error) {
	w, err := ParseRequest(req)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, w)
}

func (p *Pipeline) Run(ctx context.Context, w Window) (*Result, error) {
	began := time.Now()
	res := &Result{RunID: uuid.NewString(), Window: w, Encoder: p.encoder.Name()}
	logger := zerolog.Ctx(ctx).With().Str("run_id", res.RunID).Logger()

	stage := func(name string, start time.Time) {
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}

	t := time.Now()
	proj := Project(p.store, w.Start, w.End, w.Clinics)
	stage("project", t)

	if proj.Len() == 0 {
		res.Results = models.ResultSet{}
		res.Duration = time.Since(began)
		metrics.PipelineDuration.Observe(res.Duration.Seconds())
		logger.Info().
			Time("start", w.Start).
			Time("end", w.End).
			Strs("clinics", w.Clinics).
			Msg("no appointments in window")
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t = time.Now()
	clinics := proj.Clinics()
	codes, err := p.encoder.Encode(clinics)
	if err != nil {
		return nil, fmt.Errorf("encode clinics: %w", err)
	}
	X, err := FeatureMatrix(proj, codes)
	if err != nil {
		return nil, err
	}
	stage("encode", t)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t = time.Now()
	clf, err := p.model(ctx)
	if err != nil {
		return nil, err
	}
	res.ModelVersion = clf.Version()
	labels, err := Predict(ctx, clf, X)
	if err != nil {
		return nil, err
	}
	stage("predict", t)

	t = time.Now()
	rs, err := Compose(proj.Identities(), clinics, labels)
	if err != nil {
		return nil, err
	}
	stage("compose", t)

	res.Results = rs
	res.Duration = time.Since(began)

	summary := Summarize(rs)
	metrics.RowsScored.Add(float64(summary.Total))
	metrics.PredictedNoShows.Add(float64(summary.NoShows))
	metrics.PipelineDuration.Observe(res.Duration.Seconds())

	logger.Info().
		Time("start", w.Start).
		Time("end", w.End).
		Strs("clinics", w.Clinics).
		Int("rows", summary.Total).
		Int("no_shows", summary.NoShows).
		Str("encoder", res.Encoder).
		Str("model_version", res.ModelVersion).
		Dur("duration", res.Duration).
		Msg("prediction run complete")
	return res, nil
}
