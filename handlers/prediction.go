package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"noshow-prediction-api/metrics"
	"noshow-prediction-api/models"
	"noshow-prediction-api/pipeline"
	"noshow-prediction-api/services"
)

const reportFilename = "final_report.csv"

type PredictionHandler struct {
	pipeline *pipeline.Pipeline
	cache    *services.CacheService
	runs     *services.RunFeed
}

func NewPredictionHandler(p *pipeline.Pipeline, cache *services.CacheService, runs *services.RunFeed) *PredictionHandler {
	return &PredictionHandler{pipeline: p, cache: cache, runs: runs}
}

// Process handles POST /process/ and answers with the result table as a
// column-oriented JSON string in final_df.
func (h *PredictionHandler) Process(c *gin.Context) {
	ctx := c.Request.Context()
	logger := zerolog.Ctx(ctx)

	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.Requests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "bad_request"})
		return
	}
	w, err := pipeline.ParseRequest(req)
	if err != nil {
		h.fail(c, err)
		return
	}

	// The cache is only consulted when the model version is known; otherwise
	// the run below reports the model error.
	var key string
	if h.cache.Available() {
		if version, err := h.pipeline.ModelVersion(ctx); err == nil {
			key = services.CacheKey(w, h.pipeline.Store().Fingerprint(), version, h.pipeline.EncoderName())

			var cached models.PredictionResponse
			found, err := h.cache.Get(ctx, key, &cached)
			if err != nil {
				logger.Warn().Err(err).Msg("result cache read failed")
				if err := h.cache.Delete(ctx, key); err != nil {
					logger.Debug().Err(err).Msg("result cache evict failed")
				}
			}
			if found {
				metrics.CacheHits.Inc()
				metrics.Requests.WithLabelValues("ok").Inc()
				h.publish(w, cached.RunID, cached.Summary, 0, true)
				c.JSON(http.StatusOK, cached)
				return
			}
			metrics.CacheMisses.Inc()
		}
	}

	res, err := h.pipeline.Run(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}

	frame, err := pipeline.EncodeFrame(pipeline.Format(res.Results))
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := models.PredictionResponse{
		FinalDF:      string(frame),
		RunID:        res.RunID,
		Summary:      pipeline.Summarize(res.Results),
		Encoder:      res.Encoder,
		ModelVersion: res.ModelVersion,
	}

	if key != "" {
		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.cache.Set(setCtx, key, resp, 0); err != nil {
				logger.Warn().Err(err).Msg("result cache write failed")
			}
		}()
	}

	metrics.Requests.WithLabelValues("ok").Inc()
	h.publish(w, resp.RunID, resp.Summary, res.Duration, false)
	c.JSON(http.StatusOK, resp)
}

// Report handles POST /process/report: the same run, downloaded as CSV.
func (h *PredictionHandler) Report(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.Requests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "bad_request"})
		return
	}

	res, err := h.pipeline.Handle(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := pipeline.WriteCSV(&buf, pipeline.Format(res.Results)); err != nil {
		h.fail(c, err)
		return
	}

	metrics.Requests.WithLabelValues("ok").Inc()
	h.publish(res.Window, res.RunID, pipeline.Summarize(res.Results), res.Duration, false)
	c.Header("Content-Disposition", `attachment; filename="`+reportFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *PredictionHandler) publish(w pipeline.Window, runID string, s models.Summary, d time.Duration, cached bool) {
	ev := models.RunEvent{
		RunID:      runID,
		TS:         time.Now().UTC(),
		Start:      w.Start.Format(pipeline.TimestampLayout),
		End:        w.End.Format(pipeline.TimestampLayout),
		Clinics:    w.Clinics,
		Rows:       s.Total,
		NoShows:    s.NoShows,
		Shows:      s.Shows,
		DurationMS: d.Milliseconds(),
		Cached:     cached,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.runs.Publish(ctx, ev)
	}()
}

func (h *PredictionHandler) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	metrics.Requests.WithLabelValues(kind).Inc()

	logger := zerolog.Ctx(c.Request.Context())
	evt := logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).Str("kind", kind).Int("status", status).Msg("prediction request failed")

	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// client went away; the status is only logged
		return 499, "canceled"
	case errors.Is(err, pipeline.ErrMalformedTimestamp), errors.Is(err, pipeline.ErrInvalidWindow):
		return http.StatusBadRequest, pipeline.Kind(err)
	case errors.Is(err, pipeline.ErrModelUnavailable):
		return http.StatusServiceUnavailable, pipeline.Kind(err)
	default:
		return http.StatusInternalServerError, pipeline.Kind(err)
	}
}
