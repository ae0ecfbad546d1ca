package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noshow-prediction-api/classifier"
	"noshow-prediction-api/dataset"
	"noshow-prediction-api/models"
	"noshow-prediction-api/pipeline"
	"noshow-prediction-api/services"
)

// lagForest predicts a no-show when TOTAL_NUMBER_OF_NOSHOW > 0.5.
func lagForest() *classifier.Forest {
	return &classifier.Forest{
		ModelVersion: "rf-cli",
		NFeatures:    pipeline.NumFeatures,
		Classes:      []int{0, 1},
		Trees: []classifier.Tree{{
			ChildrenLeft:  []int{1, -1, -1},
			ChildrenRight: []int{2, -1, -1},
			Feature:       []int{5, -2, -2},
			Threshold:     []float64{0.5, -2, -2},
			Value:         [][]float64{{1, 1}, {1, 0}, {0, 1}},
		}},
	}
}

func testStore(t *testing.T) *dataset.Store {
	t.Helper()
	at := func(s string) time.Time {
		v, err := time.Parse(pipeline.TimestampLayout, s)
		require.NoError(t, err)
		return v
	}
	store, err := dataset.NewStore([]models.Appointment{
		{MRN: "7", ApptDate: at("2024-05-02 10:00:00"), Age: 3, Clinic: "PEDIATRICS", TotalNoShow: 2, HourOfDay: 10, NumOfMonth: 5},
		{MRN: "8", ApptDate: at("2024-05-01 09:00:00"), Age: 40, Clinic: "CARDIOLOGY", HourOfDay: 9, NumOfMonth: 5},
		{MRN: "9", ApptDate: at("2024-06-01 09:00:00"), Age: 12, Clinic: "PEDIATRICS", HourOfDay: 9, NumOfMonth: 6},
	})
	require.NoError(t, err)
	return store
}

func TestScore(t *testing.T) {
	enc, err := pipeline.NewEncoder(pipeline.OrderFirstOccurrence, "")
	require.NoError(t, err)
	p := pipeline.New(testStore(t), enc, classifier.NewStaticProvider(lagForest()).Pipeline())

	runs := services.NewRunFeed(&services.CacheService{}, "noshow:runs")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := runs.Subscribe(ctx)

	var out bytes.Buffer
	res, err := score(context.Background(), p, runOptions{start: "2024-05-01 00:00:00", end: "2024-05-31 23:59:59"}, &out)
	require.NoError(t, err)
	assert.Equal(t,
		"MRN,APPOINTMENT DATE,CLINIC,NO SHOW (Y/N),RECOMMENDATION\n"+
			"8,2024-05-01 09:00:00,CARDIOLOGY,NO,DON'T DOUBLE-BOOK\n"+
			"7,2024-05-02 10:00:00,PEDIATRICS,YES,DOUBLE-BOOK\n",
		out.String())

	announce(context.Background(), res, "-", runs)
	select {
	case data := <-events:
		assert.Contains(t, string(data), `"rows":2`)
		assert.Contains(t, string(data), `"no_shows":1`)
	case <-time.After(time.Second):
		t.Fatal("run event not published")
	}
}

func TestScoreRejectsBadWindow(t *testing.T) {
	enc, err := pipeline.NewEncoder("", "")
	require.NoError(t, err)
	p := pipeline.New(testStore(t), enc, classifier.NewStaticProvider(lagForest()).Pipeline())

	var out bytes.Buffer
	res, err := score(context.Background(), p, runOptions{start: "2024-05-31", end: "2024-05-01 00:00:00"}, &out)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, strings.HasPrefix(err.Error(), "malformed_timestamp:"))
	assert.Empty(t, out.String())
}

const datasetCSV = "MRN,APPT_DATE,AGE,CLINIC,TOTAL_NUMBER_OF_CANCELLATIONS,LEAD_TIME," +
	"TOTAL_NUMBER_OF_RESCHEDULED,TOTAL_NUMBER_OF_NOSHOW,TOTAL_NUMBER_OF_SUCCESS_APPOINTMENT," +
	"HOUR_OF_DAY,NUM_OF_MONTH\n" +
	"7,2024-05-02 10:00:00,3,PEDIATRICS,0,5,0,2,1,10,5\n" +
	"8,2024-05-01 09:00:00,40,CARDIOLOGY,0,9,0,0,4,9,5\n"

// setupRunEnv points the configuration at a temporary dataset and model and
// returns the directory holding them.
func setupRunEnv(t *testing.T, withModel bool) string {
	t.Helper()
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "appointments.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(datasetCSV), 0o644))

	modelPath := filepath.Join(dir, "model.json")
	if withModel {
		data, err := json.Marshal(lagForest())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(modelPath, data, 0o644))
	}

	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DATASET_SOURCE", "csv")
	t.Setenv("DATASET_PATH", dataPath)
	t.Setenv("MODEL_PATH", modelPath)
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execRun(args ...string) error {
	cmd := runCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestRunWritesReport(t *testing.T) {
	dir := setupRunEnv(t, true)
	report := filepath.Join(dir, "final_report.csv")
	require.NoError(t, os.WriteFile(report, []byte("previous report\n"), 0o644))

	require.NoError(t, execRun("--start", "2024-05-01 00:00:00", "--end", "2024-05-31 23:59:59", "-o", report))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Equal(t,
		"MRN,APPOINTMENT DATE,CLINIC,NO SHOW (Y/N),RECOMMENDATION\n"+
			"8,2024-05-01 09:00:00,CARDIOLOGY,NO,DON'T DOUBLE-BOOK\n"+
			"7,2024-05-02 10:00:00,PEDIATRICS,YES,DOUBLE-BOOK\n",
		string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
	}
}

func TestRunFailureKeepsPreviousReport(t *testing.T) {
	tests := []struct {
		name      string
		withModel bool
		args      []string
		kind      string
	}{
		{"malformed timestamp", true, []string{"--start", "garbage", "--end", "2024-05-31 23:59:59"}, "malformed_timestamp:"},
		{"reversed window", true, []string{"--start", "2024-05-31 00:00:00", "--end", "2024-05-01 00:00:00"}, "invalid_window:"},
		{"model unavailable", false, []string{"--start", "2024-05-01 00:00:00", "--end", "2024-05-31 23:59:59"}, "model_unavailable:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupRunEnv(t, tt.withModel)
			report := filepath.Join(dir, "final_report.csv")
			require.NoError(t, os.WriteFile(report, []byte("previous report\n"), 0o644))

			err := execRun(append(tt.args, "-o", report)...)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.kind), err.Error())

			data, err := os.ReadFile(report)
			require.NoError(t, err)
			assert.Equal(t, "previous report\n", string(data))
		})
	}
}

func TestReplaceFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "final_report.csv")
	assert.Error(t, replaceFile(path, []byte("x")))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPrintClinics(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printClinics(&out, testStore(t)))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"CLINIC", "APPOINTMENTS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"CARDIOLOGY", "1"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"PEDIATRICS", "2"}, strings.Fields(lines[2]))
}
