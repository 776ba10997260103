package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brandguard/internal/artifacts"
	"brandguard/internal/config"
	"brandguard/internal/events"
	"brandguard/internal/model"
)

const mentionsCSV = `Tweet ID,Entity,Sentiment,Tweet content
1,Nvidia,Positive,love the new card great
2,Nvidia,Negative,drivers crash terrible
3,Amazon,Neutral,package arrives tomorrow
4,Amazon,Negative,late delivery terrible
5,Google,Positive,search is great
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// testConfig points every path at fresh files in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Data.Mentions = writeFile(t, dir, "mentions.csv", mentionsCSV)
	cfg.Data.Users = writeFile(t, dir, "users.csv", "username,password\nkeerthi,secret\n")
	cfg.Model.Vectorizer = filepath.Join(dir, "vectorizer.json")
	cfg.Model.Classifier = filepath.Join(dir, "classifier.json")

	p, err := model.Train(
		[]string{"love great", "terrible crash", "package tomorrow"},
		[]model.Label{model.Positive, model.Negative, model.Neutral},
		model.DefaultTrainOptions())
	require.NoError(t, err)
	require.NoError(t, p.SaveFiles(cfg.Model.Vectorizer, cfg.Model.Classifier))
	return cfg
}

func TestSetup(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "log:\n  level: debug\n")
	cfg, logger, err := Setup(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NotNil(t, logger)

	bad := writeFile(t, t.TempDir(), "config.yml", "session:\n  store: memcached\n")
	_, _, err = Setup(bad)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadPipeline(t *testing.T) {
	cfg := testConfig(t)

	p, err := LoadPipeline(context.Background(), cfg, artifacts.NewFetcher(nil))
	require.NoError(t, err)
	assert.Equal(t, model.Negative, p.Classify("terrible").Label)

	cfg.Model.Classifier = filepath.Join(t.TempDir(), "missing.json")
	_, err = LoadPipeline(context.Background(), cfg, artifacts.NewFetcher(nil))
	assert.Error(t, err)
}

func TestOpenSessionsDefaultsToMemory(t *testing.T) {
	cfg := testConfig(t)
	store, err := OpenSessions(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Create(context.Background(), "keerthi")
	require.NoError(t, err)
	got, err := store.Get(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "keerthi", got.Username)
}

func TestNewPublisher(t *testing.T) {
	cfg := testConfig(t)
	assert.IsType(t, events.Nop{}, NewPublisher(cfg, zap.NewNop()))

	cfg.Kafka.Brokers = "localhost:9092"
	p := NewPublisher(cfg, zap.NewNop())
	assert.IsType(t, &events.KafkaPublisher{}, p)
	require.NoError(t, p.Close())
}

func TestNewWebServerFailsOnMissingData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Users = filepath.Join(t.TempDir(), "missing.csv")

	_, _, err := NewWebServer(context.Background(), cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestServeUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	p, err := LoadPipeline(context.Background(), cfg, artifacts.NewFetcher(nil))
	require.NoError(t, err)

	srv, closer, err := NewWebServer(context.Background(), cfg, model.NewLocalPredictor(p), zap.NewNop())
	require.NoError(t, err)
	defer closer.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, srv.Handler(), zap.NewNop()) }()

	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeReportsListenErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = Serve(context.Background(), ln.Addr().String(), http.NotFoundHandler(), zap.NewNop())
	assert.ErrorContains(t, err, "failed to listen")
}
