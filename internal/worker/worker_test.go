package worker

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderri/server/internal/config"
	"github.com/renderri/server/internal/models"
	"github.com/renderri/server/internal/storage"
	"github.com/renderri/server/pkg/database"
)

func setupWorker(t *testing.T) (*Worker, sqlmock.Sqlmock, *miniredis.Miniredis, string) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	dir := t.TempDir()
	images, err := storage.NewLocalStorage(dir, "http://localhost:8080/images")
	require.NoError(t, err)

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic:        "generations",
			RetryMax:     1,
			RetryBackoff: time.Millisecond,
		},
	}

	clients := &database.Clients{DB: sqlx.NewDb(db, "postgres"), Redis: redisClient}
	return NewWorker(cfg, clients, nil, images), mock, mr, dir
}

func offloadMessage(t *testing.T, generationID string) *sarama.ConsumerMessage {
	t.Helper()

	payload, err := json.Marshal(models.OffloadEvent{GenerationID: generationID})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "generations", Value: payload}
}

func generationRow(gen models.Generation) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "prompt_text", "image_url", "model_used", "created_at"}).
		AddRow(gen.ID, gen.UserID, gen.PromptText, gen.ImageURL, gen.ModelUsed, gen.CreatedAt)
}

func TestProcessMessageOffloadsInlineImage(t *testing.T) {
	w, mock, mr, dir := setupWorker(t)

	mock.ExpectQuery(`SELECT .+ FROM generations WHERE id = \$1`).
		WithArgs("gen-1").
		WillReturnRows(generationRow(models.Generation{
			ID:       "gen-1",
			UserID:   "user-1",
			ImageURL: "data:image/png;base64,aGVsbG8=",
		}))
	mock.ExpectExec(`UPDATE generations SET image_url = \$2 WHERE id = \$1`).
		WithArgs("gen-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.processMessage(offloadMessage(t, "gen-1"))
	require.NoError(t, err)

	status, err := mr.Get("offload:gen-1")
	require.NoError(t, err)
	assert.Equal(t, models.OffloadCompleted, status)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(dir + "/" + files[0].Name())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessageSkipsPlainURL(t *testing.T) {
	w, mock, mr, dir := setupWorker(t)

	mock.ExpectQuery(`SELECT .+ FROM generations WHERE id = \$1`).
		WithArgs("gen-1").
		WillReturnRows(generationRow(models.Generation{
			ID:       "gen-1",
			UserID:   "user-1",
			ImageURL: "http://localhost:8080/images/already-there.png",
		}))

	err := w.processMessage(offloadMessage(t, "gen-1"))
	require.NoError(t, err)

	status, err := mr.Get("offload:gen-1")
	require.NoError(t, err)
	assert.Equal(t, models.OffloadSkipped, status)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestProcessMessageSkipsUnknownGeneration(t *testing.T) {
	w, mock, mr, _ := setupWorker(t)

	mock.ExpectQuery(`SELECT .+ FROM generations WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "prompt_text", "image_url", "model_used", "created_at"}))

	err := w.processMessage(offloadMessage(t, "missing"))
	require.NoError(t, err)

	status, err := mr.Get("offload:missing")
	require.NoError(t, err)
	assert.Equal(t, models.OffloadSkipped, status)
}

func TestProcessMessageRejectsBadPayload(t *testing.T) {
	w, _, mr, _ := setupWorker(t)

	err := w.processMessage(&sarama.ConsumerMessage{Topic: "generations", Value: []byte("not json")})
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestProcessMessageRejectsMissingID(t *testing.T) {
	w, _, mr, _ := setupWorker(t)

	err := w.processMessage(offloadMessage(t, ""))
	assert.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestProcessMessageMarksFailure(t *testing.T) {
	w, mock, mr, _ := setupWorker(t)
	w.cfg.Kafka.RetryMax = 2

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT .+ FROM generations WHERE id = \$1`).
			WithArgs("gen-1").
			WillReturnError(assert.AnError)
	}

	err := w.processMessage(offloadMessage(t, "gen-1"))
	assert.Error(t, err)

	status, err := mr.Get("offload:gen-1")
	require.NoError(t, err)
	assert.Equal(t, models.OffloadFailed, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessMessageCleansUpOnUpdateFailure(t *testing.T) {
	w, mock, mr, dir := setupWorker(t)

	mock.ExpectQuery(`SELECT .+ FROM generations WHERE id = \$1`).
		WithArgs("gen-1").
		WillReturnRows(generationRow(models.Generation{
			ID:       "gen-1",
			UserID:   "user-1",
			ImageURL: "data:image/png;base64,aGVsbG8=",
		}))
	mock.ExpectExec(`UPDATE generations SET image_url = \$2 WHERE id = \$1`).
		WithArgs("gen-1", sqlmock.AnyArg()).
		WillReturnError(assert.AnError)

	err := w.processMessage(offloadMessage(t, "gen-1"))
	assert.Error(t, err)

	status, err := mr.Get("offload:gen-1")
	require.NoError(t, err)
	assert.Equal(t, models.OffloadFailed, status)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}
