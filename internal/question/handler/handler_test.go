package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/quizbank/quizbank/internal/ingestion"
	"github.com/quizbank/quizbank/internal/question"
	"github.com/quizbank/quizbank/internal/question/repository"
	"github.com/quizbank/quizbank/internal/runlog"
)

type freshSource struct {
	seq int
	err error
}

func (f *freshSource) FetchPage(_ context.Context, count int) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		f.seq++
		page = append(page, map[string]any{
			"question":   fmt.Sprintf("Q%d", f.seq),
			"answer":     fmt.Sprintf("A%d", f.seq),
			"created_at": "2022-12-30T19:05:10.123Z",
		})
	}
	return page, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://archive.local/" + key, nil
}

func setup(t *testing.T, src ingestion.PageSource, guard ...gin.HandlerFunc) (*gin.Engine, *repository.MemoryRepo, runlog.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()
	repo := repository.NewMemoryRepo()
	runs := runlog.NewMemoryStore(0)
	svc := ingestion.NewService(src, question.NewValidator(), repo, ingestion.Options{Runs: runs})
	RegisterQuestionRoutes(g, svc, fakePresigner{}, guard...)
	return g, repo, runs
}

func post(g *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	return w
}

func TestIngestRoutes_ReturnLatestRecord(t *testing.T) {
	for _, path := range []string{"/api/v1/questions", "/test_method/"} {
		t.Run(path, func(t *testing.T) {
			g, repo, _ := setup(t, &freshSource{})
			w := post(g, path, `{"question_num": 3}`)
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, 3, repo.Len())
			require.NotEmpty(t, w.Header().Get("X-Ingestion-Run"))

			var out map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			require.Contains(t, out, "id")
			require.Contains(t, out, "date")
			require.Contains(t, out, "text")
			require.Contains(t, out, "answer")
		})
	}
}

func TestIngestRoute_BadRequests(t *testing.T) {
	g, repo, _ := setup(t, &freshSource{})
	for _, body := range []string{
		`{}`,
		`{"question_num": null}`,
		`{"question_num": "three"}`,
		`{"question_num": "1.5"}`,
		`{"question_num": 1.5}`,
		`{"question_num": 0}`,
		`{"question_num": -2}`,
		`not json`,
	} {
		w := post(g, "/api/v1/questions", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	require.Equal(t, 0, repo.Len())
}

func TestIngestRoute_NumericStringCount(t *testing.T) {
	g, repo, _ := setup(t, &freshSource{})
	w := post(g, "/api/v1/questions", `{"question_num": "2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, repo.Len())

	w = post(g, "/api/v1/questions", `{"question_num": "0"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 2, repo.Len())
}

func TestIngestRoute_TransportFailureIsServerError(t *testing.T) {
	g, _, _ := setup(t, &freshSource{err: errors.New("connection refused")})
	w := post(g, "/test_method/", `{"question_num": 1}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLatestRoute_EmptyStore(t *testing.T) {
	g, _, _ := setup(t, &freshSource{})
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/questions/latest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{}`, w.Body.String())
}

func TestRunRoute(t *testing.T) {
	g, _, runs := setup(t, &freshSource{})
	w := post(g, "/api/v1/questions", `{"question_num": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get("X-Ingestion-Run")

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Run        runlog.Run `json:"run"`
		ArchiveURL string     `json:"archiveUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, 2, out.Run.Accepted)
	require.Empty(t, out.ArchiveURL)

	require.NoError(t, runs.Save(context.Background(), &runlog.Run{ID: "aborted", Aborted: true, ArchiveKey: "rejected/x.json"}))
	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions/aborted", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "https://archive.local/rejected/x.json", out.ArchiveURL)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestRoute_GuardRunsFirst(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"}) }
	g, repo, _ := setup(t, &freshSource{}, deny)

	w := post(g, "/api/v1/questions", `{"question_num": 1}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, 0, repo.Len())

	// reads are not guarded
	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/questions/latest", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
