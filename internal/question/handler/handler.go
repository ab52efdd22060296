package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizbank/quizbank/internal/ingestion"
	"github.com/quizbank/quizbank/internal/question"
	"github.com/quizbank/quizbank/internal/runlog"
	"github.com/quizbank/quizbank/pkg/logger"
)

// Service is what the routes need from the ingestion layer.
type Service interface {
	IngestRun(ctx context.Context, target int) (*question.Record, *runlog.Run, error)
	Latest(ctx context.Context) (*question.Record, error)
	Run(ctx context.Context, id string) (*runlog.Run, error)
}

// Presigner turns an archive key into a download link.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

const archiveLinkTTL = 15 * time.Minute

type ingestRequest struct {
	QuestionNum *questionCount `json:"question_num" binding:"required"`
}

// questionCount accepts a JSON integer or a string holding one, so
// {"question_num": "5"} works like {"question_num": 5}.
type questionCount int

func (n *questionCount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("question_num must be an integer, got %s", b)
	}
	*n = questionCount(v)
	return nil
}

var log = logger.Named("http")

// RegisterQuestionRoutes mounts the question endpoints. guard runs in front
// of the endpoints that write; links may be nil.
func RegisterQuestionRoutes(r gin.IRouter, svc Service, links Presigner, guard ...gin.HandlerFunc) {
	ingest := func(c *gin.Context) {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		latest, run, err := svc.IngestRun(c.Request.Context(), int(*req.QuestionNum))
		if run != nil {
			c.Header("X-Ingestion-Run", run.ID)
		}
		if err != nil {
			if errors.Is(err, ingestion.ErrNonPositiveCount) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "question_num must be positive"})
				return
			}
			log.Errorf("ingest %d: %v", *req.QuestionNum, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
			return
		}
		writeRecord(c, latest)
	}

	write := append(append([]gin.HandlerFunc{}, guard...), ingest)
	r.POST("/api/v1/questions", write...)
	r.POST("/test_method/", write...)

	r.GET("/api/v1/questions/latest", func(c *gin.Context) {
		latest, err := svc.Latest(c.Request.Context())
		if err != nil {
			log.Errorf("latest question: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		writeRecord(c, latest)
	})

	r.GET("/api/v1/ingestions/:id", func(c *gin.Context) {
		run, err := svc.Run(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, runlog.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			log.Errorf("load run %s: %v", c.Param("id"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "run store unavailable"})
			return
		}
		out := gin.H{"run": run}
		if links != nil && run.ArchiveKey != "" {
			if u, err := links.PresignGet(c.Request.Context(), run.ArchiveKey, archiveLinkTTL); err == nil {
				out["archiveUrl"] = u
			} else {
				log.Warnf("presign %s: %v", run.ArchiveKey, err)
			}
		}
		c.JSON(http.StatusOK, out)
	})
}

// writeRecord renders a record, or {} when the store is empty.
func writeRecord(c *gin.Context, r *question.Record) {
	if r == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, r)
}
