package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwiktor/apigen/internal/tasks"
	"github.com/mwiktor/apigen/internal/transport"
)

type ingestRequest struct {
	CollectionName string            `json:"collection_name" binding:"required"`
	Collection     json.RawMessage   `json:"collection"`
	FilePath       string            `json:"file_path"`
	Enrich         bool              `json:"enrich"`
	Args           map[string]string `json:"args"`
}

type generateRequest struct {
	Query          string            `json:"query" binding:"required"`
	PipelineId     string            `json:"pipeline_id"`
	CollectionName string            `json:"collection_name"`
	Language       string            `json:"language"`
	SourceCode     string            `json:"source_code"`
	Args           map[string]string `json:"args"`
}

type taskResponse struct {
	TraceId string `json:"trace_id"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Collection) == 0 && req.FilePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of 'collection' or 'file_path' is required"})
		return
	}

	t, err := tasks.NewIngestTask(tasks.IngestTaskPayload{
		CollectionName: req.CollectionName,
		CollectionJSON: string(req.Collection),
		FilePath:       req.FilePath,
		Enrich:         req.Enrich,
		Args:           req.Args,
	})
	if err != nil {
		slog.Error(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	info, err := s.asynqClient.Enqueue(t)
	if err != nil {
		slog.Error(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	slog.Info("enqueued task successfully", "id", info.ID)

	c.JSON(http.StatusAccepted, taskResponse{TraceId: info.ID})
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := tasks.NewGenerateTask(tasks.GenerateTaskPayload{
		Query:          req.Query,
		PipelineId:     req.PipelineId,
		CollectionName: req.CollectionName,
		Language:       req.Language,
		SourceCode:     req.SourceCode,
		Args:           req.Args,
	})
	if err != nil {
		slog.Error(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	info, err := s.asynqClient.Enqueue(t)
	if err != nil {
		slog.Error(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	slog.Info("enqueued task successfully", "id", info.ID)

	c.JSON(http.StatusAccepted, taskResponse{TraceId: info.ID})
}

func (s *Server) handleTrace(c *gin.Context) {
	trace, err := s.transport.GetTrace(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, transport.ErrTraceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trace with given id does not exist"})
			return
		}
		slog.Error("failed to read trace", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trace_id":     trace.ID,
		"status":       trace.Status,
		"started_at":   trace.StartedAt,
		"completed_at": trace.CompletedAt,
		"query":        trace.Query,
		"collection":   trace.Collection,
	})
}

// handleTraceStream replays a task's message stream as server-sent
// events. Completed tasks get their accumulated content in a single
// event, running tasks are followed until a terminal payload.
func (s *Server) handleTraceStream(c *gin.Context) {
	ctx := c.Request.Context()

	trace, err := s.transport.GetTrace(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, transport.ErrTraceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trace with given id does not exist"})
			return
		}
		slog.Error("failed to read trace", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	tstream, err := s.transport.GetMessageStream(trace.ID)
	if err != nil {
		slog.Error("failed to retrieve stream", "id", trace.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if trace.Status != transport.TraceStatusRunning {
		text, err := tstream.Text(ctx)
		if err != nil {
			slog.Error("failed to read from stream", "id", trace.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.SSEvent("message", transport.MessageStreamPayload{
			Type:    transport.MessageTypeContent,
			Status:  transport.StatusDone,
			Content: text,
		})
		c.Writer.Flush()
		return
	}

	for {
		payload, err := tstream.Recv(ctx)
		if err != nil {
			slog.Debug("message stream closed", "id", trace.ID, "err", err)
			return
		}

		c.SSEvent("message", payload)
		c.Writer.Flush()

		if payload.Status == transport.StatusDone || payload.Status == transport.StatusErr {
			return
		}
	}
}
