package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/app/orch"
	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
	"github.com/dkeye/FrameRelay/internal/observe"
)

type handlers struct {
	orch      *orch.Orchestrator
	readLimit int64
}

type SignalRequest struct {
	Data string `json:"data"`
}

type UploadResponse struct {
	Status   string `json:"status"`
	SourceID string `json:"sourceId"`
	Bytes    int    `json:"bytes"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.orch.Registry.Count()})
}

func (h *handlers) sessions(c *gin.Context) {
	snap := h.orch.Registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{"sessions": snap, "count": len(snap)})
}

// signaling broadcasts {"data": ...} to every connected session.
func (h *handlers) signaling(c *gin.Context) {
	kind, err := domain.ParseSignalKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	res, err := h.orch.BroadcastAll(domain.SignalingMessage{Kind: kind, Payload: req.Data})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "broadcast", "sentTo": res.SentTo, "dropped": len(res.Dropped)})
}

// upload accepts one frame per request. A JSON body is a full chunk
// envelope; text bodies are base64; anything else is the raw frame.
func (h *handlers) upload(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.readLimit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no video data received"})
		return
	}

	chunk, err := h.chunkFrom(c, body)
	if err != nil {
		observe.IncChunk("decode_error")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orch.Publisher.Publish(c.Request.Context(), codec.Encode(chunk)); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("source", chunk.SourceID).Msg("upload not published")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, UploadResponse{Status: "accepted", SourceID: chunk.SourceID, Bytes: len(chunk.FrameData)})
}

func (h *handlers) chunkFrom(c *gin.Context, body []byte) (domain.FrameChunk, error) {
	ct := c.ContentType()
	switch {
	case ct == gin.MIMEJSON:
		return codec.Decode(body)
	case strings.HasPrefix(ct, "text/"):
		data, err := codec.DecodeFrameData(string(body))
		if err != nil {
			return domain.FrameChunk{}, &core.DecodeError{Err: err}
		}
		return codec.NewChunk(c.Query("source"), c.Query("camera"), data, time.Time{})
	}
	return codec.NewChunk(c.Query("source"), c.Query("camera"), body, time.Time{})
}

func statusFor(err error) int {
	var (
		ve *core.ValidationError
		de *core.DecodeError
		oe *core.OversizedItemError
		pe *core.PublishError
	)
	switch {
	case errors.As(err, &oe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ve), errors.As(err, &de):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrBackpressure), errors.Is(err, core.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &pe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
