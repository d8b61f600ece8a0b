package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
)

// maxDocumentSize caps uploads.
const maxDocumentSize = 10 << 20

const defaultDocumentLimit = 20

func (s *Server) handleListDocuments(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		userID = userFrom(c).ID
	}
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}
	limit := defaultDocumentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	docs, err := s.deps.Documents.ListDocuments(c.Request.Context(), userID, limit)
	s.deps.Metrics.RecordStoreOp(c.Request.Context(), "list_documents", err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (s *Server) handleUploadDocument(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		userID = userFrom(c).ID
	}
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if header.Size > maxDocumentSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Message: "File is too large.", Category: "validation"})
		return
	}
	f, err := header.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize))
	if err != nil {
		s.writeError(c, err)
		return
	}

	doc, err := s.deps.Documents.SaveDocument(c.Request.Context(), store.Document{
		UserID:      userID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	s.deps.Metrics.RecordStoreOp(c.Request.Context(), "save_document", err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}
