package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/editor"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
)

type flowResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Nodes     []flowdeck.Node `json:"nodes"`
	Edges     []flowdeck.Edge `json:"edges"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func newFlowResponse(f flowdeck.Flow) flowResponse {
	resp := flowResponse{
		ID:        f.ID,
		Name:      f.Name,
		Nodes:     []flowdeck.Node{},
		Edges:     []flowdeck.Edge{},
		UserID:    f.UserID,
		UserName:  f.UserName,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.Graph != nil {
		resp.Nodes = append(resp.Nodes, f.Graph.Nodes()...)
		resp.Edges = append(resp.Edges, f.Graph.Edges()...)
	}
	return resp
}

type createFlowRequest struct {
	Name     string          `json:"name" binding:"required"`
	Nodes    []flowdeck.Node `json:"nodes"`
	Edges    []flowdeck.Edge `json:"edges"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
}

type updateFlowRequest struct {
	Nodes []flowdeck.Node `json:"nodes"`
	Edges []flowdeck.Edge `json:"edges"`
}

type addNodeRequest struct {
	Type flowdeck.NodeType `json:"type" binding:"required"`
}

type connectRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
}

func (s *Server) handleListFlows(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		badRequest(c, "Username is required")
		return
	}
	flows, err := s.deps.Store.List(c.Request.Context(), username)
	s.deps.Metrics.RecordStoreOp(c.Request.Context(), "list", err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if flows == nil {
		flows = []flowdeck.FlowSummary{}
	}
	c.JSON(http.StatusOK, flows)
}

func (s *Server) handleCreateFlow(c *gin.Context) {
	var req createFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	g, err := flowdeck.Assemble(req.Nodes, req.Edges)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	owner := userFrom(c)
	if req.UserID != "" {
		owner.ID = req.UserID
	}
	if req.UserName != "" {
		owner.Name = req.UserName
	}

	saved, err := s.save(c.Request.Context(), flowdeck.Flow{
		Name:     req.Name,
		Graph:    g,
		UserID:   owner.ID,
		UserName: owner.Name,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFlowResponse(saved))
}

func (s *Server) handleGetFlow(c *gin.Context) {
	f, err := s.load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlowResponse(f))
}

func (s *Server) handleUpdateFlow(c *gin.Context) {
	var req updateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	g, err := flowdeck.Assemble(req.Nodes, req.Edges)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	f, err := s.load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	f.Graph = g
	saved, err := s.save(c.Request.Context(), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFlowResponse(saved))
}

func (s *Server) handleDeleteFlow(c *gin.Context) {
	err := s.deps.Store.Delete(c.Request.Context(), c.Param("id"))
	s.deps.Metrics.RecordStoreOp(c.Request.Context(), "delete", err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Flow deleted successfully"})
}

func (s *Server) handleCatalog(c *gin.Context) {
	f, err := s.load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	ed := editor.New()
	ed.Load(f)
	disabled := ed.DisabledTypes()
	if disabled == nil {
		disabled = []flowdeck.NodeType{}
	}
	c.JSON(http.StatusOK, gin.H{
		"menu":     ed.Menu(),
		"disabled": disabled,
	})
}

func (s *Server) handleAddNode(c *gin.Context) {
	var req addNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if !req.Type.Known() {
		badRequest(c, "Unknown node type "+string(req.Type))
		return
	}

	var node flowdeck.Node
	err := s.edit(c.Request.Context(), c.Param("id"), func(ed *editor.Editor) error {
		var err error
		node, err = ed.AddNode(req.Type)
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

func (s *Server) handleUpdateNode(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	var node flowdeck.Node
	err := s.edit(c.Request.Context(), c.Param("id"), func(ed *editor.Editor) error {
		var err error
		node, err = ed.UpdateNode(c.Param("nodeId"), patch)
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) handleRemoveNode(c *gin.Context) {
	err := s.edit(c.Request.Context(), c.Param("id"), func(ed *editor.Editor) error {
		return ed.RemoveNode(c.Param("nodeId"))
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	var edge flowdeck.Edge
	err := s.edit(c.Request.Context(), c.Param("id"), func(ed *editor.Editor) error {
		var err error
		edge, err = ed.Connect(req.Source, req.Target)
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

// edit loads the flow into an editor, applies fn and saves the result.
func (s *Server) edit(ctx context.Context, flowID string, fn func(*editor.Editor) error) error {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	f, err := s.load(ctx, flowID)
	if err != nil {
		return err
	}
	ed := editor.New()
	ed.Load(f)
	if err := fn(ed); err != nil {
		return err
	}
	_, err = s.save(ctx, ed.Flow())
	return err
}

func (s *Server) load(ctx context.Context, id string) (flowdeck.Flow, error) {
	f, err := s.deps.Store.Load(ctx, id)
	s.deps.Metrics.RecordStoreOp(ctx, "load", err)
	return f, err
}

func (s *Server) save(ctx context.Context, f flowdeck.Flow) (flowdeck.Flow, error) {
	saved, err := s.deps.Store.Save(ctx, f)
	s.deps.Metrics.RecordStoreOp(ctx, "save", err)
	if err != nil {
		return flowdeck.Flow{}, err
	}
	nodes := 0
	if saved.Graph != nil {
		nodes = saved.Graph.Len()
	}
	observability.LogFlowSaved(s.deps.Logger, saved.ID, saved.Name, nodes)
	return saved, nil
}
