package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"flowcanvas-backend/application/editor"
	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/application/queries"
	"flowcanvas-backend/application/sharing"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	"flowcanvas-backend/pkg/auth"
	"flowcanvas-backend/pkg/common"
	pkgerrors "flowcanvas-backend/pkg/errors"
	"flowcanvas-backend/pkg/observability"
	"flowcanvas-backend/pkg/utils"
)

// DiagramHandler handles diagram-related HTTP requests. Each request
// opens an editor session for the acting identity, so role checks run
// server-side on every operation.
type DiagramHandler struct {
	diagrams    ports.DiagramRepository
	bus         ports.EventBus
	resolver    *sharing.Resolver
	getDiagram  *queries.GetDiagramHandler
	listHandler *queries.ListDiagramsHandler
	metrics     *observability.Collector
	logger      *zap.Logger
}

// NewDiagramHandler creates a new diagram handler
func NewDiagramHandler(
	diagrams ports.DiagramRepository,
	bus ports.EventBus,
	resolver *sharing.Resolver,
	getDiagram *queries.GetDiagramHandler,
	listHandler *queries.ListDiagramsHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *DiagramHandler {
	return &DiagramHandler{
		diagrams:    diagrams,
		bus:         bus,
		resolver:    resolver,
		getDiagram:  getDiagram,
		listHandler: listHandler,
		metrics:     metrics,
		logger:      logger,
	}
}

// NodePayload is a node on the wire
type NodePayload struct {
	ID    string  `json:"id" validate:"required"`
	Kind  string  `json:"kind,omitempty"`
	Label string  `json:"label" validate:"required,max=200"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// EdgePayload is an edge on the wire
type EdgePayload struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// CreateDiagramRequest represents the request body for saving a new diagram
type CreateDiagramRequest struct {
	Title string        `json:"title" validate:"required,min=1,max=200"`
	Nodes []NodePayload `json:"nodes,omitempty" validate:"omitempty,dive"`
	Edges []EdgePayload `json:"edges,omitempty" validate:"omitempty,dive"`
}

// UpdateDiagramRequest represents the request body for saving an
// existing diagram. Title is optional; graph content is replaced.
type UpdateDiagramRequest struct {
	Title *string       `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Nodes []NodePayload `json:"nodes" validate:"dive"`
	Edges []EdgePayload `json:"edges" validate:"dive"`
}

// ShareDiagramRequest represents the request body for sharing
type ShareDiagramRequest struct {
	Invitees []InviteePayload `json:"invitees" validate:"required,min=1,dive"`
}

// InviteePayload is one requested grant
type InviteePayload struct {
	Email      string `json:"email" validate:"required"`
	Permission string `json:"permission" validate:"required,oneof=view edit"`
}

// ShareDiagramResponse reports the outcome of a share operation
type ShareDiagramResponse struct {
	SharedWith     []string `json:"sharedWith"`
	NotFoundEmails []string `json:"notFoundEmails"`
	AllResolved    bool     `json:"allResolved"`
}

// DiagramResponse is a full diagram on the wire
type DiagramResponse struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Nodes      []NodePayload `json:"nodes"`
	Edges      []EdgePayload `json:"edges"`
	OwnerID    string        `json:"ownerId"`
	OwnerEmail string        `json:"ownerEmail"`
	Role       string        `json:"role"`
	CreatedAt  int64         `json:"createdAt"`
	UpdatedAt  int64         `json:"updatedAt"`
}

// DiagramSummaryResponse is one row of the diagram list
type DiagramSummaryResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
	Role       string `json:"role"`
	NodeCount  int    `json:"nodeCount"`
	EdgeCount  int    `json:"edgeCount"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// List handles GET /api/v1/diagrams
func (h *DiagramHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, pkgerrors.NewUnauthorizedError("not authenticated"))
		return
	}

	summaries, err := h.listHandler.Handle(r.Context(), queries.ListDiagramsQuery{UserID: user.UserID})
	if err != nil {
		common.RespondError(w, err)
		return
	}

	response := make([]DiagramSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		response = append(response, DiagramSummaryResponse{
			ID:         s.ID,
			Title:      s.Title,
			OwnerID:    s.OwnerID,
			OwnerEmail: s.OwnerEmail,
			Role:       string(s.Role),
			NodeCount:  s.NodeCount,
			EdgeCount:  s.EdgeCount,
			UpdatedAt:  s.UpdatedAt,
		})
	}
	common.RespondJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/diagrams/{id}
func (h *DiagramHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, pkgerrors.NewUnauthorizedError("not authenticated"))
		return
	}

	view, err := h.getDiagram.Handle(r.Context(), queries.GetDiagramQuery{
		DiagramID: chi.URLParam(r, "id"),
		UserID:    user.UserID,
	})
	if err != nil {
		common.RespondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toDiagramResponse(view))
}

// Create handles POST /api/v1/diagrams: first save of an open diagram
func (h *DiagramHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, session, ok := h.openSession(w, r)
	if !ok {
		return
	}

	var req CreateDiagramRequest
	if err := common.ParseJSONBody(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, err)
		return
	}

	// A body with graph content replaces the starter diagram; without
	// it the starter nodes are what gets saved, matching a brand-new
	// canvas.
	if req.Nodes != nil || req.Edges != nil {
		nodes, edges, err := parseGraph(req.Nodes, req.Edges)
		if err != nil {
			common.RespondError(w, err)
			return
		}
		if err := session.Diagram().ReplaceGraph(nodes, edges); err != nil {
			common.RespondError(w, err)
			return
		}
	}

	id, err := session.SaveNew(r.Context(), req.Title)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	h.metrics.DiagramsSaved.Inc()

	h.logger.Info("diagram created via API",
		zap.String("diagramID", id.String()),
		zap.String("userID", user.UserID),
	)
	common.RespondJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// Update handles PUT /api/v1/diagrams/{id}: save of an existing diagram
func (h *DiagramHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, session, ok := h.openSession(w, r)
	if !ok {
		return
	}

	var req UpdateDiagramRequest
	if err := common.ParseJSONBody(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, err)
		return
	}

	if !h.loadDiagram(w, r, session) {
		return
	}

	if !session.Role().CanMutate() {
		common.RespondError(w, pkgerrors.NewForbiddenError("role does not allow saving this diagram"))
		return
	}

	nodes, edges, err := parseGraph(req.Nodes, req.Edges)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if err := session.Diagram().ReplaceGraph(nodes, edges); err != nil {
		common.RespondError(w, err)
		return
	}
	if req.Title != nil {
		if err := session.Diagram().Rename(*req.Title); err != nil {
			common.RespondError(w, err)
			return
		}
	}

	if err := session.Save(r.Context()); err != nil {
		if errors.Is(err, editor.ErrTitleRequired) {
			common.RespondError(w, pkgerrors.NewValidationError("a title is required to save this diagram"))
			return
		}
		common.RespondError(w, err)
		return
	}
	h.metrics.DiagramsSaved.Inc()

	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "diagram saved"})
}

// Delete handles DELETE /api/v1/diagrams/{id}
func (h *DiagramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, session, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if !h.loadDiagram(w, r, session) {
		return
	}

	if err := session.Delete(r.Context()); err != nil {
		common.RespondError(w, err)
		return
	}
	h.metrics.DiagramsDeleted.Inc()

	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "diagram deleted"})
}

// AddNode handles POST /api/v1/diagrams/{id}/nodes: appends a
// placeholder node at a scattered position and saves
func (h *DiagramHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	_, session, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if !h.loadDiagram(w, r, session) {
		return
	}

	node, added := session.AddNode()
	if !added {
		common.RespondError(w, pkgerrors.NewForbiddenError("role does not allow editing this diagram"))
		return
	}
	if err := session.Save(r.Context()); err != nil {
		common.RespondError(w, err)
		return
	}
	h.metrics.NodesAdded.Inc()

	common.RespondJSON(w, http.StatusCreated, toNodePayload(node))
}

// DeleteNode handles DELETE /api/v1/diagrams/{id}/nodes/{nodeID}:
// removes the node, cascade-removes its incident edges and saves
func (h *DiagramHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	_, session, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if !h.loadDiagram(w, r, session) {
		return
	}

	nodeID, err := valueobjects.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		common.RespondError(w, pkgerrors.NewValidationError("invalid node ID"))
		return
	}

	removed, err := session.DeleteNode(nodeID)
	if err != nil {
		common.RespondError(w, err)
		return
	}
	if !removed {
		common.RespondError(w, pkgerrors.NewForbiddenError("role does not allow editing this diagram"))
		return
	}
	if err := session.Save(r.Context()); err != nil {
		common.RespondError(w, err)
		return
	}
	h.metrics.NodesDeleted.Inc()

	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "node deleted"})
}

// Share handles POST /api/v1/diagrams/{id}/share
func (h *DiagramHandler) Share(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, pkgerrors.NewUnauthorizedError("not authenticated"))
		return
	}

	diagramID, err := valueobjects.ParseDiagramID(chi.URLParam(r, "id"))
	if err != nil {
		common.RespondError(w, pkgerrors.NewValidationError("invalid diagram ID"))
		return
	}

	var req ShareDiagramRequest
	if err := common.ParseJSONBody(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, err)
		return
	}

	invitees := make([]sharing.Invitee, 0, len(req.Invitees))
	for _, inv := range req.Invitees {
		invitees = append(invitees, sharing.Invitee{
			Email:      inv.Email,
			Permission: valueobjects.Permission(inv.Permission),
		})
	}

	actor := ports.Identity{UserID: user.UserID, Email: user.Email, Roles: user.Roles}
	report, err := h.resolver.Share(r.Context(), actor, diagramID, invitees)
	if err != nil {
		h.metrics.SharesResolved.WithLabelValues("failed").Inc()
		common.RespondError(w, err)
		return
	}

	outcome := "resolved"
	status := http.StatusOK
	if !report.AllResolved() {
		outcome = "partial"
		status = http.StatusMultiStatus
	}
	h.metrics.SharesResolved.WithLabelValues(outcome).Inc()

	common.RespondJSON(w, status, ShareDiagramResponse{
		SharedWith:     report.SharedWith,
		NotFoundEmails: report.NotFoundEmails,
		AllResolved:    report.AllResolved(),
	})
}

// openSession resolves the acting identity and opens an editor session
// for it, answering the request itself on failure
func (h *DiagramHandler) openSession(w http.ResponseWriter, r *http.Request) (*auth.UserContext, *editor.Session, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, pkgerrors.NewUnauthorizedError("not authenticated"))
		return nil, nil, false
	}

	identity := ports.Identity{UserID: user.UserID, Email: user.Email, Roles: user.Roles}
	session, err := editor.NewSession(identity, h.diagrams, h.bus, h.logger)
	if err != nil {
		common.RespondError(w, err)
		return nil, nil, false
	}
	return user, session, true
}

// loadDiagram loads the path's diagram into the session, answering
// the request itself on failure
func (h *DiagramHandler) loadDiagram(w http.ResponseWriter, r *http.Request, session *editor.Session) bool {
	id, err := valueobjects.ParseDiagramID(chi.URLParam(r, "id"))
	if err != nil {
		common.RespondError(w, pkgerrors.NewValidationError("invalid diagram ID"))
		return false
	}
	if err := session.Load(r.Context(), id); err != nil {
		common.RespondError(w, err)
		return false
	}
	return true
}

func parseGraph(nodePayloads []NodePayload, edgePayloads []EdgePayload) ([]entities.Node, []entities.Edge, error) {
	nodes := make([]entities.Node, 0, len(nodePayloads))
	for _, p := range nodePayloads {
		id, err := valueobjects.ParseNodeID(p.ID)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError("invalid node ID: " + p.ID)
		}
		pos, err := valueobjects.NewPosition(p.X, p.Y)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError(err.Error())
		}
		node, err := entities.NewNode(id, entities.NodeKind(p.Kind), p.Label, pos)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError(err.Error())
		}
		nodes = append(nodes, node)
	}

	edges := make([]entities.Edge, 0, len(edgePayloads))
	for _, p := range edgePayloads {
		source, err := valueobjects.ParseNodeID(p.Source)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError("invalid edge source: " + p.Source)
		}
		target, err := valueobjects.ParseNodeID(p.Target)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError("invalid edge target: " + p.Target)
		}
		edge, err := entities.NewEdge(source, target)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError(err.Error())
		}
		edges = append(edges, edge)
	}
	return nodes, edges, nil
}

func toDiagramResponse(view *queries.DiagramView) DiagramResponse {
	nodes := make([]NodePayload, 0, len(view.Nodes))
	for _, n := range view.Nodes {
		nodes = append(nodes, toNodePayload(n))
	}
	edges := make([]EdgePayload, 0, len(view.Edges))
	for _, e := range view.Edges {
		edges = append(edges, EdgePayload{
			ID:     e.ID.String(),
			Source: e.Source.String(),
			Target: e.Target.String(),
		})
	}
	return DiagramResponse{
		ID:         view.ID,
		Title:      view.Title,
		Nodes:      nodes,
		Edges:      edges,
		OwnerID:    view.OwnerID,
		OwnerEmail: view.OwnerEmail,
		Role:       string(view.Role),
		CreatedAt:  view.CreatedAt,
		UpdatedAt:  view.UpdatedAt,
	}
}

func toNodePayload(n entities.Node) NodePayload {
	return NodePayload{
		ID:    n.ID.String(),
		Kind:  string(n.Kind),
		Label: n.Label,
		X:     n.Position.X(),
		Y:     n.Position.Y(),
	}
}
