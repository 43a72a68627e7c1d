package aggregates

import (
	"math/rand"
	"time"

	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	"flowcanvas-backend/domain/events"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

// DefaultTitle is the working title of a diagram that has never been saved
const DefaultTitle = "My Diagram"

// Grant records that an identity may access the diagram at a given level.
// An identity appears at most once in the access list; later grants
// overwrite earlier ones.
type Grant struct {
	UserID     string
	Permission valueobjects.Permission
}

// Diagram is the aggregate root for one node-and-edge document.
// It owns the in-memory graph, the title, the ownership record and the
// access list, and is the only place those are mutated.
type Diagram struct {
	id         valueobjects.DiagramID
	title      string
	nodes      []entities.Node
	edges      []entities.Edge
	ownerID    string
	ownerEmail string
	sharedWith []Grant
	createdAt  time.Time
	updatedAt  time.Time

	events []events.DomainEvent
}

// NewDiagram creates an unsaved diagram with an empty graph.
// The identifier stays zero until the document store assigns one.
func NewDiagram(ownerID, ownerEmail, title string) (*Diagram, error) {
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner ID cannot be empty")
	}
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	return &Diagram{
		title:      title,
		nodes:      []entities.Node{},
		edges:      []entities.Edge{},
		ownerID:    ownerID,
		ownerEmail: entities.NormalizeEmail(ownerEmail),
		sharedWith: []Grant{},
		createdAt:  now,
		updatedAt:  now,
		events:     []events.DomainEvent{},
	}, nil
}

// NewStarterDiagram creates the unsaved diagram a fresh editor session
// opens with: three placeholder nodes joined into a short flow.
func NewStarterDiagram(ownerID, ownerEmail string) (*Diagram, error) {
	d, err := NewDiagram(ownerID, ownerEmail, DefaultTitle)
	if err != nil {
		return nil, err
	}

	specs := []struct {
		label string
		x, y  float64
	}{
		{"Start Node", 250, 25},
		{"Process Node", 100, 125},
		{"End Node", 250, 250},
	}

	ids := make([]valueobjects.NodeID, 0, len(specs))
	for _, s := range specs {
		pos, err := valueobjects.NewPosition(s.x, s.y)
		if err != nil {
			return nil, err
		}
		node, err := entities.NewNode(valueobjects.NewNodeID(), entities.KindCustom, s.label, pos)
		if err != nil {
			return nil, err
		}
		d.nodes = append(d.nodes, node)
		ids = append(ids, node.ID)
	}

	for i := 0; i+1 < len(ids); i++ {
		edge, err := entities.NewEdge(ids[i], ids[i+1])
		if err != nil {
			return nil, err
		}
		d.edges = append(d.edges, edge)
	}

	return d, nil
}

// ReconstructDiagram rebuilds a diagram from repository data with
// preserved identifiers and timestamps. Grants are deduplicated by
// identity, keeping the last entry, so a malformed stored access list
// cannot violate the at-most-once invariant.
func ReconstructDiagram(
	id valueobjects.DiagramID,
	ownerID, ownerEmail, title string,
	nodes []entities.Node,
	edges []entities.Edge,
	sharedWith []Grant,
	createdAt, updatedAt time.Time,
) (*Diagram, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("diagram ID cannot be empty")
	}
	if ownerID == "" {
		return nil, pkgerrors.NewValidationError("owner ID cannot be empty")
	}

	d := &Diagram{
		id:         id,
		title:      title,
		nodes:      append([]entities.Node{}, nodes...),
		edges:      append([]entities.Edge{}, edges...),
		ownerID:    ownerID,
		ownerEmail: entities.NormalizeEmail(ownerEmail),
		sharedWith: []Grant{},
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		events:     []events.DomainEvent{},
	}
	for _, g := range sharedWith {
		d.mergeGrant(g)
	}
	return d, nil
}

// ID returns the diagram's identifier; zero while unsaved
func (d *Diagram) ID() valueobjects.DiagramID { return d.id }

// IsSaved reports whether the store has assigned an identifier
func (d *Diagram) IsSaved() bool { return !d.id.IsZero() }

// Title returns the diagram title
func (d *Diagram) Title() string { return d.title }

// OwnerID returns the owning identity
func (d *Diagram) OwnerID() string { return d.ownerID }

// OwnerEmail returns the denormalized owner email
func (d *Diagram) OwnerEmail() string { return d.ownerEmail }

// CreatedAt returns when the diagram was created
func (d *Diagram) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns when the diagram last changed
func (d *Diagram) UpdatedAt() time.Time { return d.updatedAt }

// NodeCount returns the number of nodes
func (d *Diagram) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges
func (d *Diagram) EdgeCount() int { return len(d.edges) }

// Nodes returns a copy of the node sequence
func (d *Diagram) Nodes() []entities.Node {
	nodes := make([]entities.Node, len(d.nodes))
	copy(nodes, d.nodes)
	return nodes
}

// Edges returns a copy of the edge sequence
func (d *Diagram) Edges() []entities.Edge {
	edges := make([]entities.Edge, len(d.edges))
	copy(edges, d.edges)
	return edges
}

// Grants returns a copy of the access list
func (d *Diagram) Grants() []Grant {
	grants := make([]Grant, len(d.sharedWith))
	copy(grants, d.sharedWith)
	return grants
}

// AssignID records the identifier handed out by the document store on
// first save. Identifiers are immutable once assigned.
func (d *Diagram) AssignID(id valueobjects.DiagramID) error {
	if id.IsZero() {
		return pkgerrors.NewValidationError("diagram ID cannot be empty")
	}
	if !d.id.IsZero() {
		return pkgerrors.NewConflictError("diagram already has an identifier")
	}
	d.id = id
	d.addEvent(events.NewDiagramCreated(id.String(), d.ownerID, d.title, time.Now()))
	return nil
}

// Rename changes the diagram title
func (d *Diagram) Rename(title string) error {
	if title == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	if title == d.title {
		return nil
	}
	d.title = title
	d.touch()
	return nil
}

// ReplaceGraph swaps in a full node/edge set, as the editor's bulk save
// does. Edge endpoints must reference nodes present in the new set.
func (d *Diagram) ReplaceGraph(nodes []entities.Node, edges []entities.Edge) error {
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if present[n.ID.String()] {
			return pkgerrors.NewValidationError("duplicate node ID: " + n.ID.String())
		}
		present[n.ID.String()] = true
	}
	for _, e := range edges {
		if !present[e.Source.String()] || !present[e.Target.String()] {
			return pkgerrors.NewValidationError("edge " + e.ID.String() + " references a missing node")
		}
	}
	d.nodes = append([]entities.Node{}, nodes...)
	d.edges = append([]entities.Edge{}, edges...)
	d.touch()
	return nil
}

// ScatterNode appends a placeholder node at a jittered position and
// returns it.
func (d *Diagram) ScatterNode(r *rand.Rand) entities.Node {
	node := entities.NewScatteredNode(r)
	d.nodes = append(d.nodes, node)
	d.touch()
	d.addEvent(events.NewNodeAdded(d.id.String(), node.ID.String(), d.updatedAt))
	return node
}

// AddNode appends an existing node with uniqueness validation
func (d *Diagram) AddNode(node entities.Node) error {
	for _, n := range d.nodes {
		if n.ID.Equals(node.ID) {
			return pkgerrors.NewConflictError("node already exists: " + node.ID.String())
		}
	}
	d.nodes = append(d.nodes, node)
	d.touch()
	d.addEvent(events.NewNodeAdded(d.id.String(), node.ID.String(), d.updatedAt))
	return nil
}

// RemoveNode deletes a node and cascade-deletes every edge that
// references it as source or target.
func (d *Diagram) RemoveNode(nodeID valueobjects.NodeID) error {
	idx := -1
	for i, n := range d.nodes {
		if n.ID.Equals(nodeID) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return pkgerrors.NewNotFoundError("node")
	}

	d.nodes = append(d.nodes[:idx], d.nodes[idx+1:]...)

	kept := d.edges[:0]
	removed := 0
	for _, e := range d.edges {
		if e.Touches(nodeID) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	d.edges = kept

	d.touch()
	d.addEvent(events.NewNodeRemoved(d.id.String(), nodeID.String(), removed, d.updatedAt))
	return nil
}

// Connect creates an edge between two existing nodes
func (d *Diagram) Connect(source, target valueobjects.NodeID) (entities.Edge, error) {
	if !d.hasNode(source) || !d.hasNode(target) {
		return entities.Edge{}, pkgerrors.NewValidationError("edge endpoints must reference existing nodes")
	}
	edge, err := entities.NewEdge(source, target)
	if err != nil {
		return entities.Edge{}, err
	}
	for _, e := range d.edges {
		if e.ID.Equals(edge.ID) {
			return entities.Edge{}, pkgerrors.NewConflictError("edge already exists: " + edge.ID.String())
		}
	}
	d.edges = append(d.edges, edge)
	d.touch()
	return edge, nil
}

// RoleFor computes the effective role of an identity on this diagram:
// the owner, a grantee at its granted level, or view for everyone else
// (default deny).
func (d *Diagram) RoleFor(userID string) valueobjects.Role {
	if userID != "" && userID == d.ownerID {
		return valueobjects.RoleOwner
	}
	for _, g := range d.sharedWith {
		if g.UserID == userID {
			return g.Permission.Role()
		}
	}
	return valueobjects.RoleView
}

// ApplyGrants merges permission grants into the access list: an
// existing entry for the same identity is replaced, a new identity is
// appended. Returns the identities affected.
func (d *Diagram) ApplyGrants(grants []Grant) ([]string, error) {
	if len(grants) == 0 {
		return nil, pkgerrors.NewValidationError("no grants to apply")
	}
	affected := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.UserID == "" {
			return nil, pkgerrors.NewValidationError("grant is missing an identity")
		}
		if !g.Permission.IsValid() {
			return nil, pkgerrors.NewValidationError("grant has an unknown permission level")
		}
		d.mergeGrant(g)
		affected = append(affected, g.UserID)
	}
	d.touch()
	d.addEvent(events.NewDiagramShared(d.id.String(), affected, d.updatedAt))
	return affected, nil
}

// MarkDeleted records the deletion event before the aggregate is discarded
func (d *Diagram) MarkDeleted() {
	d.addEvent(events.NewDiagramDeleted(d.id.String(), d.ownerID, time.Now()))
}

// GetUncommittedEvents returns all uncommitted domain events
func (d *Diagram) GetUncommittedEvents() []events.DomainEvent {
	return d.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (d *Diagram) MarkEventsAsCommitted() {
	d.events = []events.DomainEvent{}
}

// mergeGrant applies the overwrite-or-append rule for one grant
func (d *Diagram) mergeGrant(g Grant) {
	for i, existing := range d.sharedWith {
		if existing.UserID == g.UserID {
			d.sharedWith[i] = g
			return
		}
	}
	d.sharedWith = append(d.sharedWith, g)
}

func (d *Diagram) hasNode(id valueobjects.NodeID) bool {
	for _, n := range d.nodes {
		if n.ID.Equals(id) {
			return true
		}
	}
	return false
}

// touch advances the updated timestamp, strictly. Two mutations inside
// the same clock tick still produce increasing timestamps.
func (d *Diagram) touch() {
	now := time.Now()
	if !now.After(d.updatedAt) {
		now = d.updatedAt.Add(time.Millisecond)
	}
	d.updatedAt = now
}

func (d *Diagram) addEvent(event events.DomainEvent) {
	// A diagram that was never saved has no aggregate identity to
	// publish under; the created event on first save covers whatever
	// graph it starts with.
	if d.id.IsZero() {
		return
	}
	d.events = append(d.events, event)
}
