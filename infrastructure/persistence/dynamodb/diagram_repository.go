package dynamodb

import (
	"context"
	"fmt"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/aggregates"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/domain/core/valueobjects"
	pkgerrors "flowcanvas-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DiagramRepository implements ports.DiagramRepository on a single
// DynamoDB table. Diagram documents live under the owner's partition;
// a GSI keyed by diagram ID serves lookups that arrive without the
// owner in hand.
type DiagramRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewDiagramRepository creates a new DiagramRepository
func NewDiagramRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) ports.DiagramRepository {
	return &DiagramRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// diagramItem represents the DynamoDB item structure for a diagram
type diagramItem struct {
	PK            string      `dynamodbav:"PK"`
	SK            string      `dynamodbav:"SK"`
	GSI1PK        string      `dynamodbav:"GSI1PK"` // DIAGRAMID#<id> for lookups by diagram ID
	GSI1SK        string      `dynamodbav:"GSI1SK"` // Always "METADATA" for diagrams
	EntityType    string      `dynamodbav:"EntityType"`
	DiagramID     string      `dynamodbav:"DiagramID"`
	Title         string      `dynamodbav:"Title"`
	OwnerID       string      `dynamodbav:"OwnerID"`
	OwnerEmail    string      `dynamodbav:"OwnerEmail"`
	Nodes         []nodeItem  `dynamodbav:"Nodes"`
	Edges         []edgeItem  `dynamodbav:"Edges"`
	SharedWith    []grantItem `dynamodbav:"SharedWith"`
	SharedUserIDs []string    `dynamodbav:"SharedUserIDs"` // Denormalized for contains() filtering
	CreatedAt     int64       `dynamodbav:"CreatedAt"`     // Epoch milliseconds
	UpdatedAt     int64       `dynamodbav:"UpdatedAt"`
}

type nodeItem struct {
	ID    string  `dynamodbav:"ID"`
	Kind  string  `dynamodbav:"Kind"`
	Label string  `dynamodbav:"Label"`
	X     float64 `dynamodbav:"X"`
	Y     float64 `dynamodbav:"Y"`
}

type edgeItem struct {
	ID     string `dynamodbav:"ID"`
	Source string `dynamodbav:"Source"`
	Target string `dynamodbav:"Target"`
}

type grantItem struct {
	UserID     string `dynamodbav:"UserID"`
	Permission string `dynamodbav:"Permission"`
}

// Create persists a new diagram and assigns its identifier. For an
// unsaved diagram the identifier is generated here but assigned to the
// aggregate only once the put succeeds, so a failed first save leaves
// the aggregate unsaved and retryable.
func (r *DiagramRepository) Create(ctx context.Context, diagram *aggregates.Diagram) error {
	id := diagram.ID()
	if !diagram.IsSaved() {
		id = valueobjects.NewDiagramID()
	}

	item, err := r.toItem(diagram, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal diagram", err)
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal diagram", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errorsAs(err, &cond) {
			return pkgerrors.NewConflictError("diagram already exists")
		}
		r.logger.Error("failed to create diagram",
			zap.Error(err),
			zap.String("diagramID", id.String()),
		)
		return pkgerrors.NewDatabaseError("create diagram", err)
	}

	if !diagram.IsSaved() {
		if err := diagram.AssignID(id); err != nil {
			return err
		}
	}

	r.logger.Info("diagram created",
		zap.String("diagramID", id.String()),
		zap.String("ownerID", diagram.OwnerID()),
	)
	return nil
}

// GetByID retrieves a diagram through the diagram-ID index
func (r *DiagramRepository) GetByID(ctx context.Context, id valueobjects.DiagramID) (*aggregates.Diagram, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(diagramGSI1PK(id.String()))).
		And(expression.Key("GSI1SK").Equal(expression.Value("METADATA")))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get diagram", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("diagram %s not found", id.String()))
	}

	var item diagramItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal diagram", err)
	}
	return r.fromItem(item)
}

// Update overwrites the graph content and title of an existing document.
// Ownership, sharing and creation metadata are left untouched.
func (r *DiagramRepository) Update(ctx context.Context, diagram *aggregates.Diagram) error {
	nodes, edges, err := marshalGraph(diagram)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal diagram", err)
	}

	update := expression.Set(expression.Name("Title"), expression.Value(diagram.Title())).
		Set(expression.Name("Nodes"), expression.Value(nodes)).
		Set(expression.Name("Edges"), expression.Value(edges)).
		Set(expression.Name("UpdatedAt"), expression.Value(diagram.UpdatedAt().UnixMilli()))
	return r.applyUpdate(ctx, diagram, update, "update diagram")
}

// UpdateSharing overwrites the access list of an existing document
func (r *DiagramRepository) UpdateSharing(ctx context.Context, diagram *aggregates.Diagram) error {
	grants, userIDs := marshalGrants(diagram)

	update := expression.Set(expression.Name("SharedWith"), expression.Value(grants)).
		Set(expression.Name("SharedUserIDs"), expression.Value(userIDs)).
		Set(expression.Name("UpdatedAt"), expression.Value(diagram.UpdatedAt().UnixMilli()))
	return r.applyUpdate(ctx, diagram, update, "update diagram sharing")
}

func (r *DiagramRepository) applyUpdate(ctx context.Context, diagram *aggregates.Diagram, update expression.UpdateBuilder, operation string) error {
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build update", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       diagramKey(diagram.OwnerID(), diagram.ID().String()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errorsAs(err, &cond) {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("diagram %s not found", diagram.ID().String()))
		}
		r.logger.Error("failed to update diagram",
			zap.Error(err),
			zap.String("diagramID", diagram.ID().String()),
			zap.String("operation", operation),
		)
		return pkgerrors.NewDatabaseError(operation, err)
	}
	return nil
}

// Delete removes the diagram document. Deleting an absent diagram is
// not an error; the store's semantics are idempotent removal.
func (r *DiagramRepository) Delete(ctx context.Context, id valueobjects.DiagramID) error {
	diagram, err := r.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       diagramKey(diagram.OwnerID(), id.String()),
	})
	if err != nil {
		r.logger.Error("failed to delete diagram",
			zap.Error(err),
			zap.String("diagramID", id.String()),
		)
		return pkgerrors.NewDatabaseError("delete diagram", err)
	}

	r.logger.Info("diagram deleted", zap.String("diagramID", id.String()))
	return nil
}

// ListByOwner retrieves all diagrams under an identity's partition
func (r *DiagramRepository) ListByOwner(ctx context.Context, userID string) ([]*aggregates.Diagram, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("USER#%s", userID))).
		And(expression.Key("SK").BeginsWith("DIAGRAM#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build query", err)
	}

	var diagrams []*aggregates.Diagram
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list diagrams", err)
		}

		page, err := r.unmarshalPage(out.Items)
		if err != nil {
			return nil, err
		}
		diagrams = append(diagrams, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}
	return diagrams, nil
}

// ListSharedWith retrieves all diagrams whose access list names the
// identity. The denormalized SharedUserIDs attribute keeps the filter
// a flat contains() instead of a walk over the nested grant list.
func (r *DiagramRepository) ListSharedWith(ctx context.Context, userID string) ([]*aggregates.Diagram, error) {
	filter := expression.Contains(expression.Name("SharedUserIDs"), userID).
		And(expression.Equal(expression.Name("EntityType"), expression.Value("DIAGRAM")))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build scan", err)
	}

	var diagrams []*aggregates.Diagram
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.tableName),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list shared diagrams", err)
		}

		page, err := r.unmarshalPage(out.Items)
		if err != nil {
			return nil, err
		}
		diagrams = append(diagrams, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}
	return diagrams, nil
}

func (r *DiagramRepository) unmarshalPage(items []map[string]types.AttributeValue) ([]*aggregates.Diagram, error) {
	diagrams := make([]*aggregates.Diagram, 0, len(items))
	for _, raw := range items {
		var item diagramItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal diagram", err)
		}
		diagram, err := r.fromItem(item)
		if err != nil {
			// A single corrupt document must not hide the rest of the list
			r.logger.Warn("skipping unreadable diagram item",
				zap.Error(err),
				zap.String("diagramID", item.DiagramID),
			)
			continue
		}
		diagrams = append(diagrams, diagram)
	}
	return diagrams, nil
}

func (r *DiagramRepository) toItem(diagram *aggregates.Diagram, id valueobjects.DiagramID) (diagramItem, error) {
	nodes, edges, err := marshalGraph(diagram)
	if err != nil {
		return diagramItem{}, err
	}
	grants, userIDs := marshalGrants(diagram)

	return diagramItem{
		PK:            fmt.Sprintf("USER#%s", diagram.OwnerID()),
		SK:            fmt.Sprintf("DIAGRAM#%s", id.String()),
		GSI1PK:        diagramGSI1PK(id.String()),
		GSI1SK:        "METADATA",
		EntityType:    "DIAGRAM",
		DiagramID:     id.String(),
		Title:         diagram.Title(),
		OwnerID:       diagram.OwnerID(),
		OwnerEmail:    diagram.OwnerEmail(),
		Nodes:         nodes,
		Edges:         edges,
		SharedWith:    grants,
		SharedUserIDs: userIDs,
		CreatedAt:     diagram.CreatedAt().UnixMilli(),
		UpdatedAt:     diagram.UpdatedAt().UnixMilli(),
	}, nil
}

func (r *DiagramRepository) fromItem(item diagramItem) (*aggregates.Diagram, error) {
	id, err := valueobjects.ParseDiagramID(item.DiagramID)
	if err != nil {
		return nil, err
	}

	nodes := make([]entities.Node, 0, len(item.Nodes))
	for _, n := range item.Nodes {
		nodeID, err := valueobjects.ParseNodeID(n.ID)
		if err != nil {
			return nil, err
		}
		pos, err := valueobjects.NewPosition(n.X, n.Y)
		if err != nil {
			return nil, err
		}
		node, err := entities.NewNode(nodeID, entities.NodeKind(n.Kind), n.Label, pos)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	edges := make([]entities.Edge, 0, len(item.Edges))
	for _, e := range item.Edges {
		source, err := valueobjects.ParseNodeID(e.Source)
		if err != nil {
			return nil, err
		}
		target, err := valueobjects.ParseNodeID(e.Target)
		if err != nil {
			return nil, err
		}
		edge, err := entities.NewEdge(source, target)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	grants := make([]aggregates.Grant, 0, len(item.SharedWith))
	for _, g := range item.SharedWith {
		perm, err := valueobjects.ParsePermission(g.Permission)
		if err != nil {
			return nil, err
		}
		grants = append(grants, aggregates.Grant{UserID: g.UserID, Permission: perm})
	}

	return aggregates.ReconstructDiagram(
		id,
		item.OwnerID,
		item.OwnerEmail,
		item.Title,
		nodes,
		edges,
		grants,
		fromEpochMillis(item.CreatedAt),
		fromEpochMillis(item.UpdatedAt),
	)
}

func marshalGraph(diagram *aggregates.Diagram) ([]nodeItem, []edgeItem, error) {
	nodes := make([]nodeItem, 0, diagram.NodeCount())
	for _, n := range diagram.Nodes() {
		nodes = append(nodes, nodeItem{
			ID:    n.ID.String(),
			Kind:  string(n.Kind),
			Label: n.Label,
			X:     n.Position.X(),
			Y:     n.Position.Y(),
		})
	}
	edges := make([]edgeItem, 0, diagram.EdgeCount())
	for _, e := range diagram.Edges() {
		edges = append(edges, edgeItem{
			ID:     e.ID.String(),
			Source: e.Source.String(),
			Target: e.Target.String(),
		})
	}
	return nodes, edges, nil
}

func marshalGrants(diagram *aggregates.Diagram) ([]grantItem, []string) {
	shared := diagram.Grants()
	grants := make([]grantItem, 0, len(shared))
	userIDs := make([]string, 0, len(shared))
	for _, g := range shared {
		grants = append(grants, grantItem{
			UserID:     g.UserID,
			Permission: string(g.Permission),
		})
		userIDs = append(userIDs, g.UserID)
	}
	return grants, userIDs
}

func diagramKey(ownerID, diagramID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", ownerID)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("DIAGRAM#%s", diagramID)},
	}
}

func diagramGSI1PK(diagramID string) string {
	return fmt.Sprintf("DIAGRAMID#%s", diagramID)
}
