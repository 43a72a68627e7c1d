package dynamodb

import (
	"context"
	"fmt"
	"time"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/entities"
	pkgerrors "flowcanvas-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// UserRepository implements ports.UserRepository on the shared table.
// Profiles sit at PK=USER#<id>/SK=PROFILE; the email index drives the
// address-to-identity resolution the sharing flow depends on.
type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	indexName string
	logger    *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(client *dynamodb.Client, tableName, indexName string, logger *zap.Logger) ports.UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// userItem represents the DynamoDB item structure for a user profile
type userItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"` // EMAIL#<email> for lookups by address
	GSI1SK       string `dynamodbav:"GSI1SK"` // Always "PROFILE" for users
	EntityType   string `dynamodbav:"EntityType"`
	UserID       string `dynamodbav:"UserID"`
	Email        string `dynamodbav:"Email"`
	Role         string `dynamodbav:"Role"`
	PasswordHash string `dynamodbav:"PasswordHash,omitempty"`
	CreatedAt    int64  `dynamodbav:"CreatedAt"`
	UpdatedAt    int64  `dynamodbav:"UpdatedAt"`
	LastLogin    int64  `dynamodbav:"LastLogin,omitempty"`
}

// GetByID retrieves a profile by identity
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.UserProfile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       userKey(id),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get user", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("user %s not found", id))
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal user", err)
	}
	return fromUserItem(item), nil
}

// Put stores a profile, creating or fully replacing it
func (r *UserRepository) Put(ctx context.Context, user *entities.UserProfile) error {
	av, err := attributevalue.MarshalMap(toUserItem(user))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal user", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		r.logger.Error("failed to store user profile",
			zap.Error(err),
			zap.String("userID", user.ID),
		)
		return pkgerrors.NewDatabaseError("put user", err)
	}
	return nil
}

// RecordLogin merge-sets the last login timestamp without touching the
// rest of the profile
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	update := expression.Set(expression.Name("LastLogin"), expression.Value(at.UnixMilli()))
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build update", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       userKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errorsAs(err, &cond) {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("user %s not found", id))
		}
		return pkgerrors.NewDatabaseError("record login", err)
	}
	return nil
}

// FindByEmail resolves one email to a profile through the email index
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.UserProfile, error) {
	normalized := entities.NormalizeEmail(email)
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("EMAIL#%s", normalized))).
		And(expression.Key("GSI1SK").Equal(expression.Value("PROFILE")))
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
		return nil, pkgerrors.NewDatabaseError("find user by email", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("user with email %s not found", normalized))
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal user", err)
	}
	return fromUserItem(item), nil
}

// FindByEmails resolves a batch of emails to identities. Unregistered
// addresses are absent from the result rather than errors; a store
// failure on any single lookup fails the whole batch so callers never
// mistake an outage for an unknown address.
func (r *UserRepository) FindByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	resolved := make(map[string]string, len(emails))
	for _, email := range emails {
		profile, err := r.FindByEmail(ctx, email)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		resolved[entities.NormalizeEmail(email)] = profile.ID
	}
	return resolved, nil
}

func toUserItem(user *entities.UserProfile) userItem {
	item := userItem{
		PK:           fmt.Sprintf("USER#%s", user.ID),
		SK:           "PROFILE",
		GSI1PK:       fmt.Sprintf("EMAIL#%s", user.Email),
		GSI1SK:       "PROFILE",
		EntityType:   "USER",
		UserID:       user.ID,
		Email:        user.Email,
		Role:         string(user.Role),
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UnixMilli(),
		UpdatedAt:    user.UpdatedAt.UnixMilli(),
	}
	if !user.LastLogin.IsZero() {
		item.LastLogin = user.LastLogin.UnixMilli()
	}
	return item
}

func fromUserItem(item userItem) *entities.UserProfile {
	profile := &entities.UserProfile{
		ID:           item.UserID,
		Email:        item.Email,
		Role:         entities.AccountRole(item.Role),
		PasswordHash: item.PasswordHash,
		CreatedAt:    fromEpochMillis(item.CreatedAt),
		UpdatedAt:    fromEpochMillis(item.UpdatedAt),
	}
	if item.LastLogin != 0 {
		profile.LastLogin = fromEpochMillis(item.LastLogin)
	}
	return profile
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", id)},
		"SK": &types.AttributeValueMemberS{Value: "PROFILE"},
	}
}
