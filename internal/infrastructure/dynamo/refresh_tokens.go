package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sessions/internal/domain"
)

// RefreshTokenRepo stores refresh tokens keyed by the token string,
// with a user_id GSI for per-user sweeps.
type RefreshTokenRepo struct {
	client    API
	tableName string
	users     *UserRepo
}

func NewRefreshTokenRepo(client API, tableName string, users *UserRepo) *RefreshTokenRepo {
	return &RefreshTokenRepo{client: client, tableName: tableName, users: users}
}

func (r *RefreshTokenRepo) Put(ctx context.Context, t *domain.RefreshToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldToken},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("refresh token already exists: %w", domain.ErrConflict)
	}
	return err
}

// GetWithOwner reads the token and then its owner. DynamoDB has no joins,
// so this is two reads; a missing owner leaves User nil.
func (r *RefreshTokenRepo) GetWithOwner(ctx context.Context, token string) (*domain.RefreshToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldToken, token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
	}
	var t domain.RefreshToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	u, err := r.users.Get(ctx, t.UserID)
	switch {
	case err == nil:
		t.User = u.Public()
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Delete(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldToken, token),
	})
	return err
}

func (r *RefreshTokenRepo) DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error {
	keys, err := queryKeys(ctx, r.client, r.tableName, indexUserID, fieldUserID, userID,
		"#e < :now", expiryBound(now), fieldToken)
	if err != nil {
		return err
	}
	return batchDelete(ctx, r.client, r.tableName, fieldToken, keys)
}

// Replace deletes used and puts next in one transaction. The delete is
// conditional on used still existing, which makes rotation single-use.
func (r *RefreshTokenRepo) Replace(ctx context.Context, used string, next *domain.RefreshToken) error {
	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	names := map[string]string{"#pk": fieldToken}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(r.tableName),
				Key:                      strKey(fieldToken, used),
				ConditionExpression:      aws.String("attribute_exists(#pk)"),
				ExpressionAttributeNames: names,
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: names,
			}},
		},
	})
	if reasons, ok := cancellationReasons(err); ok {
		if len(reasons) > 0 && reasons[0] == "ConditionalCheckFailed" {
			return fmt.Errorf("refresh token not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("rotate refresh token: %w", domain.ErrConflict)
	}
	return err
}

// expiryBound is the :now value for filters on the unixtime expires_at attribute.
func expiryBound(now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
	}
}
