package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sessions/internal/domain"
)

// OneTimeTokenRepo stores one-time tokens keyed by the token string,
// with GSIs on user_id and relates_to for the pending-request guard.
type OneTimeTokenRepo struct {
	client    API
	tableName string
}

func NewOneTimeTokenRepo(client API, tableName string) *OneTimeTokenRepo {
	return &OneTimeTokenRepo{client: client, tableName: tableName}
}

func (r *OneTimeTokenRepo) Put(ctx context.Context, t *domain.OneTimeToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal one-time token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldToken},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("one-time token already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *OneTimeTokenRepo) Get(ctx context.Context, token string) (*domain.OneTimeToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldToken, token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("one-time token not found: %w", domain.ErrNotFound)
	}
	var t domain.OneTimeToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *OneTimeTokenRepo) Delete(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldToken, token),
	})
	return err
}

func (r *OneTimeTokenRepo) DeleteExpiredByUser(ctx context.Context, userID string, now time.Time) error {
	return r.deleteExpired(ctx, indexUserID, fieldUserID, userID, now)
}

func (r *OneTimeTokenRepo) DeleteExpiredByRelatesTo(ctx context.Context, relatesTo string, now time.Time) error {
	return r.deleteExpired(ctx, indexRelatesTo, fieldRelatesTo, relatesTo, now)
}

func (r *OneTimeTokenRepo) ListByUser(ctx context.Context, userID string) ([]domain.OneTimeToken, error) {
	return r.list(ctx, indexUserID, fieldUserID, userID)
}

func (r *OneTimeTokenRepo) ListByRelatesTo(ctx context.Context, relatesTo string) ([]domain.OneTimeToken, error) {
	return r.list(ctx, indexRelatesTo, fieldRelatesTo, relatesTo)
}

func (r *OneTimeTokenRepo) deleteExpired(ctx context.Context, index, attr, value string, now time.Time) error {
	keys, err := queryKeys(ctx, r.client, r.tableName, index, attr, value, "#e < :now", expiryBound(now), fieldToken)
	if err != nil {
		return err
	}
	return batchDelete(ctx, r.client, r.tableName, fieldToken, keys)
}

func (r *OneTimeTokenRepo) list(ctx context.Context, index, attr, value string) ([]domain.OneTimeToken, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	})
	var out []domain.OneTimeToken
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []domain.OneTimeToken
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}
