package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/auth-api-nosql/internal/domain"
)

// PhoneVerificationRepo stores pending SMS challenges keyed by E.164 number.
// Rows expire through the table's TTL on expires_at.
type PhoneVerificationRepo struct {
	client    dynamoAPI
	tableName string
}

func NewPhoneVerificationRepo(client dynamoAPI, tableName string) *PhoneVerificationRepo {
	return &PhoneVerificationRepo{client: client, tableName: tableName}
}

func (r *PhoneVerificationRepo) Put(ctx context.Context, v *domain.PhoneVerification) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal phone verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Consume deletes the pending challenge for phone in one conditional write:
// the stored code must match and must not have expired. A failed condition
// (wrong code, expired, no pending challenge, or a concurrent check that won
// the race) reports false, so each code approves at most one check.
func (r *PhoneVerificationRepo) Consume(ctx context.Context, phone, code string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("phone", phone),
		// "code" is a DynamoDB reserved word and must be aliased.
		ConditionExpression:      aws.String("#c = :c AND expires_at > :now"),
		ExpressionAttributeNames: map[string]string{"#c": "code"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":   &types.AttributeValueMemberS{Value: code},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if condCheckFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
