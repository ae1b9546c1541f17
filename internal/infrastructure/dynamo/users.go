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

// UserRepo provides typed DynamoDB operations for the users table.
//
// Single-use secrets (the email OTP, the reset token, recovery codes) are
// consumed through conditional updates so that two racing requests cannot
// both spend the same credential: the loser's condition fails and surfaces
// as a domain error.
type UserRepo struct {
	client    dynamoAPI
	tableName string
}

func NewUserRepo(client dynamoAPI, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.queryGSI(ctx, "phone_number-index", "phone_number", phone)
}

// GetByResetToken looks up the account holding the given hashed reset token.
// Expiry is checked by the caller; consumption happens via ConsumeResetToken.
func (r *UserRepo) GetByResetToken(ctx context.Context, hashedToken string) (*domain.User, error) {
	return r.queryGSI(ctx, "reset_token-index", "reset_password_token", hashedToken)
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	expr, names, values, err := buildUpdateExpr(withTimestamp(updates))
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

// Delete removes the record entirely. Used only to roll back a registration
// whose verification email could not be dispatched.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	return err
}

func (r *UserRepo) SoftDelete(ctx context.Context, userID string) error {
	return r.Update(ctx, userID, map[string]interface{}{"is_deleted": true})
}

// ClearTwoFAOTP clears the stored email OTP only if it still equals otp.
// A failed condition means the code was already consumed or regenerated;
// that surfaces as ErrUnauthorized so the caller treats it as a bad code.
func (r *UserRepo) ClearTwoFAOTP(ctx context.Context, userID, otp string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("user_id", userID),
		UpdateExpression:    aws.String("SET two_fa_otp = :empty, updated_at = :now"),
		ConditionExpression: aws.String("two_fa_otp = :otp"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberS{Value: ""},
			":otp":   &types.AttributeValueMemberS{Value: otp},
			":now":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if condCheckFailed(err) {
		return fmt.Errorf("otp already consumed: %w", domain.ErrUnauthorized)
	}
	return err
}

// ConsumeResetToken sets the new password hash and clears the reset material
// in one conditional write: the stored token must still match and must not
// have expired. Either a mismatch or expiry fails the condition, so a raw
// token can be spent at most once.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, userID, hashedToken, newPasswordHash string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
		UpdateExpression: aws.String(
			"SET password_hash = :p, reset_password_token = :empty, reset_password_expire = :zero, updated_at = :now"),
		ConditionExpression: aws.String("reset_password_token = :t AND reset_password_expire > :nowUnix"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":       &types.AttributeValueMemberS{Value: newPasswordHash},
			":empty":   &types.AttributeValueMemberS{Value: ""},
			":zero":    &types.AttributeValueMemberN{Value: "0"},
			":t":       &types.AttributeValueMemberS{Value: hashedToken},
			":nowUnix": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
			":now":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if condCheckFailed(err) {
		return fmt.Errorf("reset token invalid or expired: %w", domain.ErrUnauthorized)
	}
	return err
}

// ConsumeRecoveryCode flags the recovery code at index as used, provided it
// still holds the expected code and is still unused. Codes are flagged, not
// removed, to keep the audit trail intact.
func (r *UserRepo) ConsumeRecoveryCode(ctx context.Context, userID string, index int, code string) error {
	path := fmt.Sprintf("recovery_codes[%d]", index)
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("user_id", userID),
		UpdateExpression:    aws.String(fmt.Sprintf("SET %s.used = :t, updated_at = :now", path)),
		ConditionExpression: aws.String(fmt.Sprintf("%s.code = :c AND %s.used = :f", path, path)),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
			":c":   &types.AttributeValueMemberS{Value: code},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if condCheckFailed(err) {
		return fmt.Errorf("recovery code already used: %w", domain.ErrUnauthorized)
	}
	return err
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
