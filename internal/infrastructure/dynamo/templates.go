package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/auth-api-nosql/internal/domain"
)

type EmailTemplateRepo struct {
	client    dynamoAPI
	tableName string
}

func NewEmailTemplateRepo(client dynamoAPI, tableName string) *EmailTemplateRepo {
	return &EmailTemplateRepo{client: client, tableName: tableName}
}

func (r *EmailTemplateRepo) Put(ctx context.Context, t *domain.EmailTemplate) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal email template: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *EmailTemplateRepo) GetBySlug(ctx context.Context, slug string) (*domain.EmailTemplate, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("slug", slug),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("email template not found: %w", domain.ErrNotFound)
	}
	var t domain.EmailTemplate
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, fmt.Errorf("email template disabled: %w", domain.ErrNotFound)
	}
	return &t, nil
}

// SeedTemplates writes the built-in transactional templates. It is run at
// startup and overwrites any prior copies, so edits belong here.
func (r *EmailTemplateRepo) SeedTemplates(ctx context.Context) error {
	for _, t := range defaultTemplates {
		t := t
		if err := r.Put(ctx, &t); err != nil {
			return fmt.Errorf("seed template %s: %w", t.Slug, err)
		}
	}
	return nil
}

var defaultTemplates = []domain.EmailTemplate{
	{
		Slug:    domain.TemplateSetPassword,
		Subject: "Set your password",
		HTML: `<p>Hi {name},</p>
<p>Welcome aboard. Click the link below to set your password and activate your account.</p>
<p><a href="{link}">Set password</a></p>
<p>This link expires in {expire} {unit}{plural}.</p>`,
		IsActive: true,
	},
	{
		Slug:    domain.TemplateResetPassword,
		Subject: "Reset your password",
		HTML: `<p>Hi {name},</p>
<p>We received a request to reset the password for your account. Click the link below to choose a new one.</p>
<p><a href="{link}">Reset password</a></p>
<p>This link expires in {expire} {unit}{plural}. If you did not request a reset, you can ignore this email.</p>`,
		IsActive: true,
	},
	{
		Slug:    domain.TemplateVerifyEmail,
		Subject: "Verify your email address",
		HTML: `<p>Hi {name},</p>
<p>Thanks for signing up. Please confirm your email address by clicking the link below.</p>
<p><a href="{link}">Verify email</a></p>
<p>This link expires in {expire} {unit}{plural}.</p>`,
		IsActive: true,
	},
	{
		Slug:    domain.TemplateVerifyOTP,
		Subject: "Your verification code",
		HTML: `<p>Hi {name},</p>
<p>Your one-time verification code is:</p>
<p><strong>{otp}</strong></p>
<p>The code is valid for {otpValidTime} minutes. If you did not request it, please secure your account.</p>`,
		IsActive: true,
	},
}
