package params

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

const secretsManagerARNPrefix = "arn:aws:secretsmanager:"

// SecretsAPI is the subset of the Secrets Manager API used to dereference
// tokens. *secretsmanager.Client satisfies it.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// IsSecretARN reports whether a token value points at Secrets Manager.
func IsSecretARN(v string) bool {
	return strings.HasPrefix(v, secretsManagerARNPrefix)
}

func (r *Resolver) resolveToken(ctx context.Context, l *zap.Logger, token string) (string, error) {
	if !IsSecretARN(token) {
		return token, nil
	}
	if r.secrets == nil {
		return "", errors.New("hec_token references Secrets Manager but no client is configured")
	}

	l.Info("fetching HEC token from AWS Secrets Manager", zap.String("secret_id", token))
	secret, err := r.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from Secrets Manager: %w", err)
	}
	if secret.SecretString == nil || *secret.SecretString == "" {
		return "", fmt.Errorf("secret %s has no string value", token)
	}
	return *secret.SecretString, nil
}
