// Package secret resolves credential references into credential values.
// Resolved values must never reach a log line.
package secret

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/log"
)

// ErrNotFound is returned when a reference has no value in the backend.
var ErrNotFound = errors.New("secret not found")

// Resolver turns a reference into the credential it names. An empty
// reference resolves to an empty credential.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// New builds the resolver selected by cfg.
func New(ctx context.Context, cfg *config.Config) (Resolver, error) {
	switch cfg.Secrets.Provider {
	case "", config.SecretsProviderAWS:
		return NewAWS(ctx, cfg.Secrets.AWSRegion, cfg.Secrets.AWSEndpoint)
	case config.SecretsProviderEnv:
		return Env{}, nil
	}

	return nil, errors.Errorf("unknown secrets provider %q", cfg.Secrets.Provider)
}

type secretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// AWS reads secret strings from AWS Secrets Manager.
type AWS struct {
	client secretsManagerAPI
}

// NewAWS loads the default AWS configuration for region. A non-empty
// endpoint overrides the service endpoint (e.g. localstack).
func NewAWS(ctx context.Context, region, endpoint string) (*AWS, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &AWS{client: client}, nil
}

func (r *AWS) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	log.Ctx(ctx).Debugf("Retrieving secret %s", ref)

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", errors.Wrapf(err, "get secret %s", ref)
	}

	if out.SecretString == nil {
		return "", errors.Errorf("%w: %s has no string value", ErrNotFound, ref)
	}

	return *out.SecretString, nil
}

// Env treats a reference as the name of an environment variable.
type Env struct{}

func (Env) Resolve(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	val, ok := os.LookupEnv(strings.TrimSpace(ref))
	if !ok {
		return "", errors.Errorf("%w: %s", ErrNotFound, ref)
	}

	return val, nil
}

// Static resolves references from a fixed map.
type Static map[string]string

func (s Static) Resolve(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	val, ok := s[ref]
	if !ok {
		return "", errors.Errorf("%w: %s", ErrNotFound, ref)
	}

	return val, nil
}
