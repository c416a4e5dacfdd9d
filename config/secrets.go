package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

var ErrSecretNotFound = errors.New("secret not found")

// SecretsConfig selects where credentials come from.
//
//	literal: Username/Password/Values inline in the config
//	file:    one file per key under Dir, first line, trimmed
//	ssm:     AWS SSM Parameter Store, key is the parameter name
type SecretsConfig struct {
	Source      string            `mapstructure:"source" validate:"oneof=literal file ssm"`
	Dir         string            `mapstructure:"dir"`
	Username    string            `mapstructure:"username"`
	Password    string            `mapstructure:"password"`
	Values      map[string]string `mapstructure:"values"`
	UsernameKey string            `mapstructure:"username_key" validate:"required"`
	PasswordKey string            `mapstructure:"password_key" validate:"required"`
	Region      string            `mapstructure:"region"`
}

// SecretSource resolves a secret by key.
type SecretSource interface {
	Get(ctx context.Context, key string) (string, error)
}

// NewSecretSource builds the source selected by cfg.Source.
func NewSecretSource(ctx context.Context, cfg SecretsConfig) (SecretSource, error) {
	switch cfg.Source {
	case "literal":
		values := make(LiteralSource, len(cfg.Values)+2)
		for k, v := range cfg.Values {
			values[k] = v
		}
		if cfg.Username != "" {
			values[cfg.UsernameKey] = cfg.Username
		}
		if cfg.Password != "" {
			values[cfg.PasswordKey] = cfg.Password
		}
		return values, nil
	case "file":
		return FileSource{Dir: cfg.Dir}, nil
	case "ssm":
		ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctxWithTimeout, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSSMSource(ssm.NewFromConfig(awsCfg)), nil
	default:
		return nil, fmt.Errorf("unknown secret source %q", cfg.Source)
	}
}

// Credentials resolves the username/password pair named by cfg.
func (cfg SecretsConfig) Credentials(ctx context.Context, src SecretSource) (string, string, error) {
	user, err := src.Get(ctx, cfg.UsernameKey)
	if err != nil {
		return "", "", fmt.Errorf("username: %w", err)
	}
	password, err := src.Get(ctx, cfg.PasswordKey)
	if err != nil {
		return "", "", fmt.Errorf("password: %w", err)
	}
	return user, password, nil
}

// LiteralSource serves secrets written inline in the configuration.
type LiteralSource map[string]string

func (s LiteralSource) Get(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

// FileSource reads Docker-style secret files: the secret is the first line
// of Dir/key stripped of surrounding whitespace.
type FileSource struct {
	Dir string
}

func (s FileSource) Get(_ context.Context, key string) (string, error) {
	f, err := os.Open(filepath.Join(s.Dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("open secret %s: %w", key, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read secret %s: %w", key, err)
		}
		return "", fmt.Errorf("%w: %s is empty", ErrSecretNotFound, key)
	}
	v := strings.TrimSpace(sc.Text())
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSecretNotFound, key)
	}
	return v, nil
}

// ParameterGetter is the subset of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMSource reads decrypted SecureString parameters.
type SSMSource struct {
	client ParameterGetter
}

func NewSSMSource(client ParameterGetter) *SSMSource {
	return &SSMSource{client: client}
}

func (s *SSMSource) Get(ctx context.Context, key string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.client.GetParameter(ctxWithTimeout, &ssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", key, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}

	return *result.Parameter.Value, nil
}
