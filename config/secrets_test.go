package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"marketchart/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// go test -v --run ^TestFileSource$
func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mongodb_username"), []byte("  opa \nignored\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty"), []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	src := config.FileSource{Dir: dir}
	ctx := context.Background()

	got, err := src.Get(ctx, "mongodb_username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "opa" {
		t.Errorf("expected first trimmed line %q, got %q", "opa", got)
	}

	if _, err := src.Get(ctx, "missing"); !errors.Is(err, config.ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound for missing file, got %v", err)
	}
	if _, err := src.Get(ctx, "empty"); !errors.Is(err, config.ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound for empty file, got %v", err)
	}
}

// go test -v --run ^TestLiteralCredentials$
func TestLiteralCredentials(t *testing.T) {
	cfg := config.SecretsConfig{
		Source:      "literal",
		Username:    "opa",
		Password:    "s3cret",
		UsernameKey: "mongodb_username",
		PasswordKey: "mongodb_password",
	}

	src, err := config.NewSecretSource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, password, err := cfg.Credentials(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != "opa" || password != "s3cret" {
		t.Errorf("unexpected credentials: %s/%s", user, password)
	}
}

type fakeParameterGetter struct {
	values map[string]string
	names  []string
}

func (f *fakeParameterGetter) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.names = append(f.names, aws.ToString(in.Name))
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("expected decryption")
	}
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return &ssm.GetParameterOutput{}, nil
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(v)}}, nil
}

// go test -v --run ^TestSSMSource$
func TestSSMSource(t *testing.T) {
	getter := &fakeParameterGetter{values: map[string]string{"/opa/mongodb_password": "from-ssm"}}
	src := config.NewSSMSource(getter)

	got, err := src.Get(context.Background(), "/opa/mongodb_password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-ssm" {
		t.Errorf("expected from-ssm, got %q", got)
	}

	if _, err := src.Get(context.Background(), "/opa/unknown"); !errors.Is(err, config.ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
	if len(getter.names) != 2 {
		t.Errorf("expected 2 lookups, got %d", len(getter.names))
	}
}
