// Package paramstore reads member-assist secrets from AWS SSM Parameter Store.
package paramstore

import (
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
)

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter fetches one decrypted parameter by its name under the prefix.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client resolves parameter names relative to a prefix such as
// "/member-assist/prod".
type Client struct {
	api    ssmAPI
	prefix string
}

func New(api ssmAPI, prefix string) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || !strings.HasPrefix(prefix, "/") {
		return nil, errors.Errorf("paramstore: prefix %q must be an absolute path", prefix)
	}
	return &Client{api: api, prefix: strings.TrimRight(prefix, "/")}, nil
}

// Name returns the full parameter path for name.
func (c *Client) Name(name string) string {
	return path.Join(c.prefix, name)
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	full := c.Name(name)

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &full,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", errors.Wrapf(err, "paramstore: get parameter %q", full)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.Errorf("paramstore: parameter %q missing value", full)
	}
	return *out.Parameter.Value, nil
}

func boolPtr(b bool) *bool { return &b }
