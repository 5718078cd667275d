package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"member-assist/internal/config"
	"member-assist/internal/integrations/backend"
	"member-assist/internal/integrations/paramstore"
	"member-assist/internal/render"
	"member-assist/internal/repository"
	"member-assist/internal/usecase"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	store    repository.Store
	backend  *backend.Client
	renderer *render.Renderer
	portal   *usecase.Portal
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, portalOpts ...usecase.PortalOption) (*app, error) {
	a := &app{
		cfg:      cfg,
		renderer: render.New(render.WithFileStorageHosts(cfg.FileStorageHosts...)),
	}

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		if awsCfg, err = awsconfig.LoadDefaultConfig(ctx); err != nil {
			return nil, errors.Wrap(err, "load AWS config")
		}
	}

	store, err := a.openStore(awsCfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	var params *paramstore.Client
	if cfg.ParamPrefix != "" {
		if params, err = paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamPrefix); err != nil {
			a.Close()
			return nil, err
		}
	}

	var password usecase.PasswordSource
	if p := cfg.Password(); p != "" {
		password = usecase.StaticPassword(p)
	} else {
		if password, err = paramstore.NewSecret(params, cfg.PasswordParam); err != nil {
			a.Close()
			return nil, err
		}
	}

	clientOpts := []backend.Option{backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout})}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, backend.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)))
	}
	if cfg.TokenParam != "" {
		token, err := paramstore.NewSecret(params, cfg.TokenParam)
		if err != nil {
			a.Close()
			return nil, err
		}
		clientOpts = append(clientOpts, backend.WithToken(token))
	}
	if reg != nil {
		clientOpts = append(clientOpts, backend.WithMetrics(reg))
	}
	if a.backend, err = backend.NewClient(cfg.APIURL, clientOpts...); err != nil {
		a.Close()
		return nil, err
	}

	portalOpts = append([]usecase.PortalOption{usecase.WithPortalRenderer(a.renderer)}, portalOpts...)
	if a.portal, err = usecase.NewPortal(a.store, a.backend, password, portalOpts...); err != nil {
		a.Close()
		return nil, err
	}

	log.Debug().
		Str("api_url", cfg.APIURL).
		Str("store", cfg.Store.Backend).
		Str("mode", cfg.Mode).
		Msg("application wired")
	return a, nil
}

func (a *app) openStore(awsCfg aws.Config) (repository.Store, error) {
	switch a.cfg.Store.Backend {
	case config.StorePebble:
		s, err := repository.OpenPebble(a.cfg.Store.Path, nil)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.StoreDynamoDB:
		return repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), a.cfg.Store.Table, a.cfg.Store.TTL)
	default:
		return repository.NewMemoryStore(), nil
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
