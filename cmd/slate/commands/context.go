package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/davack/slate/internal/config"
	"github.com/davack/slate/internal/engine"
	"github.com/davack/slate/internal/fanout"
	"github.com/davack/slate/internal/identity"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/redis/go-redis/v9"
)

// cmdContext bundles everything a command needs: validated config, a
// connected board client, the current user, and an engine scoped to the
// selected channel.
type cmdContext struct {
	cfg     *config.SlateConfig
	client  *boardstore.Client
	user    identity.User
	channel boardstore.Channel
	engine  *engine.Engine
}

// newCmdContext loads slate.yml, connects to the board, resolves the current
// user and builds an engine for the selected channel. The engine is primed
// with the current snapshot so validations run against live state.
func newCmdContext(ctx context.Context) (*cmdContext, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	channel := boardstore.Channel(cfg.Channel)
	if channelFlag != "" {
		channel = boardstore.Channel(channelFlag)
		if err := channel.Validate(); err != nil {
			return nil, err
		}
	}

	client, err := boardstore.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Project)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("cannot reach document store at %s: %w", cfg.Redis.Addr, err)
	}

	user, err := resolveUser(cfg)
	if err != nil {
		client.Close()
		return nil, err
	}

	eng := engine.New(client, channel, user, fanout.New(client, 0), engineOptions(cfg), engine.Hooks{})
	if err := eng.Prime(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to load channel state: %w", err)
	}

	return &cmdContext{
		cfg:     cfg,
		client:  client,
		user:    user,
		channel: channel,
		engine:  eng,
	}, nil
}

func (c *cmdContext) Close() {
	c.client.Close()
}

// resolveUser picks the identity provider the config calls for: token
// verification when a token is present, static otherwise.
func resolveUser(cfg *config.SlateConfig) (identity.User, error) {
	var provider identity.Provider
	if cfg.User.Token != "" {
		p, err := identity.FromToken(cfg.User.Token, []byte(cfg.User.AuthSecret))
		if err != nil {
			return identity.User{}, fmt.Errorf("failed to verify user token: %w", err)
		}
		provider = p
	} else {
		provider = identity.Static{User: identity.User{ID: cfg.User.ID, Name: cfg.User.Name}}
	}

	return provider.CurrentUser()
}

func engineOptions(cfg *config.SlateConfig) engine.Options {
	return engine.Options{
		Debounce:      time.Duration(*cfg.Engine.DebounceMs) * time.Millisecond,
		Settle:        time.Duration(*cfg.Engine.SettleMs) * time.Millisecond,
		ApprovalGuard: time.Duration(*cfg.Engine.ApprovalGuardMs) * time.Millisecond,
	}
}
