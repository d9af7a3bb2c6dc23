package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/claudecode/internal/auth"
	"github.com/zjrosen/claudecode/internal/cachemanager"
	"github.com/zjrosen/claudecode/internal/claude"
	"github.com/zjrosen/claudecode/internal/config"
	"github.com/zjrosen/claudecode/internal/infrastructure/sqlite"
	"github.com/zjrosen/claudecode/internal/log"
	"github.com/zjrosen/claudecode/internal/paths"
	"github.com/zjrosen/claudecode/internal/session"
	"github.com/zjrosen/claudecode/internal/tracing"
)

// engine bundles the collaborators every command builds from config.
type engine struct {
	cfg     config.Config
	opts    []claude.ClientOption
	client  *claude.Client
	tracing *tracing.Provider
	db      *sqlite.DB
}

// newEngine wires the client with tracing, the version cache and, when
// enabled, OAuth refresh. withStorage opens the conversation database.
func newEngine(c config.Config, withStorage bool) (*engine, error) {
	provider, err := tracing.NewProvider(c.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	opts := []claude.ClientOption{
		claude.WithTracer(provider.Tracer()),
		claude.WithVersionCache(cachemanager.NewInMemoryCacheManager[string, string](
			"claude-version", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)),
	}
	if c.OAuth.Enabled {
		r, err := newRefresher(c.OAuth)
		if err != nil {
			_ = provider.Shutdown(context.Background())
			return nil, err
		}
		opts = append(opts, claude.WithRefresher(r))
	}

	e := &engine{
		cfg:     c,
		opts:    opts,
		client:  claude.New(c.Claude.Options(), opts...),
		tracing: provider,
	}

	if withStorage && c.Storage.Enabled {
		db, err := sqlite.NewDB(c.Storage.Path)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		e.db = db
	}
	return e, nil
}

func newRefresher(o config.OAuthConfig) (*auth.Refresher, error) {
	path := o.CredentialsPath
	if path == "" {
		var err error
		path, err = auth.DefaultCredentialsPath()
		if err != nil {
			return nil, fmt.Errorf("locating credentials: %w", err)
		}
	}
	log.Debug(log.CatAuth, "oauth refresh enabled", "credentials", path)
	return auth.NewRefresher(auth.NewFileStore(path),
		auth.WithTokenURL(o.TokenURL),
		auth.WithClientID(o.ClientID),
		auth.WithSeed(o.Seed()),
	), nil
}

// store returns the conversation store, or nil when storage is off.
func (e *engine) store() session.Store {
	if e.db == nil {
		return nil
	}
	return e.db.SessionStore()
}

// sessionOptions tags new conversations with the project and model.
func (e *engine) sessionOptions() []session.Option {
	project := paths.ProjectRoot(e.cfg.Claude.WorkingDirectory)
	opts := []session.Option{session.WithMetadata(project, e.cfg.Claude.Model)}
	if s := e.store(); s != nil {
		opts = append(opts, session.WithStore(s))
	}
	return opts
}

// newSession starts a conversation, or resumes guid from the store.
func (e *engine) newSession(ctx context.Context, guid string) (*session.Session, error) {
	if guid == "" {
		return session.New(e.client, e.sessionOptions()...), nil
	}
	s := e.store()
	if s == nil {
		return nil, fmt.Errorf("cannot resume %s: storage is disabled", guid)
	}
	rec, err := s.Get(ctx, guid)
	if err != nil {
		return nil, err
	}
	return session.Resume(e.client, rec, session.WithStore(s)), nil
}

// Close flushes traces and closes the database.
func (e *engine) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tracing.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatConfig, "flushing traces", err)
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.ErrorErr(log.CatDB, "closing session store", err)
		}
	}
}
