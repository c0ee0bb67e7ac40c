package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"readlater/pkg/domain"
	"readlater/pkg/store"
	"readlater/services/reader/internal/identity"
)

// Config holds runtime configuration for the reading-list core.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Identity    *identity.Client
}

// App owns the reading-list use cases over the content store and the
// identity service.
type App struct {
	store    store.Store
	identity *identity.Client
}

// New constructs the application with database storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	return &App{
		store:    dataStore,
		identity: cfg.Identity,
	}, nil
}

// Identity exposes the identity client for the HTTP layer.
func (a *App) Identity() *identity.Client {
	return a.identity
}

// ListContent returns the profile's rows sorted by creation time,
// newest first.
func (a *App) ListContent(profileID string) ([]domain.Content, error) {
	items, err := a.store.ListContentByProfile(profileID)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Overview resolves the profile behind the access token and its content
// list in parallel. The identity lookup stays authoritative so revoked
// tokens fail here even after signature checks pass.
func (a *App) Overview(ctx context.Context, accessToken, profileID string) (domain.User, []domain.Content, error) {
	var (
		user  domain.User
		items []domain.Content
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := a.identity.Me(accessToken)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		list, err := a.ListContent(profileID)
		if err != nil {
			return err
		}
		items = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.User{}, nil, err
	}
	return user, items, nil
}

// CreateContent saves a new unchecked row for the profile.
func (a *App) CreateContent(profileID, url string) (domain.Content, error) {
	if len(url) == 0 {
		return domain.Content{}, &FieldError{Field: "url", Message: "Link is required"}
	}
	content := domain.Content{
		ID:        uuid.NewString(),
		URL:       url,
		ProfileID: profileID,
		Checked:   false,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateContent(content); err != nil {
		return domain.Content{}, fmt.Errorf("create content: %w", err)
	}
	return content, nil
}

// UpdateContent sets the checked flag on a row the profile owns.
func (a *App) UpdateContent(profileID, id string, checked bool) (domain.Content, error) {
	if id == "" {
		return domain.Content{}, &FieldError{Field: "id", Message: "ID is required"}
	}
	content, ok, err := a.store.SetContentChecked(id, profileID, checked)
	if err != nil {
		return domain.Content{}, fmt.Errorf("update content: %w", err)
	}
	if !ok {
		return domain.Content{}, ErrContentNotFound
	}
	return content, nil
}
