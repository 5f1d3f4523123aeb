// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package directory merges locally stored communities and resources with
// communities found on external platforms (Discord, Slack, Reddit).
//
// Platform searches run concurrently and are best-effort: a failing backend
// contributes no results and is reported in SearchResult.BackendErrors.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/store"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Collection names.
const (
	CommunitiesCollection = "communities"
	JoinsCollection       = "community_joins"
	ResourcesCollection   = "resources"
	SavedCollection       = "saved_resources"
)

var (
	ErrNotMember       = errors.New("not a member")
	ErrUnknownPlatform = errors.New("platform not available")
)

// Backend searches and joins communities on one external platform.
type Backend interface {
	Name() string
	Platform() types.Platform
	Search(ctx context.Context, query string) ([]types.Listing, error)

	// RequestJoin returns an invite URL for the community; empty when the
	// platform offers none.
	RequestJoin(ctx context.Context, id string) (string, error)
}

// Recorder receives per-backend failure counts. internal/metrics implements it.
type Recorder interface {
	BackendFailed(backend string)
}

// Sort orders for communities and resources.
const (
	SortMembers   = "members"
	SortRecent    = "recent"
	SortName      = "name"
	SortDownloads = "downloads"
	SortRating    = "rating"
)

// Filter selects communities.
type Filter struct {
	Text     string         `json:"text" form:"q"`
	Platform types.Platform `json:"platform" form:"platform"`
	Topic    string         `json:"topic" form:"topic"`
	Sort     string         `json:"sort" form:"sort"`
}

// SearchResult is the merged community listing.
type SearchResult struct {
	Listings      []types.Listing `json:"listings"`
	BackendErrors []string        `json:"backend_errors,omitempty"`
}

// ResourceFilter selects resources.
type ResourceFilter struct {
	Text     string `json:"text" form:"q"`
	Type     string `json:"type" form:"type"`
	Category string `json:"category" form:"category"`
	Sort     string `json:"sort" form:"sort"`
}

// Directory serves communities and resources.
type Directory struct {
	store    store.Collections
	backends []Backend
	ledger   *ledger.Ledger
	recorder Recorder
	logger   *zap.Logger
	clock    func() time.Time
}

// New returns a directory over s. l may be nil, in which case no
// achievements are awarded.
func New(s store.Collections, backends []Backend, l *ledger.Ledger, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{store: s, backends: backends, ledger: l, logger: logger, clock: time.Now}
}

// SetRecorder sets the metrics recorder.
func (d *Directory) SetRecorder(r Recorder) { d.recorder = r }

// Backends returns the configured platform backends.
func (d *Directory) Backends() []Backend { return d.backends }

// SearchCommunities merges local custom communities with every matching
// platform backend, then filters and sorts the union. Backend failures and
// panics never fail the search.
func (d *Directory) SearchCommunities(ctx context.Context, f Filter) (SearchResult, error) {
	if f.Platform != "" && !f.Platform.Valid() {
		return SearchResult{}, fmt.Errorf("%q: %w", f.Platform, ErrUnknownPlatform)
	}

	var all []types.Listing
	if f.Platform == "" || f.Platform == types.PlatformCustom {
		local, err := d.localCommunities(ctx, f)
		if err != nil {
			return SearchResult{}, err
		}
		all = append(all, local...)
	}

	var backends []Backend
	for _, b := range d.backends {
		if f.Platform == "" || b.Platform() == f.Platform {
			backends = append(backends, b)
		}
	}
	remote, backendErrors := d.fanOut(ctx, f.Text, backends)
	all = append(all, remote...)

	out := []types.Listing{}
	for _, l := range all {
		if matchesListing(l, f) {
			out = append(out, l)
		}
	}
	sortListings(out, f.Sort)
	return SearchResult{Listings: out, BackendErrors: backendErrors}, nil
}

// fanOut queries every backend in its own goroutine and joins them.
func (d *Directory) fanOut(ctx context.Context, query string, backends []Backend) ([]types.Listing, []string) {
	type backendResult struct {
		listings []types.Listing
		err      error
		name     string
	}

	ch := make(chan backendResult, len(backends))
	var wg sync.WaitGroup
	for _, b := range backends {
		wg.Add(1)
		go func(b Backend) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					ch <- backendResult{err: fmt.Errorf("panic: %v", r), name: b.Name()}
				}
			}()
			listings, err := b.Search(ctx, query)
			ch <- backendResult{listings: listings, err: err, name: b.Name()}
		}(b)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.Listing
	var backendErrors []string
	for br := range ch {
		if br.err != nil {
			backendErrors = append(backendErrors, fmt.Sprintf("%s: %v", br.name, br.err))
			d.logger.Warn("directory backend failed", zap.String("backend", br.name), zap.Error(br.err))
			if d.recorder != nil {
				d.recorder.BackendFailed(br.name)
			}
			continue
		}
		for _, l := range br.listings {
			if l.Source == "" {
				l.Source = br.name
			}
			all = append(all, l)
		}
	}
	sort.Strings(backendErrors)
	return all, backendErrors
}

func (d *Directory) localCommunities(ctx context.Context, f Filter) ([]types.Listing, error) {
	q := store.Query{}
	if f.Topic != "" {
		q.Where = append(q.Where, store.Contains("topics", f.Topic))
	}
	communities, err := store.QueryAs[types.Community](ctx, d.store, CommunitiesCollection, q)
	if err != nil {
		return nil, fmt.Errorf("listing communities: %w", err)
	}
	out := make([]types.Listing, 0, len(communities))
	for _, c := range communities {
		out = append(out, types.Listing{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Platform:    types.PlatformCustom,
			MemberCount: len(c.Members),
			Topics:      c.Topics,
			URL:         c.URL,
			Source:      "local",
			CreatedAt:   c.CreatedAt,
		})
	}
	return out, nil
}

func matchesListing(l types.Listing, f Filter) bool {
	if f.Platform != "" && l.Platform != f.Platform {
		return false
	}
	if f.Topic != "" {
		found := false
		for _, t := range l.Topics {
			if strings.EqualFold(t, f.Topic) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" && l.Source == "local" {
		return strings.Contains(strings.ToLower(l.Name), text) ||
			strings.Contains(strings.ToLower(l.Description), text)
	}
	return true
}

func sortListings(ls []types.Listing, by string) {
	switch by {
	case SortRecent:
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].CreatedAt.After(ls[j].CreatedAt) })
	case SortName:
		sort.SliceStable(ls, func(i, j int) bool { return strings.ToLower(ls[i].Name) < strings.ToLower(ls[j].Name) })
	default:
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].MemberCount > ls[j].MemberCount })
	}
}

// NewCommunity holds the fields of a custom community.
type NewCommunity struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
	URL         string   `json:"url"`
}

// CreateCommunity stores a custom community with its creator as the first
// member.
func (d *Directory) CreateCommunity(ctx context.Context, sess session.Session, nc NewCommunity) (types.Community, error) {
	user, err := sess.Require()
	if err != nil {
		return types.Community{}, err
	}
	if strings.TrimSpace(nc.Name) == "" {
		return types.Community{}, fmt.Errorf("community name is empty: %w", types.ErrInvalidInput)
	}
	c := types.Community{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(nc.Name),
		Description: nc.Description,
		Platform:    types.PlatformCustom,
		Members:     []string{user.ID},
		MemberCount: 1,
		Topics:      nc.Topics,
		CreatorID:   user.ID,
		URL:         nc.URL,
		CreatedAt:   d.clock().UTC(),
	}
	if c.Topics == nil {
		c.Topics = []string{}
	}
	if _, err := d.store.Create(ctx, CommunitiesCollection, store.Doc{ID: c.ID, Owner: user.ID, Body: c}); err != nil {
		return types.Community{}, fmt.Errorf("creating community: %w", err)
	}
	return c, nil
}

// GetCommunity returns a custom community.
func (d *Directory) GetCommunity(ctx context.Context, id string) (types.Community, error) {
	c, err := store.GetAs[types.Community](ctx, d.store, CommunitiesCollection, id)
	if err != nil {
		return types.Community{}, err
	}
	c.MemberCount = len(c.Members)
	return c, nil
}

// JoinResult reports the outcome of a join.
type JoinResult struct {
	Join      types.CommunityJoin `json:"join"`
	Community *types.Community    `json:"community,omitempty"`

	// Joined is false when the user was already a member.
	Joined bool `json:"joined"`
}

// JoinCommunity joins a custom community or requests an invite to a
// platform community. Custom membership is authoritative and idempotent.
// Platform joins only record an audit entry; the invite itself is not
// verified.
func (d *Directory) JoinCommunity(ctx context.Context, sess session.Session, platform types.Platform, id string) (JoinResult, error) {
	user, err := sess.Require()
	if err != nil {
		return JoinResult{}, err
	}
	if platform == types.PlatformCustom {
		return d.joinCustom(ctx, user, id)
	}

	var backend Backend
	for _, b := range d.backends {
		if b.Platform() == platform {
			backend = b
			break
		}
	}
	if backend == nil {
		return JoinResult{}, fmt.Errorf("%q: %w", platform, ErrUnknownPlatform)
	}
	invite, err := backend.RequestJoin(ctx, id)
	if err != nil {
		return JoinResult{}, fmt.Errorf("requesting invite from %s: %w", backend.Name(), err)
	}

	join := types.CommunityJoin{
		ID:          fmt.Sprintf("%s:%s:%s", user.ID, platform, id),
		UserID:      user.ID,
		CommunityID: id,
		Platform:    platform,
		InviteURL:   invite,
		JoinedAt:    d.clock().UTC(),
	}
	res := JoinResult{Join: join, Joined: true}
	err = d.store.Atomic(ctx, func(c store.Collections) error {
		existing, err := store.GetAs[types.CommunityJoin](ctx, c, JoinsCollection, join.ID)
		if err == nil {
			res = JoinResult{Join: existing}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := c.Create(ctx, JoinsCollection, store.Doc{ID: join.ID, Owner: user.ID, Body: join}); err != nil {
			return err
		}
		return d.award(ctx, c, user.ID, ledger.KeyCommunityMember)
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("recording join: %w", err)
	}
	return res, nil
}

func (d *Directory) joinCustom(ctx context.Context, user session.User, id string) (JoinResult, error) {
	var res JoinResult
	err := d.store.Atomic(ctx, func(c store.Collections) error {
		community, err := store.GetAs[types.Community](ctx, c, CommunitiesCollection, id)
		if err != nil {
			return err
		}
		joinID := user.ID + ":custom:" + id
		for _, m := range community.Members {
			if m == user.ID {
				community.MemberCount = len(community.Members)
				res.Community = &community
				res.Join, err = store.GetAs[types.CommunityJoin](ctx, c, JoinsCollection, joinID)
				if errors.Is(err, store.ErrNotFound) {
					// Creators are members without a join record.
					res.Join = types.CommunityJoin{UserID: user.ID, CommunityID: id, Platform: types.PlatformCustom, JoinedAt: community.CreatedAt}
					return nil
				}
				return err
			}
		}

		community.Members = append(community.Members, user.ID)
		community.MemberCount = len(community.Members)
		if err := c.Replace(ctx, CommunitiesCollection, id, community); err != nil {
			return err
		}
		res.Join = types.CommunityJoin{
			ID:          joinID,
			UserID:      user.ID,
			CommunityID: id,
			Platform:    types.PlatformCustom,
			InviteURL:   community.URL,
			JoinedAt:    d.clock().UTC(),
		}
		if _, err := c.Create(ctx, JoinsCollection, store.Doc{ID: joinID, Owner: user.ID, Body: res.Join}); err != nil {
			return err
		}
		res.Community = &community
		res.Joined = true
		return d.award(ctx, c, user.ID, ledger.KeyCommunityMember)
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("joining community %s: %w", id, err)
	}
	return res, nil
}

// LeaveCommunity removes the user from a custom community.
func (d *Directory) LeaveCommunity(ctx context.Context, sess session.Session, id string) (types.Community, error) {
	user, err := sess.Require()
	if err != nil {
		return types.Community{}, err
	}
	var community types.Community
	err = d.store.Atomic(ctx, func(c store.Collections) error {
		var err error
		if community, err = store.GetAs[types.Community](ctx, c, CommunitiesCollection, id); err != nil {
			return err
		}
		members := community.Members[:0:0]
		for _, m := range community.Members {
			if m != user.ID {
				members = append(members, m)
			}
		}
		if len(members) == len(community.Members) {
			return ErrNotMember
		}
		community.Members = members
		community.MemberCount = len(members)
		if err := c.Replace(ctx, CommunitiesCollection, id, community); err != nil {
			return err
		}
		err = c.Delete(ctx, JoinsCollection, user.ID+":custom:"+id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return types.Community{}, fmt.Errorf("leaving community %s: %w", id, err)
	}
	return community, nil
}

// Joins lists the user's join records, oldest first.
func (d *Directory) Joins(ctx context.Context, sess session.Session) ([]types.CommunityJoin, error) {
	user, err := sess.Require()
	if err != nil {
		return nil, err
	}
	return store.QueryAs[types.CommunityJoin](ctx, d.store, JoinsCollection, store.Query{Owner: user.ID})
}

// NewResource holds the fields of a resource.
type NewResource struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	URL         string  `json:"url"`
	Rating      float64 `json:"rating"`
}

// CreateResource stores a resource.
func (d *Directory) CreateResource(ctx context.Context, sess session.Session, nr NewResource) (types.Resource, error) {
	user, err := sess.Require()
	if err != nil {
		return types.Resource{}, err
	}
	if strings.TrimSpace(nr.Title) == "" {
		return types.Resource{}, fmt.Errorf("resource title is empty: %w", types.ErrInvalidInput)
	}
	if nr.Rating < 0 || nr.Rating > 5 {
		return types.Resource{}, fmt.Errorf("rating %.1f outside 0..5: %w", nr.Rating, types.ErrInvalidInput)
	}
	r := types.Resource{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(nr.Title),
		Description: nr.Description,
		Type:        nr.Type,
		Category:    nr.Category,
		URL:         nr.URL,
		Rating:      nr.Rating,
		CreatorID:   user.ID,
		CreatedAt:   d.clock().UTC(),
	}
	if _, err := d.store.Create(ctx, ResourcesCollection, store.Doc{ID: r.ID, Owner: user.ID, Body: r}); err != nil {
		return types.Resource{}, fmt.Errorf("creating resource: %w", err)
	}
	return r, nil
}

// SearchResources filters and sorts the stored resources.
func (d *Directory) SearchResources(ctx context.Context, f ResourceFilter) ([]types.Resource, error) {
	q := store.Query{}
	if f.Type != "" {
		q.Where = append(q.Where, store.Eq("type", f.Type))
	}
	if f.Category != "" {
		q.Where = append(q.Where, store.Eq("category", f.Category))
	}
	all, err := store.QueryAs[types.Resource](ctx, d.store, ResourcesCollection, q)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}

	text := strings.ToLower(strings.TrimSpace(f.Text))
	out := []types.Resource{}
	for _, r := range all {
		if text != "" && !strings.Contains(strings.ToLower(r.Title), text) &&
			!strings.Contains(strings.ToLower(r.Description), text) {
			continue
		}
		out = append(out, r)
	}

	switch f.Sort {
	case SortRecent:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Downloads > out[j].Downloads })
	}
	return out, nil
}

// SaveResource saves a resource for the user. Saving counts one download;
// saving again returns the original record and false.
func (d *Directory) SaveResource(ctx context.Context, sess session.Session, resourceID string) (types.SavedResource, bool, error) {
	user, err := sess.Require()
	if err != nil {
		return types.SavedResource{}, false, err
	}
	saved := types.SavedResource{
		ID:         user.ID + ":" + resourceID,
		UserID:     user.ID,
		ResourceID: resourceID,
		SavedAt:    d.clock().UTC(),
	}
	created := true
	err = d.store.Atomic(ctx, func(c store.Collections) error {
		r, err := store.GetAs[types.Resource](ctx, c, ResourcesCollection, resourceID)
		if err != nil {
			return err
		}
		existing, err := store.GetAs[types.SavedResource](ctx, c, SavedCollection, saved.ID)
		if err == nil {
			saved = existing
			created = false
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := c.Create(ctx, SavedCollection, store.Doc{ID: saved.ID, Owner: user.ID, Body: saved}); err != nil {
			return err
		}
		if err := c.Update(ctx, ResourcesCollection, resourceID, map[string]any{"downloads": r.Downloads + 1}); err != nil {
			return err
		}
		return d.award(ctx, c, user.ID, ledger.KeyResourceCollector)
	})
	if err != nil {
		return types.SavedResource{}, false, fmt.Errorf("saving resource %s: %w", resourceID, err)
	}
	return saved, created, nil
}

// SavedResources lists the resources the user saved, oldest save first.
func (d *Directory) SavedResources(ctx context.Context, sess session.Session) ([]types.Resource, error) {
	user, err := sess.Require()
	if err != nil {
		return nil, err
	}
	saved, err := store.QueryAs[types.SavedResource](ctx, d.store, SavedCollection, store.Query{Owner: user.ID})
	if err != nil {
		return nil, err
	}
	out := make([]types.Resource, 0, len(saved))
	for _, s := range saved {
		r, err := store.GetAs[types.Resource](ctx, d.store, ResourcesCollection, s.ResourceID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *Directory) award(ctx context.Context, c store.Collections, userID, key string) error {
	if d.ledger == nil {
		return nil
	}
	a, err := ledger.Achievement(key)
	if err != nil {
		return err
	}
	_, _, err = d.ledger.WithCollections(c).AwardAchievement(ctx, userID, a)
	return err
}
