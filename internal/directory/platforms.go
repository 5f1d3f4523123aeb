// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package directory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/research-journey/internal/httputil"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Public API roots. Declared as vars so tests can substitute an httptest
// server; PlatformConfig.BaseURL overrides them per deployment.
var (
	redditAPIBase  = "https://www.reddit.com"
	discordAPIBase = "https://discord.com/api/v10"
)

const defaultMaxResults = 25

// NewBackends builds a backend for every enabled platform. Slack has no
// public community search and is only built when a directory BaseURL is
// configured.
func NewBackends(cfg types.DirectoryConfig, client *httputil.Client) []Backend {
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	var out []Backend
	if cfg.Reddit.Enabled {
		out = append(out, &RedditBackend{Client: client, BaseURL: cfg.Reddit.BaseURL, MaxResults: limit})
	}
	if cfg.Discord.Enabled {
		out = append(out, &DiscordBackend{Client: client, BaseURL: cfg.Discord.BaseURL, Token: cfg.Discord.Token, MaxResults: limit})
	}
	if cfg.Slack.Enabled && cfg.Slack.BaseURL != "" {
		out = append(out, &SlackBackend{Client: client, BaseURL: cfg.Slack.BaseURL, Token: cfg.Slack.Token, MaxResults: limit})
	}
	return out
}

func base(configured, fallback string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	return fallback
}

// RedditBackend searches public subreddits.
type RedditBackend struct {
	Client     *httputil.Client
	BaseURL    string
	MaxResults int
}

func (b *RedditBackend) Name() string             { return "reddit" }
func (b *RedditBackend) Platform() types.Platform { return types.PlatformReddit }

type redditResponse struct {
	Data struct {
		Children []struct {
			Data redditSubreddit `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditSubreddit struct {
	DisplayName       string  `json:"display_name"`
	Title             string  `json:"title"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int     `json:"subscribers"`
	URL               string  `json:"url"`
	CreatedUTC        float64 `json:"created_utc"`
}

// Search implements Backend using /subreddits/search.json.
func (b *RedditBackend) Search(ctx context.Context, query string) ([]types.Listing, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(b.MaxResults)},
	}
	reqURL := base(b.BaseURL, redditAPIBase) + "/subreddits/search.json?" + params.Encode()

	var rr redditResponse
	if err := b.Client.GetJSON(ctx, reqURL, nil, &rr); err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}

	out := make([]types.Listing, 0, len(rr.Data.Children))
	for _, c := range rr.Data.Children {
		s := c.Data
		if s.DisplayName == "" {
			continue
		}
		name := s.Title
		if name == "" {
			name = "r/" + s.DisplayName
		}
		out = append(out, types.Listing{
			ID:          s.DisplayName,
			Name:        name,
			Description: s.PublicDescription,
			Platform:    types.PlatformReddit,
			MemberCount: s.Subscribers,
			URL:         b.subredditURL(s.DisplayName),
			Source:      b.Name(),
			CreatedAt:   time.Unix(int64(s.CreatedUTC), 0).UTC(),
		})
	}
	return out, nil
}

// RequestJoin returns the subreddit URL. Subreddits are public; subscribing
// happens on Reddit itself.
func (b *RedditBackend) RequestJoin(_ context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty subreddit name")
	}
	return b.subredditURL(id), nil
}

func (b *RedditBackend) subredditURL(name string) string {
	return base(b.BaseURL, redditAPIBase) + "/r/" + url.PathEscape(name) + "/"
}

// DiscordBackend searches discoverable guilds.
type DiscordBackend struct {
	Client     *httputil.Client
	BaseURL    string
	Token      string
	MaxResults int
}

func (b *DiscordBackend) Name() string             { return "discord" }
func (b *DiscordBackend) Platform() types.Platform { return types.PlatformDiscord }

type discordGuild struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Description            string   `json:"description"`
	ApproximateMemberCount int      `json:"approximate_member_count"`
	Keywords               []string `json:"keywords"`
	VanityURLCode          string   `json:"vanity_url_code"`
}

type discordSearchResponse struct {
	Guilds []discordGuild `json:"guilds"`
}

func (b *DiscordBackend) headers() map[string]string {
	if b.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bot " + b.Token}
}

// Search implements Backend using the guild discovery search.
func (b *DiscordBackend) Search(ctx context.Context, query string) ([]types.Listing, error) {
	params := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(b.MaxResults)},
	}
	reqURL := base(b.BaseURL, discordAPIBase) + "/discoverable-guilds?" + params.Encode()

	var dr discordSearchResponse
	if err := b.Client.GetJSON(ctx, reqURL, b.headers(), &dr); err != nil {
		return nil, fmt.Errorf("discord search: %w", err)
	}

	out := make([]types.Listing, 0, len(dr.Guilds))
	for _, g := range dr.Guilds {
		l := types.Listing{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Platform:    types.PlatformDiscord,
			MemberCount: g.ApproximateMemberCount,
			Topics:      g.Keywords,
			Source:      b.Name(),
			CreatedAt:   snowflakeTime(g.ID),
		}
		if g.VanityURLCode != "" {
			l.URL = "https://discord.gg/" + g.VanityURLCode
		}
		out = append(out, l)
	}
	return out, nil
}

type discordWidget struct {
	InstantInvite string `json:"instant_invite"`
}

// RequestJoin reads the guild widget's instant invite.
func (b *DiscordBackend) RequestJoin(ctx context.Context, id string) (string, error) {
	reqURL := base(b.BaseURL, discordAPIBase) + "/guilds/" + url.PathEscape(id) + "/widget.json"
	var w discordWidget
	if err := b.Client.GetJSON(ctx, reqURL, b.headers(), &w); err != nil {
		return "", fmt.Errorf("discord widget: %w", err)
	}
	return w.InstantInvite, nil
}

// discordEpoch is the first millisecond of 2015, the Discord snowflake epoch.
const discordEpoch = 1420070400000

func snowflakeTime(id string) time.Time {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(n>>22) + discordEpoch).UTC()
}

// SlackBackend queries a Slack community directory service.
//
// GET {base}/communities?query=...&limit=N
// -> {"ok": true, "communities": [{"id", "name", "description", "members", "topics", "join_url", "created"}]}
type SlackBackend struct {
	Client     *httputil.Client
	BaseURL    string
	Token      string
	MaxResults int
}

func (b *SlackBackend) Name() string             { return "slack" }
func (b *SlackBackend) Platform() types.Platform { return types.PlatformSlack }

type slackCommunity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     int      `json:"members"`
	Topics      []string `json:"topics"`
	JoinURL     string   `json:"join_url"`
	Created     int64    `json:"created"`
}

type slackResponse struct {
	OK          bool             `json:"ok"`
	Error       string           `json:"error"`
	Communities []slackCommunity `json:"communities"`
	Community   *slackCommunity  `json:"community"`
}

func (b *SlackBackend) get(ctx context.Context, reqURL string) (slackResponse, error) {
	var headers map[string]string
	if b.Token != "" {
		headers = map[string]string{"Authorization": "Bearer " + b.Token}
	}
	var sr slackResponse
	if err := b.Client.GetJSON(ctx, reqURL, headers, &sr); err != nil {
		return sr, err
	}
	if !sr.OK {
		return sr, fmt.Errorf("slack directory error: %s", sr.Error)
	}
	return sr, nil
}

// Search implements Backend.
func (b *SlackBackend) Search(ctx context.Context, query string) ([]types.Listing, error) {
	params := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(b.MaxResults)},
	}
	sr, err := b.get(ctx, strings.TrimRight(b.BaseURL, "/")+"/communities?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("slack search: %w", err)
	}
	out := make([]types.Listing, 0, len(sr.Communities))
	for _, c := range sr.Communities {
		out = append(out, types.Listing{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Platform:    types.PlatformSlack,
			MemberCount: c.Members,
			Topics:      c.Topics,
			URL:         c.JoinURL,
			Source:      b.Name(),
			CreatedAt:   time.Unix(c.Created, 0).UTC(),
		})
	}
	return out, nil
}

// RequestJoin returns the workspace join link.
func (b *SlackBackend) RequestJoin(ctx context.Context, id string) (string, error) {
	sr, err := b.get(ctx, strings.TrimRight(b.BaseURL, "/")+"/communities/"+url.PathEscape(id))
	if err != nil {
		return "", fmt.Errorf("slack community: %w", err)
	}
	if sr.Community == nil {
		return "", fmt.Errorf("slack community %s not found", id)
	}
	return sr.Community.JoinURL, nil
}
