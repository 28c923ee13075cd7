package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"royale-tracker/internal/config"
	"royale-tracker/internal/constants"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"
)

var (
	ErrRateLimited     = errors.New("upstream rate limit exceeded")
	ErrInvalidResponse = errors.New("invalid upstream response")
)

type Client struct {
	token    string
	baseURL  string
	client   *fasthttp.Client
	validate *validator.Validate
	statsMu  sync.RWMutex
	stats    RequestStats
}

type RequestStats struct {
	Requests      int       `json:"requests"`
	Failures      int       `json:"failures"`
	LastStatus    int       `json:"last_status"`
	LastRequestAt time.Time `json:"last_request_at"`
}

func NewClient(cfg *config.Config) *Client {
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = constants.DefaultAPIBaseURL
	}
	return &Client{
		token:   cfg.APIToken,
		baseURL: baseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     4,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		validate: validator.New(),
	}
}

func (c *Client) Stats() RequestStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

func (c *Client) recordRequest(status int, failed bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.Requests++
	if failed {
		c.stats.Failures++
	}
	c.stats.LastStatus = status
	c.stats.LastRequestAt = time.Now()
}

// GetCards returns the card catalog: regular cards in Items, tower troops in SupportItems.
func (c *Client) GetCards(ctx context.Context) (*CardsResponse, error) {
	resp, err := doRequest[CardsResponse](ctx, c, c.baseURL+"/cards")
	if err != nil {
		return nil, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: cards: %v", ErrInvalidResponse, err)
	}
	return resp, nil
}

// GetBattleLog returns the most recent battles of a player, newest first.
func (c *Client) GetBattleLog(ctx context.Context, tag string) ([]Battle, error) {
	endpoint := fmt.Sprintf("%s/players/%s/battlelog", c.baseURL, url.PathEscape(tag))
	resp, err := doRequest[[]Battle](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	battles := *resp
	for i := range battles {
		if err := c.validateBattle(&battles[i]); err != nil {
			return nil, fmt.Errorf("%w: battle log of %s, entry %d: %v", ErrInvalidResponse, tag, i, err)
		}
	}
	return battles, nil
}

func (c *Client) validateBattle(b *Battle) error {
	if b.BattleTime.IsZero() {
		return errors.New("battleTime is required")
	}
	return c.validate.Struct(b)
}

func doRequest[T any](ctx context.Context, client *Client, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+client.token)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := client.client.DoDeadline(req, resp, deadline); err != nil {
		client.recordRequest(0, true)
		return nil, fmt.Errorf("request %s: %w", url, err)
	}

	status := resp.StatusCode()
	client.recordRequest(status, status != fasthttp.StatusOK)

	if status == fasthttp.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", status)
	}

	var result T
	if err := sonic.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

const compactTimeLayout = "20060102T150405.000Z"

// CompactTime decodes the API's basic ISO-8601 timestamps, e.g. 20250908T071045.000Z.
type CompactTime struct {
	time.Time
}

func (t *CompactTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("compact time: expected string, got %s", data)
	}
	parsed, err := time.Parse(compactTimeLayout, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("compact time: %w", err)
	}
	t.Time = parsed.UTC()
	return nil
}

func (t CompactTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(compactTimeLayout) + `"`), nil
}

type IconURLs struct {
	Medium          string `json:"medium" validate:"omitempty,url"`
	EvolutionMedium string `json:"evolutionMedium,omitempty" validate:"omitempty,url"`
}

type CardItem struct {
	ID                int64    `json:"id" validate:"gt=0"`
	Name              string   `json:"name" validate:"required"`
	Rarity            string   `json:"rarity"`
	MaxLevel          int      `json:"maxLevel" validate:"gte=0"`
	ElixirCost        *int     `json:"elixirCost,omitempty" validate:"omitempty,gte=0"`
	MaxEvolutionLevel int      `json:"maxEvolutionLevel,omitempty" validate:"gte=0"`
	IconURLs          IconURLs `json:"iconUrls"`
}

func (c CardItem) HasEvolution() bool {
	return c.MaxEvolutionLevel > 0
}

type CardsResponse struct {
	Items        []CardItem `json:"items" validate:"dive"`
	SupportItems []CardItem `json:"supportItems" validate:"dive"`
}

// CardRef is a card as played inside a battle.
type CardRef struct {
	ID             int64  `json:"id" validate:"gt=0"`
	Name           string `json:"name"`
	Level          int    `json:"level"`
	EvolutionLevel int    `json:"evolutionLevel,omitempty" validate:"gte=0"`
}

func (c CardRef) IsEvolution() bool {
	return c.EvolutionLevel > 0
}

type PlayerBattleData struct {
	Tag              string    `json:"tag" validate:"required"`
	Name             string    `json:"name"`
	Cards            []CardRef `json:"cards" validate:"dive"`
	SupportCards     []CardRef `json:"supportCards" validate:"dive"`
	Crowns           int       `json:"crowns" validate:"gte=0"`
	StartingTrophies *int      `json:"startingTrophies,omitempty" validate:"omitempty,gt=0"`
}

type GameMode struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"required"`
}

type Battle struct {
	Type       string             `json:"type"`
	BattleTime CompactTime        `json:"battleTime"`
	GameMode   GameMode           `json:"gameMode"`
	Team       []PlayerBattleData `json:"team" validate:"dive"`
	Opponent   []PlayerBattleData `json:"opponent" validate:"dive"`
}

// ParticipantTags lists the tags of both sides, team first.
func (b Battle) ParticipantTags() []string {
	tags := make([]string, 0, len(b.Team)+len(b.Opponent))
	for _, p := range b.Team {
		tags = append(tags, p.Tag)
	}
	for _, p := range b.Opponent {
		tags = append(tags, p.Tag)
	}
	return tags
}
