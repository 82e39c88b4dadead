package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"purchases/internal/clients"
	"purchases/internal/domain"
)

type Client struct {
	base *clients.Client
}

func NewClient(base *clients.Client) *Client {
	return &Client{base: base}
}

type profilePayload struct {
	Username       string          `json:"username"`
	ArtisticName   string          `json:"artisticName"`
	Name           string          `json:"name"`
	Pfp            string          `json:"pfp"`
	ProfilePicture string          `json:"profilePicture"`
	Data           *profilePayload `json:"data"`
}

// GetSellerByUsername resolves the public profile of a user.
func (c *Client) GetSellerByUsername(ctx context.Context, username string) clients.Result[domain.Profile] {
	resp, err := c.base.Do(ctx, clients.Request{
		Method: http.MethodGet,
		Path:   "/api/artist/public/" + url.PathEscape(username),
	})
	r := clients.Classify[domain.Profile](resp, err, clients.Read)
	if !r.IsOK() {
		return r
	}

	var p profilePayload
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return clients.Malformed[domain.Profile](resp, "invalid profile response: "+err.Error())
	}
	if p.Data != nil {
		p = *p.Data
	}
	if p.Username == "" {
		return clients.Malformed[domain.Profile](resp, "profile response has no username")
	}

	name := p.ArtisticName
	if name == "" {
		name = p.Name
	}
	pfp := p.Pfp
	if pfp == "" {
		pfp = p.ProfilePicture
	}

	r.Value = domain.Profile{Username: p.Username, Name: name, Pfp: pfp}
	return r
}
