package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// HTTPClient is an abstraction for making HTTP requests.
// The implementation is usually Go's stdlib http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TrackInfo describes a track resolved by the node.
type TrackInfo struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	Identifier string `json:"identifier"`
	URI        string `json:"uri"`
	IsStream   bool   `json:"isStream"`
	IsSeekable bool   `json:"isSeekable"`
	Position   int64  `json:"position"`
}

// LoadedTrack pairs the opaque playable token with its metadata.
type LoadedTrack struct {
	Track string    `json:"track"`
	Info  TrackInfo `json:"info"`
}

// RestClient talks to a node's REST side-channel. Requests carry the same
// Authorization header as the websocket handshake.
type RestClient struct {
	httpClient HTTPClient
	host       string
	password   string
}

// NewRestClient builds a client for the node's HTTP host. A nil httpClient
// falls back to http.DefaultClient.
func NewRestClient(cfg NodeConfig, httpClient HTTPClient) *RestClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RestClient{
		httpClient: httpClient,
		host:       cfg.HTTPHost,
		password:   cfg.Password,
	}
}

func (c *RestClient) do(ctx context.Context, method, uri string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+uri, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, uri)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// LoadTracks resolves an identifier (URL or search query) into playable
// tracks.
func (c *RestClient) LoadTracks(ctx context.Context, identifier string) ([]LoadedTrack, error) {
	uri := "/loadtracks?identifier=" + url.QueryEscape(identifier)
	data, err := c.do(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	var tracks []LoadedTrack
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to decode loadtracks response: %w", err)
	}
	return tracks, nil
}

// DecodeTrack expands one opaque track token back into its metadata.
func (c *RestClient) DecodeTrack(ctx context.Context, track string) (LoadedTrack, error) {
	uri := "/decodetrack?track=" + url.QueryEscape(track)
	data, err := c.do(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return LoadedTrack{}, err
	}

	var info TrackInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return LoadedTrack{}, fmt.Errorf("failed to decode decodetrack response: %w", err)
	}
	return LoadedTrack{Track: track, Info: info}, nil
}

// DecodeTracks is the batch form of DecodeTrack.
func (c *RestClient) DecodeTracks(ctx context.Context, tracks []string) ([]LoadedTrack, error) {
	body, err := json.Marshal(tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decodetracks body: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/decodetracks", body)
	if err != nil {
		return nil, err
	}

	var decoded []LoadedTrack
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode decodetracks response: %w", err)
	}
	return decoded, nil
}
