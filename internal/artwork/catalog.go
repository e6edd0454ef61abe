package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/genricoloni/tilesync/internal/fetcher"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	deezerAPI = "https://api.deezer.com"
	itunesAPI = "https://itunes.apple.com"
)

// Catalog looks up artwork URLs in public music catalogs.
// Artist pictures come from Deezer, album covers from the iTunes Search API.
type Catalog struct {
	logger    *zap.Logger
	client    *retryablehttp.Client
	deezerURL string
	itunesURL string
}

// NewCatalog creates a catalog client against the public Deezer and iTunes endpoints
func NewCatalog(logger *zap.Logger, client *retryablehttp.Client) *Catalog {
	return &Catalog{
		logger:    logger,
		client:    client,
		deezerURL: deezerAPI,
		itunesURL: itunesAPI,
	}
}

// ArtistImage returns the URL of the best match's artist picture, or "" when there is none
func (c *Catalog) ArtistImage(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(c.deezerURL + "/search/artist")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	var result struct {
		Data []struct {
			Name       string `json:"name"`
			PictureXL  string `json:"picture_xl"`
			PictureBig string `json:"picture_big"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, u.String(), &result); err != nil {
		return "", fmt.Errorf("deezer artist search: %w", err)
	}

	if len(result.Data) == 0 {
		c.logger.Debug("No artist match", zap.String("query", query))
		return "", nil
	}

	item := result.Data[0]
	for _, picture := range []string{item.PictureXL, item.PictureBig} {
		if picture != "" && !isPlaceholder(picture) {
			return picture, nil
		}
	}
	return "", nil
}

// isPlaceholder reports Deezer's generic picture for artists without one
func isPlaceholder(url string) bool {
	return strings.Contains(url, "/artist//") || strings.Contains(url, "d-artist")
}

// AlbumCover returns the URL of the best match's album cover, or "" when there is none
func (c *Catalog) AlbumCover(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(c.itunesURL + "/search")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("term", query)
	q.Set("media", "music")
	q.Set("entity", "album")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	var result struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			CollectionName string `json:"collectionName"`
			ArtworkURL100  string `json:"artworkUrl100"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, u.String(), &result); err != nil {
		return "", fmt.Errorf("itunes album search: %w", err)
	}

	if result.ResultCount == 0 || len(result.Results) == 0 {
		c.logger.Debug("No album match", zap.String("query", query))
		return "", nil
	}

	// The 100px thumbnail URL also serves larger renditions
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1), nil
}

func (c *Catalog) getJSON(ctx context.Context, url string, v any) error {
	req, err := fetcher.NewRequest(ctx, url)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
