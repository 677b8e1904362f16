package youtube

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"distill/internal/services"
)

// ListPlaylistItems returns the video ids in a playlist in playlist order,
// stopping after limit ids when limit is positive.
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID string, limit int) ([]string, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "playlist", "playlist id required", nil)
	}

	var ids []string
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("part", "contentDetails")
		params.Set("playlistId", playlistID)
		params.Set("maxResults", strconv.Itoa(c.cfg.ChannelPageSize))
		params.Set("key", c.cfg.APIKey)
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var payload playlistItemsResponse
		if err := c.getJSON(ctx, c.cfg.BaseURL+"/playlistItems", params, "playlist", &payload); err != nil {
			return nil, err
		}
		for _, item := range payload.Items {
			ids = append(ids, item.ContentDetails.VideoID)
			if limit > 0 && len(ids) >= limit {
				return ids, nil
			}
		}
		if payload.NextPageToken == "" {
			return ids, nil
		}
		pageToken = payload.NextPageToken
	}
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// ListChannelUploads returns the most recent upload ids for a channel,
// stopping after limit ids when limit is positive.
func (c *Client) ListChannelUploads(ctx context.Context, channelID string, limit int) ([]string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "channel", "channel id required", nil)
	}

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", channelID)
	params.Set("key", c.cfg.APIKey)

	var payload channelListResponse
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/channels", params, "channel", &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "extract", "channel",
			"channel "+channelID+" does not exist", nil)
	}
	uploads := payload.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return nil, services.Wrap(services.ErrNotFound, "extract", "channel",
			"channel "+channelID+" has no uploads playlist", nil)
	}
	return c.ListPlaylistItems(ctx, uploads, limit)
}

type channelListResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}
