package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
	"github.com/DigiBugCat/yt-cli/pkg/httpclient"
)

// Client lists channel videos from the platform's published RSS feed.
// This is a metadata-only path: no downloader binary is involved.
type Client struct {
	http   *httpclient.HTTPClient
	parser *gofeed.Parser
}

// NewClient creates a feeds client.
func NewClient() *Client {
	return &Client{
		http:   httpclient.NewClient(httpclient.BrowserClient),
		parser: gofeed.NewParser(),
	}
}

// ChannelVideos lists the latest videos of a channel. The channel reference
// may be a channel URL, an @handle, or a bare channel id; handles are
// resolved to the canonical channel id via the channel page.
func (c *Client) ChannelVideos(ctx context.Context, channel string, limit int) ([]domain.PlaylistEntry, error) {
	channelID, err := c.ResolveChannelID(ctx, channel)
	if err != nil {
		return nil, err
	}

	feedURL := FeedURL(channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch channel feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch channel feed: status %d", resp.StatusCode)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse channel feed: %w", err)
	}

	count := len(feed.Items)
	if limit > 0 && count > limit {
		count = limit
	}

	entries := make([]domain.PlaylistEntry, 0, count)
	for _, item := range feed.Items[:count] {
		entry := domain.PlaylistEntry{
			VideoID:   videoIDFromGUID(item.GUID),
			Title:     item.Title,
			URL:       item.Link,
			Channel:   feed.Title,
			ChannelID: channelID,
		}
		if item.PublishedParsed != nil {
			entry.UploadDate = item.PublishedParsed.Format("20060102")
		}
		if entry.VideoID == "" && item.Link != "" {
			if i := strings.Index(item.Link, "v="); i >= 0 {
				entry.VideoID = item.Link[i+2:]
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FeedURL returns the RSS feed endpoint for a channel id.
func FeedURL(channelID string) string {
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + channelID
}

// ResolveChannelID turns a channel reference into the canonical channel id.
// Bare ids ("UC...") pass through; handles and channel URLs are resolved by
// fetching the channel page and reading its identity markup.
func (c *Client) ResolveChannelID(ctx context.Context, channel string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", fmt.Errorf("empty channel reference")
	}
	if strings.HasPrefix(channel, "UC") && !strings.Contains(channel, "/") {
		return channel, nil
	}
	if id, ok := channelIDFromURL(channel); ok {
		return id, nil
	}

	pageURL := channelPageURL(channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch channel page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch channel page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse channel page: %w", err)
	}
	id := ChannelIDFromDocument(doc)
	if id == "" {
		return "", fmt.Errorf("channel id not found on page %s", pageURL)
	}
	return id, nil
}

// ChannelIDFromDocument extracts the canonical channel id from channel page
// markup: the itemprop identifier meta tag, falling back to the canonical
// link.
func ChannelIDFromDocument(doc *goquery.Document) string {
	if id, ok := doc.Find(`meta[itemprop="identifier"]`).Attr("content"); ok && id != "" {
		return id
	}
	if id, ok := doc.Find(`meta[itemprop="channelId"]`).Attr("content"); ok && id != "" {
		return id
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if id, found := channelIDFromURL(href); found {
			return id
		}
	}
	return ""
}

// channelIDFromURL pulls the id out of a /channel/UC... URL.
func channelIDFromURL(raw string) (string, bool) {
	i := strings.Index(raw, "/channel/")
	if i < 0 {
		return "", false
	}
	id := raw[i+len("/channel/"):]
	if j := strings.IndexAny(id, "/?#"); j >= 0 {
		id = id[:j]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// channelPageURL normalizes a handle or partial URL to a fetchable page.
func channelPageURL(channel string) string {
	if strings.HasPrefix(channel, "http://") || strings.HasPrefix(channel, "https://") {
		return channel
	}
	if strings.HasPrefix(channel, "@") {
		return "https://www.youtube.com/" + channel
	}
	return "https://www.youtube.com/" + channel
}

// videoIDFromGUID strips the feed's "yt:video:" GUID prefix.
func videoIDFromGUID(guid string) string {
	if i := strings.LastIndex(guid, ":"); i >= 0 {
		return guid[i+1:]
	}
	return guid
}
