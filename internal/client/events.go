package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"feedsync/internal/logging"
)

var ErrUnsuccessful = errors.New("read api reported failure")

// FetchEvents looks up events of one feed by id.
func (c *FeedClient) FetchEvents(ctx context.Context, feed string, ids []string, limit int) ([]EventItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = len(ids)
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("limit", strconv.Itoa(limit))

	data, err := c.get(ctx, c.endpoints.EventsURL(feed), query)
	if err != nil {
		return nil, err
	}
	var resp fetchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("invalid events JSON",
			logging.Field("feed", feed),
			logging.Field("error", err),
			logging.Field("response", logging.FormatPayload(data)))
		return nil, fmt.Errorf("decode %s lookup: %w", feed, err)
	}
	if !resp.Success {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Error)
		}
		return nil, ErrUnsuccessful
	}
	return resp.Data.Items, nil
}

// ListEvents reads one page of a feed, newest first. An empty cursor starts
// at the head.
func (c *FeedClient) ListEvents(ctx context.Context, feed string, cursor string, limit int) (EventPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	data, err := c.get(ctx, c.endpoints.EventsURL(feed), query)
	if err != nil {
		return EventPage{}, err
	}
	var page EventPage
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Warn("invalid feed page JSON",
			logging.Field("feed", feed),
			logging.Field("error", err),
			logging.Field("response", logging.FormatPayload(data)))
		return EventPage{}, fmt.Errorf("decode %s page: %w", feed, err)
	}
	c.logger.Debug("feed page loaded",
		logging.Field("feed", feed),
		logging.Field("count", len(page.Items)),
		logging.Field("has_more", page.Pagination.HasMore))
	return page, nil
}

// MarkRead flags notifications as read for the signed-in user.
func (c *FeedClient) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body, err := json.Marshal(markReadPayload{IDs: ids})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoints.MarkReadURL, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debugf("PUT %s -> %s", c.endpoints.MarkReadURL, resp.Status)
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Warn("mark read rejected",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatPayload(data)))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

func (c *FeedClient) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	target := endpoint
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("GET %s -> %s", target, resp.Status)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("read api request failed",
			logging.Field("status", resp.Status),
			logging.Field("content_type", resp.Header.Get("Content-Type")),
			logging.Field("response", logging.FormatPayload(data)))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return data, nil
}

func (c *FeedClient) authorize(req *http.Request) {
	if token := strings.TrimSpace(c.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
