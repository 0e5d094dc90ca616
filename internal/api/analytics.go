package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Analytics fetches the aggregate snapshot for a time range
// (week, month or quarter).
func (c *Client) Analytics(ctx context.Context, timeRange string) (*AnalyticsData, error) {
	query := url.Values{"range": {timeRange}}
	var data AnalyticsData
	if err := c.do(ctx, http.MethodGet, "analytics", query, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// EngagementTrends returns the daily engagement series for the past
// days (capped server-side at 90).
func (c *Client) EngagementTrends(ctx context.Context, days int) ([]EngagementTrend, error) {
	query := url.Values{"days": {strconv.Itoa(days)}}
	var trends []EngagementTrend
	if err := c.do(ctx, http.MethodGet, "analytics/engagement-trends", query, nil, &trends); err != nil {
		return nil, err
	}
	return trends, nil
}

// Recommendations returns AI-generated suggestions for the user.
func (c *Client) Recommendations(ctx context.Context) ([]Recommendation, error) {
	var recs []Recommendation
	if err := c.do(ctx, http.MethodGet, "analytics/recommendations", nil, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
