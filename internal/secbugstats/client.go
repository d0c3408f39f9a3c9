// Package secbugstats tracks open security bug counts: it polls the
// Bugzilla REST API by category, records the counts in a MySQL stats
// schema and renders the historical risk index per team.
package secbugstats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Category is one tracked bug category: the stats key it is recorded
// under and the Bugzilla search parameters that select its bugs.
type Category struct {
	Key   string
	Query string
}

// Categories are the tracked queries. Keys match the rows already in
// the stats schema, so they must not change.
var Categories = []Category{
	{"sg_critical", "keywords=sec-critical;keywords_type=allwords;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;classification=Client%20Software;classification=Components"},
	{"sg_high", "keywords=sec-high;keywords_type=allwords;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;classification=Client%20Software;classification=Components"},
	{"sg_moderate", "keywords=sec-moderate;keywords_type=allwords;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;classification=Client%20Software;classification=Components"},
	{"sg_low", "keywords=sec-low;keywords_type=allwords;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;classification=Client%20Software;classification=Components"},
	{"sg_total", "keywords=sec-critical%20sec-high%20sec-moderate%20sec-low;keywords_type=anywords;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;classification=Client%20Software;classification=Components"},
	{"sg_unconfirmed", "bug_status=UNCONFIRMED;field0-0-0=bug_group;type0-0-1=substring;field0-0-1=status_whiteboard;value0-0-2=sec-;classification=Client%20Software;classification=Components;status_whiteboard_type=notregexp;status_whiteboard=sg%3Aneedinfo;field0-0-2=keywords;value0-0-1=[sg%3A;type0-0-0=equals;value0-0-0=core-security;type0-0-2=substring"},
	{"sg_needstriage", "type0-1-0=notsubstring;field0-1-0=keywords;field0-0-0=bug_group;status_whiteboard_type=notregexp;value0-1-0=sec-;status_whiteboard=\\[sg%3A;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;type0-0-0=equals;value0-0-0=core-security"},
	{"sg_investigate", "status_whiteboard=[sg%3Ainvestigat;status_whiteboard_type=allwordssubstr;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED"},
	{"sg_vector", "keywords=sec-vector;keywords_type=allwords;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;classification=Client%20Software;classification=Components"},
	{"sg_needinfo", "status_whiteboard=[sg%3Aneedinfo;status_whiteboard_type=allwordssubstr;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED"},
	{"sg_untouched", "keywords=sec-critical%20sec-high%20sec-moderate%20sec-low;keywords_type=anywords;field0-0-0=days_elapsed;classification=Client%20Software;classification=Components;bug_status=UNCONFIRMED;bug_status=NEW;bug_status=ASSIGNED;bug_status=REOPENED;type0-0-0=greaterthan;value0-0-0=14"},
	{"sg_opened", "field0-0-0=bug_group;type0-0-1=substring;field0-0-1=status_whiteboard;value0-0-2=sec-;chfield=[Bug%20creation];chfieldfrom=-1w;field0-0-2=keywords;value0-0-1=[sg%3A;type0-0-0=equals;value0-0-0=core-security;type0-0-2=substring;classification=Client%20Software;classification=Components"},
	{"sg_closed", "type0-1-0=notsubstring;field0-1-0=keywords;field0-0-0=bug_group;type0-0-1=substring;field0-0-1=status_whiteboard;classification=Client%20Software;classification=Components;value0-0-2=sec-;chfield=resolution;chfieldfrom=-1w;value0-1-0=sec-review;bug_status=RESOLVED;bug_status=VERIFIED;bug_status=CLOSED;field0-0-2=keywords;value0-0-1=[sg%3A;type0-0-0=equals;value0-0-0=core-security;type0-0-2=substring"},
}

// Client queries the Bugzilla REST bug search endpoint.
type Client struct {
	BaseURL    string
	Auth       string
	HTTPClient *http.Client
}

// NewClient returns a client for the given endpoint. auth is the raw
// query fragment appended to every request.
func NewClient(baseURL, auth string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Auth:       auth,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// CountBugs runs one category query and returns the number of bugs it
// matched plus the raw response body for archiving. Transient failures
// are retried with exponential backoff; large result sets make the
// server flaky enough that giving up on first error loses data points.
func (c *Client) CountBugs(ctx context.Context, query string) (int, []byte, error) {
	var count int
	var raw []byte

	operation := func() error {
		n, body, err := c.fetch(ctx, query)
		if err != nil {
			return err
		}
		count, raw = n, body
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return 0, nil, err
	}
	return count, raw, nil
}

func (c *Client) fetch(ctx context.Context, query string) (int, []byte, error) {
	url := fmt.Sprintf("%s/bug?%s", c.BaseURL, query)
	if c.Auth != "" {
		url += "&" + c.Auth
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("bugzilla returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	var result struct {
		Bugs []json.RawMessage `json:"bugs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, nil, fmt.Errorf("parse bug list: %w", err)
	}
	return len(result.Bugs), body, nil
}
