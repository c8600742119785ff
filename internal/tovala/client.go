package tovala

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	bridge "tovala_bridge"
	"tovala_bridge/internal/logger"
)

// Client performs authenticated calls against the oven resource tree. Every
// call first ensures a valid session, then attaches the bearer token and the
// application id header.
type Client struct {
	auth  *Auth
	httpc *http.Client
	log   *logger.Logger
}

func NewClient(auth *Auth, log *logger.Logger) *Client {
	return &Client{
		auth:  auth,
		httpc: &http.Client{Timeout: callTimeout},
		log:   log,
	}
}

// do issues one authenticated request and maps the outcome onto the error
// taxonomy: 404 -> ErrNotFound, other >=400 -> *APIError, transport failure
// -> ErrConnectionFailed. The raw body is returned on success.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.auth.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	token, base, _ := c.auth.session()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, base+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(appIDHeader, appIDValue)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Errorw("request failed", "method", method, "path", path, "err", err)
		return nil, connFailed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	c.log.Debugw("api call", "method", method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// getJSON decodes a GET response into out. An empty or non-JSON body on an
// otherwise-successful status is treated as an empty result, not an error.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	c.decodeLenient(raw, out, path)
	return nil
}

// postJSON posts body and decodes the response the same lenient way.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if out != nil {
		c.decodeLenient(raw, out, path)
	}
	return nil
}

func (c *Client) decodeLenient(raw []byte, out any, path string) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warnw("unexpected response shape, treating as empty", "path", path, "err", err)
	}
}

// uid returns the resolved user id or ErrNotAuthenticated. All domain
// operations are user-scoped and need it.
func (c *Client) uid() (int, error) {
	id := c.auth.UserID()
	if id == 0 {
		return 0, ErrNotAuthenticated
	}
	return id, nil
}

// ListOvens returns the user's oven descriptors. An unexpected shape yields
// an empty list (logged inside getJSON), not an error.
func (c *Client) ListOvens(ctx context.Context) ([]bridge.Oven, error) {
	uid, err := c.uid()
	if err != nil {
		return nil, err
	}
	var ovens []bridge.Oven
	if err := c.getJSON(ctx, fmt.Sprintf("/v0/users/%d/ovens", uid), &ovens); err != nil {
		return nil, err
	}
	c.log.Infow("listed ovens", "count", len(ovens))
	return ovens, nil
}

// OvenStatus fetches the raw cooking status map. An empty oven id is not an
// error: integration may not have discovered a device yet.
func (c *Client) OvenStatus(ctx context.Context, ovenID string) (map[string]any, error) {
	if ovenID == "" {
		c.log.Warnw("oven status requested with empty oven id")
		return map[string]any{}, nil
	}
	uid, err := c.uid()
	if err != nil {
		return nil, err
	}
	var status map[string]any
	path := fmt.Sprintf("/v0/users/%d/ovens/%s/cook/status", uid, ovenID)
	if err := c.getJSON(ctx, path, &status); err != nil {
		return nil, err
	}
	if status == nil {
		status = map[string]any{}
	}
	return status, nil
}

// MealDetails fetches catalog metadata for one meal. Meal metadata is
// cosmetic, so every failure is swallowed and reported as nil.
func (c *Client) MealDetails(ctx context.Context, mealID string) *bridge.MealDetails {
	if mealID == "" {
		return nil
	}
	uid, err := c.uid()
	if err != nil {
		c.log.Warnw("meal details skipped", "meal_id", mealID, "err", err)
		return nil
	}

	// Response is wrapped as {"meal":{...}} or bare.
	var payload struct {
		bridge.MealDetails
		Meal *bridge.MealDetails `json:"meal"`
	}
	path := fmt.Sprintf("/v1/users/%d/meals/%s", uid, mealID)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		c.log.Warnw("meal details fetch failed", "meal_id", mealID, "err", err)
		return nil
	}
	if payload.Meal != nil {
		return payload.Meal
	}
	if payload.MealDetails.Title == "" && payload.MealDetails.ID == 0 {
		return nil
	}
	meal := payload.MealDetails
	return &meal
}

// CookingHistory returns the most-recent-first cook records, truncated to
// limit. Best-effort: any failure yields an empty slice.
func (c *Client) CookingHistory(ctx context.Context, ovenID string, limit int) []bridge.CookRecord {
	if ovenID == "" {
		return nil
	}
	uid, err := c.uid()
	if err != nil {
		c.log.Warnw("cooking history skipped", "err", err)
		return nil
	}
	var records []bridge.CookRecord
	path := fmt.Sprintf("/v0/users/%d/ovens/%s/cook/history", uid, ovenID)
	if err := c.getJSON(ctx, path, &records); err != nil {
		c.log.Warnw("cooking history fetch failed", "oven_id", ovenID, "err", err)
		return nil
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// CustomRecipes fetches the user's recipe catalog, filtered to entries with
// both a title and a barcode.
func (c *Client) CustomRecipes(ctx context.Context) ([]bridge.Recipe, error) {
	uid, err := c.uid()
	if err != nil {
		return nil, err
	}
	var payload struct {
		UserRecipes []bridge.Recipe `json:"userRecipes"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/v0/users/%d/customMealDataJSON", uid), &payload); err != nil {
		return nil, err
	}
	recipes := make([]bridge.Recipe, 0, len(payload.UserRecipes))
	for _, r := range payload.UserRecipes {
		if r.Title != "" && r.Barcode != "" {
			recipes = append(recipes, r)
		}
	}
	c.log.Infow("fetched custom recipes", "count", len(recipes))
	return recipes, nil
}

// StartCooking starts a cook for the given barcode. User-initiated, so it
// fails loudly.
func (c *Client) StartCooking(ctx context.Context, ovenID, barcode string) error {
	if ovenID == "" {
		return fmt.Errorf("oven id is required")
	}
	if barcode == "" {
		return fmt.Errorf("barcode is required")
	}
	uid, err := c.uid()
	if err != nil {
		return err
	}
	c.log.Infow("starting cook", "oven_id", ovenID, "barcode", barcode)
	path := fmt.Sprintf("/v0/users/%d/ovens/%s/cook/start", uid, ovenID)
	return c.postJSON(ctx, path, map[string]string{"barcode": barcode}, nil)
}

// CancelCook cancels the current cooking session. Fails loudly.
func (c *Client) CancelCook(ctx context.Context, ovenID string) error {
	if ovenID == "" {
		return fmt.Errorf("oven id is required")
	}
	uid, err := c.uid()
	if err != nil {
		return err
	}
	c.log.Infow("canceling cook", "oven_id", ovenID)
	path := fmt.Sprintf("/v0/users/%d/ovens/%s/cook/cancel", uid, ovenID)
	return c.postJSON(ctx, path, map[string]string{}, nil)
}
