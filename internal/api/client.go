package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/models"
)

// Client exposes typed backend operations on top of the Gateway.
type Client struct {
	gw *Gateway
}

// NewClient wraps a Gateway.
func NewClient(gw *Gateway) *Client {
	return &Client{gw: gw}
}

// ListRecipes fetches the authoritative recipe list. Works without a
// login; the backend serves the list read-only to anonymous callers.
// Both a bare JSON array and a paginated {"results": [...]} envelope
// are accepted.
func (c *Client) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	data, err := c.gw.Do(ctx, http.MethodGet, "/coffee/", nil)
	if err != nil {
		return nil, err
	}

	var recipes []models.Recipe
	if err := json.Unmarshal(data, &recipes); err == nil {
		return recipes, nil
	}
	var page struct {
		Results []models.Recipe `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, errors.Wrap(errors.ErrRequestFailed, "failed to decode recipe list", err)
	}
	return page.Results, nil
}

// CreateRecipe submits a new recipe and returns the server's record,
// including its assigned id.
func (c *Client) CreateRecipe(ctx context.Context, payload models.RecipePayload) (*models.Recipe, error) {
	data, err := c.gw.Do(ctx, http.MethodPost, "/coffee/", payload)
	if err != nil {
		return nil, err
	}
	var recipe models.Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, errors.Wrap(errors.ErrRequestFailed, "failed to decode created recipe", err)
	}
	return &recipe, nil
}

// UpdateRecipe replaces the recipe with the given server id.
func (c *Client) UpdateRecipe(ctx context.Context, id int64, payload models.RecipePayload) (*models.Recipe, error) {
	data, err := c.gw.Do(ctx, http.MethodPut, fmt.Sprintf("/coffee/%d/", id), payload)
	if err != nil {
		return nil, err
	}
	var recipe models.Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, errors.Wrap(errors.ErrRequestFailed, "failed to decode updated recipe", err)
	}
	return &recipe, nil
}

// DeleteRecipe removes the recipe with the given server id.
func (c *Client) DeleteRecipe(ctx context.Context, id int64) error {
	_, err := c.gw.Do(ctx, http.MethodDelete, fmt.Sprintf("/coffee/%d/", id), nil)
	return err
}

// ListOrigins fetches the known coffee origins.
func (c *Client) ListOrigins(ctx context.Context) ([]models.Origin, error) {
	data, err := c.gw.Do(ctx, http.MethodGet, "/origins/", nil)
	if err != nil {
		return nil, err
	}
	var origins []models.Origin
	if err := json.Unmarshal(data, &origins); err == nil {
		return origins, nil
	}
	var page struct {
		Results []models.Origin `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, errors.Wrap(errors.ErrRequestFailed, "failed to decode origin list", err)
	}
	return page.Results, nil
}

// Health probes the backend healthcheck endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.gw.Do(ctx, http.MethodGet, "/healthcheck/", nil)
	return err
}

// Upload sends a local file to the backend as multipart form data.
func (c *Client) Upload(ctx context.Context, name string, content io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to build upload", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to read upload content", err)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to finalize upload", err)
	}
	_, err = c.gw.DoRaw(ctx, http.MethodPost, "/upload/", w.FormDataContentType(), buf.Bytes())
	return err
}

// DeleteFile removes a previously uploaded file.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	_, err := c.gw.Do(ctx, http.MethodDelete, "/files/"+name+"/", nil)
	return err
}

// ListFiles fetches the names of files previously uploaded.
func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	data, err := c.gw.Do(ctx, http.MethodGet, "/files/", nil)
	if err != nil {
		return nil, err
	}
	var files []string
	if err := json.Unmarshal(data, &files); err == nil {
		return files, nil
	}
	var page struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, errors.Wrap(errors.ErrRequestFailed, "failed to decode file list", err)
	}
	return page.Files, nil
}
