package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newshub/domain"
)

type Client struct {
	addr string
	http *http.Client
}

// NewClient talks to the control server of a running instance. Trigger waits
// for a whole ingestion run, so the timeout is generous.
func NewClient(addr string) *Client {
	return &Client{addr: addr, http: &http.Client{Timeout: 5 * time.Minute}}
}

func (c *Client) Trigger() (domain.IngestSummary, error) {
	var r struct {
		OK      bool                 `json:"ok"`
		Error   string               `json:"error"`
		Summary domain.IngestSummary `json:"summary"`
	}
	resp, err := c.http.Post(c.url("/trigger"), "application/json", nil)
	if err != nil {
		return r.Summary, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return r.Summary, fmt.Errorf("server error: %s", resp.Status)
	}
	if !r.OK {
		return r.Summary, errors.New(r.Error)
	}
	return r.Summary, nil
}

// SetInterval returns the previous and the new schedule.
func (c *Client) SetInterval(d time.Duration) (old, updated string, err error) {
	var r struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	err = c.post("/set-interval", map[string]any{"duration": d.String()}, &r)
	return r.Old, r.New, err
}

func (c *Client) SetWorkers(n int) (int, error) {
	var r struct {
		Old int `json:"old"`
		New int `json:"new"`
	}
	err := c.post("/set-workers", map[string]any{"workers": n}, &r)
	return r.Old, err
}

func (c *Client) post(path string, req, out any) error {
	body, _ := json.Marshal(req)
	resp, err := c.http.Post(c.url(path), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(c.addr, "http://") || strings.HasPrefix(c.addr, "https://") {
		return c.addr + path
	}
	return "http://" + c.addr + path
}
