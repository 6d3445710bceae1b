package main

import (
	"errors"
	"fmt"
	"time"

	"vapor_recovery/internal/models"

	"github.com/go-resty/resty/v2"
)

const (
	apiPrefix  = "/api/v1"
	retryCount = 2
)

var errAPI = errors.New("api error")

// client talks to the supervisor's HTTP API.
type client struct {
	http *resty.Client
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &client{http: c}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *client) do(method, path string, body, result any, query map[string]string) error {
	var apiErr apiError
	req := c.http.R().SetError(&apiErr)
	if result != nil {
		req.SetResult(result)
	}
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("%s %s: %d %s: %w", method, path, resp.StatusCode(), msg, errAPI)
	}
	return nil
}

func (c *client) signIn(username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(resty.MethodPost, "/auth/sign-in", body, &out, nil); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *client) mode() (models.ModeStatus, error) {
	var out models.ModeStatus
	return out, c.do(resty.MethodGet, apiPrefix+"/mode", nil, &out, nil)
}

func (c *client) snapshot() (models.SensorSnapshot, error) {
	var out models.SensorSnapshot
	return out, c.do(resty.MethodGet, apiPrefix+"/snapshot", nil, &out, nil)
}

func (c *client) cycleStatus() (models.CycleStatus, error) {
	var out models.CycleStatus
	return out, c.do(resty.MethodGet, apiPrefix+"/cycles/status", nil, &out, nil)
}

func (c *client) cycles() ([]models.CycleSequence, error) {
	var out []models.CycleSequence
	return out, c.do(resty.MethodGet, apiPrefix+"/cycles", nil, &out, nil)
}

func (c *client) startCycle(name string) (models.CycleStatus, error) {
	var out models.CycleStatus
	return out, c.do(resty.MethodPost, apiPrefix+"/cycles/start", map[string]string{"name": name}, &out, nil)
}

// cycleAction posts to stop, pause or resume.
func (c *client) cycleAction(action string) error {
	return c.do(resty.MethodPost, apiPrefix+"/cycles/"+action, nil, nil, nil)
}

func (c *client) alarms(activeOnly bool) ([]models.Alarm, error) {
	var out struct {
		Alarms []models.Alarm `json:"alarms"`
	}
	var q map[string]string
	if activeOnly {
		q = map[string]string{"active": "true"}
	}
	return out.Alarms, c.do(resty.MethodGet, apiPrefix+"/alarms", nil, &out, q)
}

func (c *client) ackAlarm(kind string) error {
	return c.do(resty.MethodPost, apiPrefix+"/alarms/"+kind+"/ack", nil, nil, nil)
}

func (c *client) setLink(suspended bool) (bool, error) {
	var out struct {
		Suspended bool `json:"suspended"`
	}
	err := c.do(resty.MethodPost, apiPrefix+"/device/link", map[string]bool{"suspended": suspended}, &out, nil)
	return out.Suspended, err
}

func (c *client) shutdownTimers() ([]models.ShutdownTimer, error) {
	var out []models.ShutdownTimer
	return out, c.do(resty.MethodGet, apiPrefix+"/shutdown", nil, &out, nil)
}

func (c *client) logs(query map[string]string) ([]models.Event, error) {
	var out struct {
		Events []models.Event `json:"events"`
	}
	return out.Events, c.do(resty.MethodGet, apiPrefix+"/logs", nil, &out, query)
}
