// Package telegram contains a thin client for the Telegram Bot API and
// the webhook-driven bot linking conversation built on top of it.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// videoTimeout bounds sendVideo uploads. Everything else uses the much
// shorter callTimeout.
const (
	callTimeout  = 10 * time.Second
	videoTimeout = 2 * time.Minute
)

// Client talks to the Bot API with a single credential. Calls are a
// single attempt each, retrying is the caller's problem.
type Client struct {
	token  string
	apiURL string
	client *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:  token,
		apiURL: strings.TrimSuffix(viper.GetString("telegram.api_url"), "/"),
		client: &http.Client{Timeout: videoTimeout},
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
}

// do fires the request and decodes the Bot API envelope. A non-ok reply
// becomes an error carrying the upstream description verbatim.
func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram request failed, %w", err)
	}
	defer resp.Body.Close()

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("malformed telegram response, %w", err)
	}

	if !res.Ok {
		if res.Description == "" {
			res.Description = "telegram error " + strconv.Itoa(resp.StatusCode)
		}
		return nil, errors.New(res.Description)
	}

	return &res, nil
}

func (c *Client) postForm(ctx context.Context, method string, vals url.Values) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

// GetMe fetches the bot identity. This doubles as the token validity
// probe during the linking flow.
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	res, err := c.postForm(ctx, "getMe", url.Values{})
	if err != nil {
		return nil, err
	}

	var me Me
	if err := json.Unmarshal(res.Result, &me); err != nil {
		return nil, fmt.Errorf("malformed getMe result, %w", err)
	}

	return &me, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	vals := url.Values{}
	vals.Set("chat_id", strconv.FormatInt(chatID, 10))
	vals.Set("text", text)

	_, err := c.postForm(ctx, "sendMessage", vals)
	return err
}

// SetWebhook points the bot's inbound updates at the given URL.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	vals := url.Values{}
	vals.Set("url", webhookURL)

	_, err := c.postForm(ctx, "setWebhook", vals)
	return err
}

// SendVideo streams the file at path to the chat. The body is piped
// straight from disk so a 200MB upload never sits in memory.
func (c *Client) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open video for delivery, %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		mw.WriteField("chat_id", strconv.FormatInt(chatID, 10))
		if caption != "" {
			mw.WriteField("caption", caption)
		}

		part, err := mw.CreateFormFile("video", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}

		pw.CloseWithError(mw.Close())
	}()

	ctx, cancel := context.WithTimeout(ctx, videoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendVideo"), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	_, err = c.do(req)
	return err
}
