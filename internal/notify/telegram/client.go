package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

// Client calls the Telegram Bot API for a single chat.
type Client struct {
	apiURL   string
	botToken string
	chatID   string
	client   *http.Client
}

// NewClient creates a Bot API client. An empty apiURL uses the public endpoint.
func NewClient(apiURL, botToken, chatID string) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error on %s: %s", e.Method, e.Description)
}

// isMessageGone reports whether err says the message no longer exists in the chat.
func isMessageGone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Description), "message to delete not found")
}

// InlineButton is one inline keyboard button.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Update represents an update from Telegram.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// CallbackQuery is sent when a user presses an inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data"`
	Message *Message `json:"message,omitempty"`
}

// Message is the subset of a Telegram message this service reads.
type Message struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// SendMessage sends an HTML message with an optional inline keyboard and
// returns its message ID.
func (c *Client) SendMessage(ctx context.Context, text string, keyboard [][]InlineButton) (int64, error) {
	payload := map[string]interface{}{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(keyboard) > 0 {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": keyboard,
		}
	}

	var msg Message
	if err := c.call(ctx, c.client, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// DeleteMessage deletes a message from the chat.
func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	payload := map[string]interface{}{
		"chat_id":    c.chatID,
		"message_id": messageID,
	}
	return c.call(ctx, c.client, "deleteMessage", payload, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	payload := map[string]interface{}{
		"callback_query_id": queryID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, c.client, "answerCallbackQuery", payload, nil)
}

// GetUpdates long-polls for callback queries after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	payload := map[string]interface{}{
		"timeout":         timeout,
		"limit":           100,
		"allowed_updates": []string{"callback_query"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	// Long polling needs a client that outlives the server-side timeout.
	client := &http.Client{Timeout: time.Duration(timeout+10) * time.Second}

	var updates []Update
	if err := c.call(ctx, client, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// call makes a request to the Telegram Bot API and decodes its result into out.
func (c *Client) call(ctx context.Context, client *http.Client, method string, payload map[string]interface{}, out interface{}) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.botToken, method)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("failed to parse %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !apiResp.OK {
		return &APIError{Method: method, Description: apiResp.Description}
	}

	if out != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}
