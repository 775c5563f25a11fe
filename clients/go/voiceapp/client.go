// Package voiceapp provides a client for the voiceapp messaging API.
package voiceapp

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a voiceapp API client. Authenticated calls require a session
// token, obtained from Register or Login (or set directly).
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new voiceapp client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request, attaching the session token when set.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("voiceapp error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// User is another account, as exposed by search and conversation listings.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the result of registering or logging in.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Register creates an account and stores its session token on the client.
func (c *Client) Register(email, password, name string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	})
	respBody, err := c.doRequest("POST", "/auth/register", body)
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(respBody, &s); err != nil {
		return nil, err
	}
	c.Token = s.Token
	return &s, nil
}

// Login authenticates and stores the session token on the client.
func (c *Client) Login(email, password string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	respBody, err := c.doRequest("POST", "/auth/login", body)
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(respBody, &s); err != nil {
		return nil, err
	}
	c.Token = s.Token
	return &s, nil
}

// Me returns the authenticated account.
func (c *Client) Me() (*User, error) {
	respBody, err := c.doRequest("GET", "/users/me", nil)
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(respBody, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SearchUsers finds accounts by name or email fragment.
func (c *Client) SearchUsers(query string) ([]User, error) {
	respBody, err := c.doRequest("GET", "/users/search?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := json.Unmarshal(respBody, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Conversation is a two-party conversation summary.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OtherUser *User     `json:"other_user,omitempty"`
}

// OpenConversation finds or creates the conversation with another user and
// returns its ID.
func (c *Client) OpenConversation(otherUserID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"other_user_id": otherUserID})
	respBody, err := c.doRequest("POST", "/conversations", body)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListConversations lists the account's conversations, most recent first.
func (c *Client) ListConversations() ([]Conversation, error) {
	respBody, err := c.doRequest("GET", "/conversations", nil)
	if err != nil {
		return nil, err
	}
	var convs []Conversation
	if err := json.Unmarshal(respBody, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// Message is one message in a conversation. Text or AudioURL may be nil
// until the server-side conversion finishes.
type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	SenderID         string    `json:"sender_id"`
	Text             *string   `json:"text"`
	AudioURL         *string   `json:"audio_url"`
	Origin           string    `json:"origin"`
	ProcessingStatus string    `json:"processing_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// MessagePage is one page of conversation history, newest first.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor *string   `json:"next_cursor"`
}

// ListMessages retrieves a page of a conversation's messages. Pass the
// previous page's NextCursor as before to continue; empty starts from the
// newest message.
func (c *Client) ListMessages(conversationID string, limit int, before string) (*MessagePage, error) {
	path := fmt.Sprintf("/conversations/%s/messages?limit=%d", conversationID, limit)
	if before != "" {
		path += "&before=" + url.QueryEscape(before)
	}

	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var page MessagePage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendText sends a text message. The returned message is pending; its audio
// rendition arrives later via a message_updated event.
func (c *Client) SendText(conversationID, text string) (*Message, error) {
	body, _ := json.Marshal(map[string]string{"text": text})
	respBody, err := c.doRequest("POST", "/conversations/"+conversationID+"/messages/text", body)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendVoice sends a voice message from raw audio bytes. The returned message
// is pending; its transcript arrives later via a message_updated event.
func (c *Client) SendVoice(conversationID string, audio []byte, mimeType string) (*Message, error) {
	body, _ := json.Marshal(map[string]string{
		"audio":     base64.StdEncoding.EncodeToString(audio),
		"mime_type": mimeType,
	})
	respBody, err := c.doRequest("POST", "/conversations/"+conversationID+"/messages/voice", body)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessage fetches a single message, for polling a conversion outcome.
func (c *Client) GetMessage(conversationID, messageID string) (*Message, error) {
	respBody, err := c.doRequest("GET", "/conversations/"+conversationID+"/messages/"+messageID, nil)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
