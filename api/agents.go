package api

import (
	"context"
	"net/http"
)

const (
	pathChat         = "/api/agents/chat"
	pathAgentConvert = "/api/agents/convert"
	pathAgentUpload  = "/api/agents/upload"
)

// ChatData is the assistant's structured reply. Params are passed through untouched.
type ChatData struct {
	Message   string         `json:"message"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	UseRAG    bool           `json:"useRag"`
	SessionID string         `json:"sessionId"`
}

// Chat posts one user message. It needs a stored access token and records any
// session id the server hands back.
func (c *Client) Chat(ctx context.Context, message string) (ChatData, error) {
	if c.session.AccessToken() == "" {
		return ChatData{}, ErrNotAuthenticated
	}
	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPost,
		Path:   pathChat,
		JSON:   map[string]string{"message": message},
	})
	if err != nil {
		return ChatData{}, err
	}
	data, err := decode[ChatData](resp)
	if err != nil {
		return ChatData{}, err
	}
	c.session.SetChatSessionID(data.SessionID)
	return data, nil
}

// SpeechToText converts a recorded voice prompt into chat text.
func (c *Client) SpeechToText(ctx context.Context, path string) (string, error) {
	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPost,
		Path:   pathAgentConvert,
		Form:   AudioForm(path, c.now()),
	})
	if err != nil {
		return "", err
	}
	text, err := decode[textPayload](resp)
	if err != nil {
		return "", err
	}
	return text.Text, nil
}

// UploadPDF adds a document to the assistant's retrieval corpus.
func (c *Client) UploadPDF(ctx context.Context, path string) (string, error) {
	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPost,
		Path:   pathAgentUpload,
		Form:   PDFForm(path),
	})
	if err != nil {
		return "", err
	}
	data, err := decode[textPayload](resp)
	if err != nil {
		return "", err
	}
	if data.Text != "" {
		return data.Text, nil
	}
	msg, _ := check(resp)
	if msg == "" {
		msg = "PDF 업로드 성공"
	}
	return msg, nil
}
