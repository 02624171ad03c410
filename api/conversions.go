package api

import (
	"context"
	"net/http"
)

type Conversion struct {
	Text      string `json:"text"`
	Filename  string `json:"filename"`
	S3URL     string `json:"s3Url"`
	CreatedAt string `json:"createdAt"`
	Member    Member `json:"member"`
}

// Convert uploads a recording for speech-to-text.
func (c *Client) Convert(ctx context.Context, path string) (Conversion, error) {
	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPost,
		Path:   pathConvert,
		Form:   AudioForm(path, c.now()),
	})
	if err != nil {
		return Conversion{}, err
	}
	return decode[Conversion](resp)
}

func (c *Client) ConversionHealth(ctx context.Context) error {
	return c.health(ctx, pathConversionHealth)
}
