package api

import (
	"context"
	"net/http"
)

const (
	pathDiagnose         = "/api/diagnoses/diagnose"
	pathDiagnoseHealth   = "/api/diagnoses/health-check"
	pathConvert          = "/api/conversions/convert"
	pathConversionHealth = "/api/conversions/health-check"
)

// PropItem is one diagnosed condition. ID and Level may be absent.
type PropItem struct {
	ID    *int   `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

type Member struct {
	Nickname string `json:"nickname"`
}

type Diagnosis struct {
	PropList []PropItem `json:"propList"`
	Member   Member     `json:"member"`
}

// Diagnose uploads a recording for speech diagnosis.
func (c *Client) Diagnose(ctx context.Context, path string) (Diagnosis, error) {
	resp, err := c.AuthenticatedRequest(ctx, Request{
		Method: http.MethodPost,
		Path:   pathDiagnose,
		Form:   AudioForm(path, c.now()),
	})
	if err != nil {
		return Diagnosis{}, err
	}
	return decode[Diagnosis](resp)
}

func (c *Client) DiagnosisHealth(ctx context.Context) error {
	return c.health(ctx, pathDiagnoseHealth)
}

func (c *Client) health(ctx context.Context, path string) error {
	resp, err := c.send(ctx, Request{Method: http.MethodGet, Path: path}, "")
	if err != nil {
		return err
	}
	_, err = check(resp)
	return err
}
