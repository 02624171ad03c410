package api

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wrapper every backend response uses.
type Envelope[T any] struct {
	IsSuccess bool   `json:"isSuccess"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data"`
}

// decode interprets resp as an Envelope carrying T. Success needs both a 2xx status
// and isSuccess=true; anything else is a *RejectedError. A 2xx body that does not
// parse, or whose data does not fit T, yields ErrParse.
func decode[T any](resp *Response) (T, error) {
	var zero T

	var raw Envelope[json.RawMessage]
	parseErr := json.Unmarshal(resp.Body, &raw)

	if !resp.OK() {
		rej := &RejectedError{Status: resp.StatusCode}
		if parseErr == nil {
			rej.Code, rej.Message = raw.Code, raw.Message
		}
		return zero, rej
	}
	if parseErr != nil {
		return zero, fmt.Errorf("%w: %v", ErrParse, parseErr)
	}
	if !raw.IsSuccess {
		return zero, &RejectedError{Status: resp.StatusCode, Code: raw.Code, Message: raw.Message}
	}

	var data T
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return zero, fmt.Errorf("%w: data: %v", ErrParse, err)
		}
	}
	return data, nil
}

// check is decode for endpoints without a payload. A 2xx reply with an empty or
// non-envelope body counts as success; isSuccess=false never does.
func check(resp *Response) (string, error) {
	var env struct {
		IsSuccess *bool  `json:"isSuccess"`
		Code      string `json:"code"`
		Message   string `json:"message"`
	}
	parseErr := json.Unmarshal(resp.Body, &env)

	if !resp.OK() {
		rej := &RejectedError{Status: resp.StatusCode}
		if parseErr == nil {
			rej.Code, rej.Message = env.Code, env.Message
		}
		return "", rej
	}
	if parseErr == nil && env.IsSuccess != nil && !*env.IsSuccess {
		return "", &RejectedError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return env.Message, nil
}

// textPayload decodes data that the server sends either as a bare string or as an
// object carrying text (or message).
type textPayload struct {
	Text string
}

func (p *textPayload) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Text = s
		return nil
	}
	var obj struct {
		Text    *string `json:"text"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("want string or object, got %s", b)
	}
	switch {
	case obj.Text != nil && *obj.Text != "":
		p.Text = *obj.Text
	case obj.Message != nil:
		p.Text = *obj.Message
	}
	return nil
}
