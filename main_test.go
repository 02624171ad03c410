package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"listening/api"
	"listening/assistant"
	"listening/beep"
)

func TestMain(m *testing.M) {
	beep.SetEnabled(false)
	os.Exit(m.Run())
}

type chatFunc func(ctx context.Context, message string) (api.ChatData, error)

func (f chatFunc) Chat(ctx context.Context, message string) (api.ChatData, error) {
	return f(ctx, message)
}

func replying(data api.ChatData) chatFunc {
	return func(context.Context, string) (api.ChatData, error) { return data, nil }
}

func newTestDispatcher(chat assistant.Chatter, contacts assistant.FakeContacts) (*assistant.Dispatcher, *assistant.Recorder) {
	rec := &assistant.Recorder{}
	d := assistant.NewDispatcher(chat, contacts, rec, rec, rec.SMS(), assistant.Config{
		CharsPerSecond: 30,
		ChunkInterval:  time.Millisecond,
	})
	return d, rec
}

func TestFailureText(t *testing.T) {
	tests := []struct {
		name string
		f    failureText
		err  error
		want string
	}{
		{"chat status", chatFailure, &api.RejectedError{Status: 500}, "요청 실패: 500 Internal Server Error"},
		{"chat rejected with message", chatFailure, &api.RejectedError{Status: 200, Message: "세션 만료"}, "세션 만료"},
		{"chat rejected bare", chatFailure, &api.RejectedError{Status: 200}, "요청 실패"},
		{"chat network", chatFailure, &api.NetworkError{Op: "POST", URL: "http://x", Err: errors.New("connection refused")}, "네트워크 오류: connection refused"},
		{"chat parse", chatFailure, fmt.Errorf("%w: eof", api.ErrParse), "서버 응답을 파싱할 수 없습니다."},
		{"chat no token", chatFailure, api.ErrNotAuthenticated, "로그인이 필요합니다."},
		{"voice status", voiceFailure, &api.RejectedError{Status: 413}, "음성 인식 실패: 413 Request Entity Too Large"},
		{"voice local", voiceFailure, errors.New("recording file not found"), "음성 업로드 오류: recording file not found"},
		{"upload status", uploadFailure, &api.RejectedError{Status: 400, Message: "bad pdf"}, "업로드 실패: 400 Bad Request"},
		{"upload other", uploadFailure, errors.New("open pdf: no such file"), "PDF 업로드 오류: open pdf: no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.format(tt.err); got != tt.want {
				t.Errorf("format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversionFailure(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&api.RejectedError{Status: 400, Message: "너무 짧은 음성"}, "음성 변환에 실패했습니다. (너무 짧은 음성)"},
		{&api.RejectedError{Status: 500}, "음성 변환에 실패했습니다. (알 수 없는 오류)"},
		{fmt.Errorf("%w: bad json", api.ErrParse), "음성 변환에 실패했습니다. (서버 응답을 파싱할 수 없습니다.)"},
	}
	for _, tt := range tests {
		if got := conversionFailure(tt.err); got != tt.want {
			t.Errorf("conversionFailure(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestDiagnosisFailure(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&api.RejectedError{Status: 400, Message: "음성이 너무 짧습니다"}, "음성 분석에 실패했습니다. (음성이 너무 짧습니다)"},
		{errors.New("dial tcp 127.0.0.1:8080: connect: connection refused"), "음성 분석에 실패했습니다. (알 수 없는 오류)"},
		{fmt.Errorf("%w: unexpected EOF", api.ErrParse), "음성 분석에 실패했습니다. (서버 응답을 파싱할 수 없습니다.)"},
	}
	for _, tt := range tests {
		if got := diagnosisFailure(tt.err); got != tt.want {
			t.Errorf("diagnosisFailure(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAskStreamsReplyAndRunsAction(t *testing.T) {
	d, rec := newTestDispatcher(replying(api.ChatData{
		Message: "검색해 볼게요",
		Action:  "web_search",
		Params:  map[string]any{"query": "서울 날씨"},
	}), nil)

	var out bytes.Buffer
	if err := ask(context.Background(), d, "날씨 알려줘", &out); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if got := out.String(); got != "검색해 볼게요\n" {
		t.Errorf("output = %q", got)
	}

	printDryRun(rec, &out)
	if !strings.Contains(out.String(), "[dry-run] open https://www.google.com/search?q=%EC%84%9C%EC%9A%B8+%EB%82%A0%EC%94%A8") {
		t.Errorf("dry-run output = %q", out.String())
	}
}

func TestAskActionFailure(t *testing.T) {
	d, _ := newTestDispatcher(replying(api.ChatData{
		Message: "전화 걸게요",
		Action:  "call_phone",
		Params:  map[string]any{"name": "엄마"},
	}), nil)

	var out bytes.Buffer
	err := ask(context.Background(), d, "엄마한테 전화해", &out)
	if err == nil || !strings.HasPrefix(err.Error(), "액션 실패: ") {
		t.Fatalf("err = %v, want action failure", err)
	}
	if out.String() != "전화 걸게요\n" {
		t.Errorf("reply must still be printed, got %q", out.String())
	}
}

func TestAskRequestFailure(t *testing.T) {
	d, _ := newTestDispatcher(chatFunc(func(context.Context, string) (api.ChatData, error) {
		return api.ChatData{}, &api.RejectedError{Status: 502}
	}), nil)

	err := ask(context.Background(), d, "hi", &bytes.Buffer{})
	if err == nil || err.Error() != "요청 실패: 502 Bad Gateway" {
		t.Errorf("err = %v", err)
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault("  ", "fallback"); got != "fallback" {
		t.Errorf("orDefault blank = %q", got)
	}
	if got := orDefault("ok", "fallback"); got != "ok" {
		t.Errorf("orDefault = %q", got)
	}
}
