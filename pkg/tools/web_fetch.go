package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codial-dev/codial-core/pkg/domain"
)

const (
	webFetchDefaultTimeoutSeconds = 15.0
	webFetchMaxBytes              = 1_000_000
	webFetchMaxRedirects          = 5
)

// WebFetchTool retrieves text content from an HTTP(S) URL.
type WebFetchTool struct {
	client   *http.Client
	maxBytes int
}

// NewWebFetchTool builds the tool with its default timeout and size cap.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{
			Timeout: secondsDuration(webFetchDefaultTimeoutSeconds),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= webFetchMaxRedirects {
					return errors.New("redirect limit exceeded")
				}
				return nil
			},
		},
		maxBytes: webFetchMaxBytes,
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "URL에서 텍스트 콘텐츠를 가져와요. 웹 페이지, API 응답, 원격 파일 등을 읽을 수 있어요."
}

func (t *WebFetchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "가져올 URL이에요. http:// 또는 https:// 로 시작해야 해요.",
			},
			"method": map[string]any{
				"type":        "string",
				"enum":        []string{"GET", "POST"},
				"description": "HTTP 메서드예요. 기본값은 GET이에요.",
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "추가 HTTP 헤더 딕셔너리예요.",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "POST 요청 시 전송할 본문이에요.",
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) Result {
	url, ok := requiredString(args, "url")
	if !ok {
		return failure("url 파라미터가 필요해요.")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return failure("url은 http:// 또는 https:// 로 시작해야 해요.")
	}

	method := "GET"
	if raw, present := args["method"]; present {
		value, _ := raw.(string)
		if value != "GET" && value != "POST" {
			return failure("method는 GET 또는 POST만 지원해요.")
		}
		method = value
	}

	var body io.Reader
	if method == "POST" {
		if content, isString := args["body"].(string); isString {
			body = strings.NewReader(content)
		}
	}

	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return failure(fmt.Sprintf("HTTP 오류가 발생했어요: %v", err))
	}
	if headers, isMap := args["headers"].(map[string]any); isMap {
		for key, raw := range headers {
			if value, isString := raw.(string); isString {
				request.Header.Set(key, value)
			}
		}
	}

	response, err := t.client.Do(request)
	if err != nil {
		if domain.IsTimeout(err) {
			return failure("요청 시간이 초과됐어요.")
		}
		return failure(fmt.Sprintf("HTTP 오류가 발생했어요: %v", err))
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		if domain.IsTimeout(err) {
			return failure("요청 시간이 초과됐어요.")
		}
		return failure(fmt.Sprintf("HTTP 오류가 발생했어요: %v", err))
	}

	truncated := len(content) > t.maxBytes
	text := content
	if truncated {
		text = content[:t.maxBytes]
	}

	return Result{
		Ok:     true,
		Output: decodeReplace(text),
		Metadata: map[string]any{
			"status_code":  response.StatusCode,
			"content_type": response.Header.Get("Content-Type"),
			"byte_count":   len(content),
			"truncated":    truncated,
		},
	}
}
