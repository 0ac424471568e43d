package providers

import (
	"context"
	"fmt"
)

// PlaceholderAdapter answers on behalf of a provider that is enabled but not
// yet integrated. It echoes the request and never asks for tools.
type PlaceholderAdapter struct {
	name        string
	description string
}

func NewPlaceholderAdapter(name, description string) *PlaceholderAdapter {
	return &PlaceholderAdapter{name: name, description: description}
}

func (a *PlaceholderAdapter) Name() string { return a.name }

func (a *PlaceholderAdapter) Generate(_ context.Context, request Request) (Response, error) {
	text := request.Text
	if text == "" {
		text = "요청 없음"
	}
	return Response{
		OutputText: fmt.Sprintf(
			"`%s` 프로바이더는 현재 플레이스홀더 단계예요. %s 요청은 `%s`이에요.",
			a.name, a.description, text,
		),
		DecisionSummary: fmt.Sprintf("%s 플레이스홀더 어댑터로 응답했어요.", a.name),
	}, nil
}

var _ Adapter = (*PlaceholderAdapter)(nil)
