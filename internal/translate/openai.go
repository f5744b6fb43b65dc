// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// localeNames spells out each locale for the model prompt. A locale missing
// here cannot be served and fails fast, same as an unmapped DeepL code.
var localeNames = map[string]string{
	"ja":    "Japanese",
	"en":    "English",
	"zh-CN": "Simplified Chinese",
	"zh-TW": "Traditional Chinese",
	"ko":    "Korean",
	"vi":    "Vietnamese",
	"pt":    "Brazilian Portuguese",
	"id":    "Indonesian",
}

// OpenAIClient is a Provider backed by OpenAI chat completions. It exists
// for deployments without a DeepL subscription and for locale pairs DeepL
// prices poorly.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI provider using the given chat model.
func NewOpenAI(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Name implements Provider.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Translate implements Provider.
func (c *OpenAIClient) Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	srcName, ok := localeNames[sourceLocale]
	if !ok {
		return "", unsupportedLocale(ProviderOpenAI, sourceLocale)
	}
	tgtName, ok := localeNames[targetLocale]
	if !ok {
		return "", unsupportedLocale(ProviderOpenAI, targetLocale)
	}

	system := fmt.Sprintf(
		"You translate classified ads from %s to %s. Preserve line breaks, numbers, prices, addresses and contact details exactly. Reply with the translation only, no commentary.",
		srcName, tgtName)

	return c.complete(ctx, system, text)
}

// DetectLanguage implements Provider.
func (c *OpenAIClient) DetectLanguage(ctx context.Context, text string) (string, error) {
	codes := make([]string, 0, len(localeNames))
	for code := range localeNames {
		codes = append(codes, code)
	}
	system := fmt.Sprintf(
		"Identify the language of the user's text. Reply with exactly one of these codes and nothing else: %s",
		strings.Join(codes, ", "))

	answer, err := c.complete(ctx, system, text)
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(answer)
	if _, ok := localeNames[code]; !ok {
		return "", &ProviderError{
			Provider: ProviderOpenAI,
			Message:  fmt.Sprintf("model returned unexpected language code %q", code),
		}
	}
	return code, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, Message: "chat completion", Cause: err, Retryable: true}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: ProviderOpenAI, Message: "no choices returned"}
	}
	return resp.Choices[0].Message.Content, nil
}
