// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const deeplHTTPTimeout = 30 * time.Second

// deeplSource maps application locales to DeepL source codes. DeepL takes a
// single ZH source for both Chinese scripts.
var deeplSource = map[string]string{
	"ja":    "JA",
	"en":    "EN",
	"zh-CN": "ZH",
	"zh-TW": "ZH",
	"ko":    "KO",
	"vi":    "VI",
	"pt":    "PT",
	"id":    "ID",
}

// deeplTarget maps application locales to DeepL target codes, which are
// more specific than source codes (script and regional variants).
var deeplTarget = map[string]string{
	"ja":    "JA",
	"en":    "EN-US",
	"zh-CN": "ZH-HANS",
	"zh-TW": "ZH-HANT",
	"ko":    "KO",
	"vi":    "VI",
	"pt":    "PT-BR",
	"id":    "ID",
}

// deeplDetected maps DeepL detected-language codes back to application
// locales. Detection reports ZH without a script, so it lands on zh-CN.
var deeplDetected = map[string]string{
	"JA": "ja",
	"EN": "en",
	"ZH": "zh-CN",
	"KO": "ko",
	"VI": "vi",
	"PT": "pt",
	"ID": "id",
}

// DeepLClient is a Provider backed by the DeepL REST API.
type DeepLClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDeepL creates a DeepL provider. baseURL distinguishes the free and pro
// API hosts.
func NewDeepL(baseURL, apiKey string) *DeepLClient {
	return &DeepLClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: deeplHTTPTimeout},
	}
}

// Name implements Provider.
func (c *DeepLClient) Name() string { return ProviderDeepL }

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate implements Provider.
func (c *DeepLClient) Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	src, ok := deeplSource[sourceLocale]
	if !ok {
		return "", unsupportedLocale(ProviderDeepL, sourceLocale)
	}
	tgt, ok := deeplTarget[targetLocale]
	if !ok {
		return "", unsupportedLocale(ProviderDeepL, targetLocale)
	}

	result, err := c.doTranslate(ctx, map[string]any{
		"text":        []string{text},
		"source_lang": src,
		"target_lang": tgt,
	})
	if err != nil {
		return "", err
	}
	return result.Translations[0].Text, nil
}

// DetectLanguage implements Provider. DeepL has no standalone detection
// endpoint; omitting source_lang on a translate call returns the detected
// source alongside the (discarded) translation.
func (c *DeepLClient) DetectLanguage(ctx context.Context, text string) (string, error) {
	result, err := c.doTranslate(ctx, map[string]any{
		"text":        []string{text},
		"target_lang": "EN-US",
	})
	if err != nil {
		return "", err
	}
	detected := result.Translations[0].DetectedSourceLanguage
	locale, ok := deeplDetected[detected]
	if !ok {
		return "", &ProviderError{
			Provider: ProviderDeepL,
			Message:  fmt.Sprintf("detected language %q has no locale mapping", detected),
		}
	}
	return locale, nil
}

func (c *DeepLClient) doTranslate(ctx context.Context, body map[string]any) (*deeplResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderDeepL, Message: "marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/translate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderDeepL, Message: "new request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderDeepL, Message: "http call", Cause: err, Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderDeepL, Message: "read body", Cause: err, Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:  ProviderDeepL,
			Message:   fmt.Sprintf("api error (status %d): %s", resp.StatusCode, string(respBody)),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	var result deeplResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: ProviderDeepL, Message: "decode response", Cause: err}
	}
	if len(result.Translations) == 0 {
		return nil, &ProviderError{Provider: ProviderDeepL, Message: "no translations returned"}
	}
	return &result, nil
}

// retryableStatus treats rate limits and server-side failures as transient.
// 456 is DeepL's quota-exceeded status: retrying will not help.
func retryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}
