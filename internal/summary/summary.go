// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package summary generates short two-sentence Japanese post summaries and
// validates them, first with structural rules and then with a second model
// pass that judges stylistic conformance.
package summary

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.osokin.dev/notifier/internal/gemini"
)

const (
	// DefaultMaxAttempts is the shared pool of validation retries. Both the
	// structural and the style check draw from it.
	DefaultMaxAttempts = 3

	// backendRetryLimit bounds retries of a failing generation call itself,
	// separately from validation retries.
	backendRetryLimit = 5
	backendRetryDelay = time.Second
)

const systemInstruction = `# Role
- あなたは、与えられた技術文書（APIドキュメント、チュートリアル、論文など）を深く理解し、その核心を捉えて簡潔に説明するエキスパートです。

# Task
- 与えられた技術文書について、以下の要件を満たす日本語の要約文を生成してください。

## 要約文の要件
- 内容: その技術や情報がどのようなもので、どんな場面で役立つ可能性があるかを具体的に記述する
- 文字数: 全体で100文字以内
- 文体: 硬すぎず、砕けすぎない、自然な口語表現を用いる。「ですます」調は使用しない

## 文の構成ルール（重要）
- 必ず二文構成とし、1文目と2文目の間に改行を入れる
- 句読点（。、）は使用しない
- 1文目は事実・特徴を伝える（「〜らしい」「〜かも」「〜っぽい」「〜みたい」「〜そう」「〜な印象」などで終わる）
- 2文目は自分の反応・評価を述べる（「〜に期待」「〜が楽しみ」「〜を試したい」「〜が良いな」「気になる」「使えそうかな」「便利そう」などで終わる）

## 出力形式の制約（重要）
- 要約文のみを出力してください
- 前置きや説明文、補足は一切不要です

## 出力例
vitejs/vite:
ネイティブESモジュールを活用した爆速HMRが売りのビルドツールっぽい
開発体験の向上に期待

oxc-project/oxc:
Rust製で既存ツールより桁違いに速いJS/TSツール群らしい
パーサーやリンターを探してるなら使えそうかな`

const styleInstruction = `あなたは日本語の文体チェッカーです。与えられた2行の要約文が以下のスタイル契約を満たすか判定してください。

- 1文目は伝聞・推測・印象を示す表現（「〜らしい」「〜かも」「〜っぽい」「〜みたい」「〜そう」「〜な印象」など）で終わること
- 2文目は書き手自身の反応・評価（「〜に期待」「〜が楽しみ」「〜を試したい」「〜が良いな」「気になる」など）で終わること
- 「ですます」調を使用していないこと

JSONで {"isValid": 真偽値, "feedback": "不適合の場合の具体的な指摘"} を返してください。`

// Generator drives the bounded retry-with-feedback loop around the text
// generation backend and the two validators.
type Generator struct {
	Client *gemini.Client
	// MaxAttempts is the shared validation retry pool, DefaultMaxAttempts if zero.
	MaxAttempts int
	Slog        *slog.Logger
}

func (g *Generator) maxAttempts() int {
	if g.MaxAttempts > 0 {
		return g.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (g *Generator) slog() *slog.Logger {
	if g.Slog != nil {
		return g.Slog
	}
	return slog.Default()
}

// Generate produces a summary for prompt, retrying with validator feedback up
// to the attempt limit. It never returns an error: if every attempt fails
// validation the last generated text is returned as-is, and a blank backend
// response short-circuits to an empty summary.
func (g *Generator) Generate(ctx context.Context, prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		return ""
	}

	var (
		last     string
		feedback string
	)
	for attempt := 1; attempt <= g.maxAttempts(); attempt++ {
		text, err := g.generateOnce(ctx, prompt, feedback)
		if err != nil {
			g.slog().Warn("summary generation failed", "attempt", attempt, "error", err)
			return last
		}
		if text == "" {
			g.slog().Warn("summary backend returned blank response")
			return ""
		}
		last = text

		res := Validate(text)
		for _, w := range res.Warnings {
			g.slog().Warn("summary style note", "warning", w)
		}
		if !res.Valid {
			g.slog().Info("summary failed format validation",
				"attempt", attempt, "max_attempts", g.maxAttempts(), "errors", res.Errors)
			if attempt < g.maxAttempts() {
				feedback = res.Feedback()
				continue
			}
			return text
		}

		res = g.ValidateWithLLM(ctx, text)
		if !res.Valid {
			g.slog().Info("summary failed style validation",
				"attempt", attempt, "max_attempts", g.maxAttempts(), "errors", res.Errors)
			if attempt < g.maxAttempts() {
				feedback = res.Feedback()
				continue
			}
			return text
		}

		return text
	}
	return last
}

// generateOnce calls the backend with its own bounded retry for transient
// errors.
func (g *Generator) generateOnce(ctx context.Context, prompt, feedback string) (string, error) {
	instruction := systemInstruction
	if feedback != "" {
		instruction += "\n\n# 前回の出力への指摘\n" + feedback + "\n指摘を踏まえて修正した要約を生成してください。"
	}

	params := gemini.GenerateContentParams{
		Contents: []*gemini.Content{
			{Role: "user", Parts: []*gemini.Part{{Text: prompt}}},
		},
		SystemInstruction: &gemini.Content{Parts: []*gemini.Part{{Text: instruction}}},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:      1,
			TopP:             0.95,
			TopK:             64,
			MaxOutputTokens:  8192,
			ResponseMIMEType: "text/plain",
		},
	}

	var lastErr error
	for retry := range backendRetryLimit {
		resp, err := g.Client.GenerateContent(ctx, params)
		if err == nil {
			return resp.Text(), nil
		}
		lastErr = err
		g.slog().Warn("summary backend call failed",
			"retry", retry+1, "retry_limit", backendRetryLimit, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backendRetryDelay):
		}
	}
	return "", lastErr
}

// ValidateWithLLM asks the backend whether text matches the stylistic
// contract. It fails open: any backend or parse error counts as valid, so a
// broken style check never blocks the pipeline.
func (g *Generator) ValidateWithLLM(ctx context.Context, text string) Result {
	resp, err := g.Client.GenerateContent(ctx, gemini.GenerateContentParams{
		Contents: []*gemini.Content{
			{Role: "user", Parts: []*gemini.Part{{Text: text}}},
		},
		SystemInstruction: &gemini.Content{Parts: []*gemini.Part{{Text: styleInstruction}}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema: &gemini.Schema{
				Type: "OBJECT",
				Properties: map[string]*gemini.Schema{
					"isValid":  {Type: "BOOLEAN"},
					"feedback": {Type: "STRING"},
				},
				Required: []string{"isValid"},
			},
		},
	})
	if err != nil {
		g.slog().Warn("style validation backend call failed, treating as valid", "error", err)
		return Result{Valid: true}
	}

	var verdict struct {
		IsValid  bool   `json:"isValid"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &verdict); err != nil {
		g.slog().Warn("style validation response unparsable, treating as valid", "error", err)
		return Result{Valid: true}
	}

	if verdict.IsValid {
		return Result{Valid: true}
	}
	return Result{Errors: []string{verdict.Feedback}}
}
