package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/util"
	"sage_edu_backend/pkg/monitoring"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSystemPrompt = "You are SAGE, an assistant for teachers and students on an education platform. Answer clearly and stay on educational topics."

// AIService 兼容 OpenAI chat/completions 协议的 LLM 客户端
type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *resty.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	s := &AIService{}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig 配置热更新时替换客户端
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	s.mu.Lock()
	s.config = cfg
	s.client = client
	s.mu.Unlock()
}

func (s *AIService) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.BaseURL != "" && s.config.APIKey != ""
}

func (s *AIService) current() (config.AIConfig, *resty.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.client
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []AIChatMessage   `json:"messages"`
	Stream         bool              `json:"stream,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
		Delta   AIChatMessage `json:"delta"` // 流式响应
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func buildMessages(system, background string, history []AIChatMessage, prompt string) []AIChatMessage {
	if system == "" {
		system = defaultSystemPrompt
	}
	if background != "" {
		system = fmt.Sprintf("%s\n\nUse the following background when answering:\n\n%s", system, background)
	}
	messages := []AIChatMessage{{Role: "system", Content: system}}
	messages = append(messages, history...)
	return append(messages, AIChatMessage{Role: "user", Content: prompt})
}

// Complete 非流式调用，kind 只用于指标
func (s *AIService) Complete(ctx context.Context, kind string, messages []AIChatMessage, jsonMode bool) (string, error) {
	cfg, client := s.current()
	start := time.Now()
	status := "error"
	defer func() {
		monitoring.AIRequestCounter.WithLabelValues(kind, status).Inc()
		monitoring.AIRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	body := ChatCompletionRequest{Model: cfg.Model, Messages: messages}
	if jsonMode {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var result ChatCompletionResponse
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		status = fmt.Sprintf("%d", resp.StatusCode())
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("AI returned no choices")
	}

	status = "ok"
	return result.Choices[0].Message.Content, nil
}

func (s *AIService) Chat(ctx context.Context, prompt string, background string) (string, error) {
	return s.Complete(ctx, "chat", buildMessages("", background, nil, prompt), false)
}

// GenerateJSON 要求模型只输出 JSON，返回解析前的原始文档
func (s *AIService) GenerateJSON(ctx context.Context, kind, system, prompt string) (json.RawMessage, error) {
	text, err := s.Complete(ctx, kind, buildMessages(system, "", nil, prompt), true)
	if err != nil {
		return nil, err
	}
	doc, ok := ExtractJSON(text)
	if !ok {
		return nil, util.ErrAIResponseInvalid
	}
	return doc, nil
}

// ExtractJSON 去掉 markdown 代码块包裹，截取第一个 JSON 对象或数组
func ExtractJSON(text string) (json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if json.Valid([]byte(text)) && (strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[")) {
		return json.RawMessage(text), true
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, false
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return nil, false
	}
	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

// ChatStream 流式对话，out 关闭表示结束，错误最多一个
func (s *AIService) ChatStream(ctx context.Context, prompt string, background string, history []AIChatMessage) (<-chan string, <-chan error) {
	out := make(chan string)
	errChan := make(chan error, 1)
	cfg, client := s.current()

	body := ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: buildMessages("", background, history, prompt),
		Stream:   true,
	}

	go func() {
		defer close(out)
		defer close(errChan)

		start := time.Now()
		status := "error"
		defer func() {
			monitoring.AIRequestCounter.WithLabelValues("chat_stream", status).Inc()
			monitoring.AIRequestDuration.WithLabelValues("chat_stream").Observe(time.Since(start).Seconds())
		}()

		resp, err := client.R().
			SetContext(ctx).
			SetBody(body).
			SetDoNotParseResponse(true).
			Post("/chat/completions")
		if err != nil {
			errChan <- err
			return
		}
		raw := resp.RawBody()
		defer raw.Close()

		if resp.StatusCode() != http.StatusOK {
			data, _ := io.ReadAll(raw)
			status = fmt.Sprintf("%d", resp.StatusCode())
			errChan <- fmt.Errorf("AI API error (status %d): %s", resp.StatusCode(), string(data))
			return
		}

		reader := bufio.NewReader(raw)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					errChan <- err
					return
				}
				break
			}

			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var chunk ChatCompletionResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				select {
				case out <- chunk.Choices[0].Delta.Content:
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}
		}
		status = "ok"
	}()

	return out, errChan
}
