package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"face-shape-api/internal/config"
	"face-shape-api/internal/models"
	"face-shape-api/internal/pool"
)

const systemMessage = "你是一个面部特征分析师，懂得将图片解读为精准的数据和美学建议。请严格按照用户的要求生成内容，并在同一条返回数据中始终包含结构化的 JSON，同时保留原始描述以供前端回显。"

const userPrompt = `
从下面要求的这几个维度，对图片的面部特征做评价，输出一个完整详细的表格，多用数据和客观的词描述，不要有句子，我要结果简洁精炼。用英文输出。以下是要求：

# 总体

总体评分（10分制）

- 眉毛
- 眼睛
- 嘴唇
- 鼻子

总体一句话评价，要给情绪价值（不超过20字）

# 具体维度

## 脸型

- 是什么脸型（圆脸/方脸/椭圆脸/心形脸/菱形脸）
- 不同脸型的可能性（百分比显示）
- 脸部特征
  - 苹果肌
  - 颧骨
  - 脸颊
  - 太阳穴
- 针对脸型的一些建议
- 脸部数据（百分比）
  - 眼间距离比率
  - 额头宽度比率
  - 嘴巴宽度比率
  - 鼻子宽度比率
  - 鼻子长度比率
  - 下巴宽度比率

## 得分

总体颜值打分

## 眼睛

- 眼睛的一句话评价，要给情绪价值（不超过20字）
- 眼型是什么
- 眼睛特征
  - 形状
  - 大小
  - 眼间距离
  - 对称性
- 眼部数据测量（mm)
  - 曲率
  - 平均高度
  - 平均宽度
  - 两眼距离
  - 左眼宽度
  - 右眼宽度
- 评分（10分制）
  - 总体
  - 形状
  - 大小
  - 眼距
  - 对称性

## 眉毛

- 眉毛的一句话评价，要给情绪价值（不超过20字）
- 眉毛形状
- 眉毛特征
  - 弧度
  - 形状
  - 距离
  - 对称性
  - 厚度
- 眉毛数据测量
  - 左侧宽度
  - 右侧宽度
  - 距离
  - 厚度
- 评分（10分制）
  - 弧度
  - 总体评分
  - 距离
  - 厚度

## 嘴唇

- 嘴唇的一句话评价，要给情绪价值（不超过20字）
- 嘴唇的形状
- 嘴唇特征
  - cupid_bow
  - 形状
  - 对称性
  - 厚度
  - 宽度
- 数据测量（mm）
  - 高度
  - 上嘴唇高度
  - 下嘴唇高度
  - 嘴唇宽度
- 评分（10分制）
  - cupid_bow
  - 总体评分
  - 比例
  - 形状
  - 厚度
  - 宽度

## 鼻子

- 鼻子的一句话评价，要给情绪价值（不超过20字）
- 鼻形
- 鼻子特征
  - 鼻梁
  - 鼻子宽度
  - 鼻子长度
  - 鼻子比例
  - 鼻子形状
- 数据测量（mm）
  - 鼻梁高度
  - 鼻梁宽度
  - 鼻子宽度
  - 鼻子长度
- 评分（10分制）
  - 鼻梁
  - 长度
  - 总体评分
  - 比率
  - 宽度

## 结构化结果

务必额外以 JSON 格式输出如下结构：

{
  "summary": {
    "overallScore": number,
    "overallComment": string,
    "featureRatings": { "Eyebrows": number, "Eyes": number, "Lips": number, "Nose": number }
  },
  "shape": {
    "faceShape": string,
    "description": string,
    "probabilities": Record<string, number>,
    "facialMeasurements": Record<string, string>,
    "recommendations": string[]
  },
  "eyes": {
    "overallComment": string,
    "shape": string,
    "measurements": Record<string, string>,
    "scores": Record<string, number>
  },
  "brows": {
    "overallComment": string,
    "shape": string,
    "measurements": Record<string, string>,
    "scores": Record<string, number>
  },
  "lips": {
    "overallComment": string,
    "shape": string,
    "measurements": Record<string, string>,
    "scores": Record<string, number>
  },
  "nose": {
    "overallComment": string,
    "shape": string,
    "measurements": Record<string, string>,
    "scores": Record<string, number>
  },
  "raw": string
}

在 JSON 外仍保留简单描述，避免额外解释，轻描淡写地陈列要点即可。结果用英文输出，不要有中文`

// Analysis service errors.
var (
	ErrMissingImage    = errors.New("Missing image data")
	ErrImageUpload     = errors.New("Image upload failed")
	ErrVisionNotConfig = errors.New("Server missing VISION_API_KEY")
)

// RemoteError carries an upstream vision API failure, preserving the
// upstream status code for pass-through.
type RemoteError struct {
	Status  int
	Details string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote API error (status %d)", e.Status)
}

// AnalysisService forwards an image to the vision model and returns the
// raw output alongside the structured JSON it embeds. Concurrent calls are
// bounded by the limiter so a burst cannot exhaust upstream quota.
type AnalysisService struct {
	cfg     *config.Config
	storage *StorageService
	limiter *pool.Limiter
	client  *http.Client
}

// NewAnalysisService creates the analysis pass-through.
func NewAnalysisService(cfg *config.Config, storage *StorageService, limiter *pool.Limiter) *AnalysisService {
	return &AnalysisService{
		cfg:     cfg,
		storage: storage,
		limiter: limiter,
		client: &http.Client{
			Timeout: cfg.VisionTimeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Thinking    struct {
		Type string `json:"type"`
	} `json:"thinking"`
}

// Analyze uploads the image when it arrives as a data URI, then asks the
// vision model for the feature report.
func (s *AnalysisService) Analyze(ctx context.Context, image string) (*models.AnalysisResponse, error) {
	if image == "" {
		return nil, ErrMissingImage
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	imageURL, err := s.storage.UploadDataURI(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUpload, err)
	}

	if s.cfg.VisionAPIKey == "" {
		return nil, ErrVisionNotConfig
	}

	payload := chatRequest{
		Model: s.cfg.VisionModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: []map[string]any{
				{
					"type":      "image_url",
					"image_url": map[string]string{"url": imageURL},
					"detail":    "low",
				},
				{
					"type": "text",
					"text": userPrompt,
				},
			}},
		},
		Temperature: 0.3,
		MaxTokens:   2500,
	}
	payload.Thinking.Type = "disabled"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.VisionAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.VisionAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		details, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, &RemoteError{Status: resp.StatusCode, Details: string(details)}
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}

	var raw string
	if len(decoded.Choices) > 0 {
		raw = extractMessageContent(decoded.Choices[0].Message.Content)
	}

	return &models.AnalysisResponse{
		Raw:      raw,
		Parsed:   extractJSONFromText(raw),
		ImageURL: imageURL,
	}, nil
}

// Stats exposes the limiter counters for the stats endpoint.
func (s *AnalysisService) Stats() pool.Stats {
	return s.limiter.GetStats()
}

// extractMessageContent flattens the content field, which may be a plain
// string or a list of text parts.
func extractMessageContent(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text
	}

	var parts []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(content, &parts); err != nil {
		return ""
	}

	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Text != "" {
			segments = append(segments, part.Text)
		} else if part.Content != "" {
			segments = append(segments, part.Content)
		}
	}
	return strings.Join(segments, "\n")
}

// extractJSONFromText pulls the outermost JSON object out of free text.
// Returns nil when no parseable object is present.
func extractJSONFromText(text string) map[string]any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil
	}
	return parsed
}
