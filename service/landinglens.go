package service

import (
	"bytes"
	"context"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pratik1719/landinglens-segmentation-CV/config"
	"github.com/pratik1719/landinglens-segmentation-CV/model"
	"github.com/pratik1719/landinglens-segmentation-CV/utils"
	"go.uber.org/zap"
)

const (
	predictPath = "/inference/v1/predict"
	// maxResponseSize 分割结果可能包含多个整图掩码
	maxResponseSize = 64 << 20
	maxErrorBody    = 512
	// maxMasksPerImage 掩码像素预算按原图面积的倍数计算
	maxMasksPerImage = 32
)

// ThresholdParams 依次尝试的阈值参数名，空字符串表示不传阈值
var ThresholdParams = []string{"threshold", "confidence", ""}

// InferenceResult 推理调用结果
type InferenceResult struct {
	Value          model.Value
	ThresholdParam string
	RejectedParams []string
	Latency        time.Duration
}

// Predictor 推理客户端抽象，便于替换和测试
type Predictor interface {
	Predict(ctx context.Context, img image.Image, threshold float64) (*InferenceResult, error)
}

// LandingLensClient LandingLens 推理 API 客户端
type LandingLensClient struct {
	apiKey     string
	endpointID string
	predictURL string
	timeout    time.Duration
	httpClient *http.Client
}

// NewLandingLensClient 凭据缺失返回 ErrConfiguration，地址非法返回 ErrClientUnavailable
func NewLandingLensClient(cfg *config.LandingAIConfig, httpClient *http.Client) (*LandingLensClient, error) {
	if !cfg.HasCredentials() {
		return nil, ErrConfiguration
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		if err == nil {
			err = errors.Errorf("invalid base url %q", cfg.BaseURL)
		}
		return nil, errors.Wrap(ErrClientUnavailable, err.Error())
	}

	u := base.JoinPath(predictPath)
	q := u.Query()
	q.Set("endpoint_id", cfg.EndpointID)
	u.RawQuery = q.Encode()

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &LandingLensClient{
		apiKey:     cfg.APIKey,
		endpointID: cfg.EndpointID,
		predictURL: u.String(),
		timeout:    cfg.Timeout,
		httpClient: httpClient,
	}, nil
}

// Predict 上传图片并返回解析后的响应。
// 阈值参数名被服务端以 400/422 拒绝时换下一个名称重试，其余失败直接返回。
func (c *LandingLensClient) Predict(ctx context.Context, img image.Image, threshold float64) (*InferenceResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := EncodePNG(img)
	if err != nil {
		return nil, errors.Wrap(err, "prepare upload")
	}

	start := time.Now()
	var rejected []string
	for i, param := range ThresholdParams {
		body, status, err := c.post(ctx, payload, param, threshold)
		if err != nil {
			return nil, err
		}

		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			if i < len(ThresholdParams)-1 {
				utils.Logger.Debug("threshold parameter rejected",
					zap.String("param", param),
					zap.Int("status", status))
				rejected = append(rejected, param)
				continue
			}
		}
		if status < 200 || status >= 300 {
			return nil, &InferenceCallError{StatusCode: status, Body: truncate(string(body), maxErrorBody)}
		}

		value, err := NewResponseDecoder(maskBudget(img)).Decode(body)
		if err != nil {
			return nil, &UnrecognizedResponseError{ResultKind: "invalid", PayloadKind: "invalid", Cause: err}
		}

		utils.Logger.Debug("inference completed",
			zap.String("endpoint_id", c.endpointID),
			zap.String("threshold_param", param),
			zap.Int("response_bytes", len(body)),
			zap.Duration("latency", time.Since(start)))

		return &InferenceResult{
			Value:          value,
			ThresholdParam: param,
			RejectedParams: rejected,
			Latency:        time.Since(start),
		}, nil
	}

	// ThresholdParams 最后一项总会返回
	return nil, &InferenceCallError{Cause: errors.New("no threshold signature accepted")}
}

func (c *LandingLensClient) post(ctx context.Context, payload []byte, param string, threshold float64) ([]byte, int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, 0, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(payload); err != nil {
		return nil, 0, errors.Wrap(err, "write form file")
	}
	if param != "" {
		if err := w.WriteField(param, strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
			return nil, 0, errors.Wrap(err, "write threshold")
		}
	}
	if err := w.Close(); err != nil {
		return nil, 0, errors.Wrap(err, "close multipart")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, &buf)
	if err != nil {
		return nil, 0, errors.Wrap(ErrClientUnavailable, err.Error())
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &InferenceCallError{
			Timeout: errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
			Cause:   err,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, &InferenceCallError{
			StatusCode: resp.StatusCode,
			Timeout:    errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
			Cause:      err,
		}
	}
	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// maskBudget 单次响应允许解码的掩码像素总数
func maskBudget(img image.Image) int {
	b := img.Bounds()
	pixels := b.Dx() * b.Dy()
	if pixels <= 0 || pixels > MaxMaskPixels/maxMasksPerImage {
		return MaxMaskPixels
	}
	return pixels * maxMasksPerImage
}
