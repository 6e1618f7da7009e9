package service

import (
	"context"
	"encoding/base64"
	"image"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/pratik1719/landinglens-segmentation-CV/config"
	"github.com/pratik1719/landinglens-segmentation-CV/model"
	"github.com/pratik1719/landinglens-segmentation-CV/utils"
	"go.uber.org/zap"
)

// ThresholdGuidance 阈值取值说明，随结果返回
var ThresholdGuidance = []string{
	"Higher threshold: cleaner mask but may miss thin/low-confidence regions",
	"Lower threshold: more coverage but can add noise/false positives",
}

// PredictorFactory 每次请求构造推理客户端
type PredictorFactory func(cfg *config.LandingAIConfig) (Predictor, error)

// SegmentOptions 单次分割参数
type SegmentOptions struct {
	MD5          string
	Threshold    float64
	DisplayWidth int
	Debug        bool
}

// SegmentResult 分割结果，Overlay 为原尺寸叠加图
type SegmentResult struct {
	Overlay     *image.NRGBA
	OverlayPNG  []byte
	Predictions []model.Prediction
	Inference   *InferenceResult
	Diagnostics *model.Diagnostics
}

// SegmentationService 负责调用推理服务并生成叠加图
type SegmentationService struct {
	cfg          *config.LandingAIConfig
	alpha        float64
	semaphore    chan struct{}
	queueTimeout time.Duration
	newPredictor PredictorFactory
	compositor   *Compositor
}

func NewSegmentationService(cfg *config.Config, colors *ColorMap, factory PredictorFactory) *SegmentationService {
	if factory == nil {
		factory = DefaultPredictorFactory
	}
	maxConcurrent := cfg.LandingAI.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	alpha := cfg.Overlay.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &SegmentationService{
		cfg:          &cfg.LandingAI,
		alpha:        alpha,
		semaphore:    make(chan struct{}, maxConcurrent),
		queueTimeout: time.Duration(cfg.LandingAI.QueueTimeout) * time.Second,
		newPredictor: factory,
		compositor:   NewCompositor(colors),
	}
}

// DefaultPredictorFactory 使用 LandingLens HTTP 客户端
func DefaultPredictorFactory(cfg *config.LandingAIConfig) (Predictor, error) {
	client, err := NewLandingLensClient(cfg, &http.Client{})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Credentials 返回凭据状态
func (s *SegmentationService) Credentials() model.CredentialStatus {
	return model.CredentialStatus{
		APIKeyFound:     s.cfg.APIKey != "",
		EndpointIDFound: s.cfg.EndpointID != "",
	}
}

// Segment 调用推理服务、提取掩码并生成叠加图
func (s *SegmentationService) Segment(ctx context.Context, img *image.NRGBA, opts SegmentOptions) (*SegmentResult, error) {
	// 凭据缺失时不发起任何网络请求
	if !s.cfg.HasCredentials() {
		return nil, ErrConfiguration
	}

	predictor, err := s.newPredictor(s.cfg)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return nil, err
		}
		if !errors.Is(err, ErrClientUnavailable) {
			err = errors.Wrap(ErrClientUnavailable, err.Error())
		}
		return nil, err
	}

	// 并发控制
	if s.queueTimeout > 0 {
		queueCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
		defer cancel()
		select {
		case s.semaphore <- struct{}{}:
		case <-queueCtx.Done():
			return nil, ErrQueueFull
		}
	} else {
		select {
		case s.semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil, ErrQueueFull
		}
	}
	inference, err := func() (*InferenceResult, error) {
		defer func() { <-s.semaphore }()
		return predictor.Predict(ctx, img, opts.Threshold)
	}()
	if err != nil {
		return nil, err
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()
	utils.Logger.Info("inference returned",
		zap.String("md5", opts.MD5),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.String("threshold_param", inference.ThresholdParam),
		zap.Duration("latency", inference.Latency))

	payload := FirstElement(inference.Value)
	diag := &model.Diagnostics{
		ResultKind:       inference.Value.Describe(),
		PayloadKind:      payload.Describe(),
		ThresholdParam:   inference.ThresholdParam,
		RejectedParams:   inference.RejectedParams,
		InferenceLatency: inference.Latency.String(),
	}

	preds := ExtractMaskPredictions(payload)
	if preds == nil {
		utils.Logger.Warn("no mask predictions in response",
			zap.String("md5", opts.MD5),
			zap.String("result_kind", diag.ResultKind),
			zap.String("payload_kind", diag.PayloadKind))
		return nil, &UnrecognizedResponseError{ResultKind: diag.ResultKind, PayloadKind: diag.PayloadKind}
	}
	diag.PredictionCount = len(preds)
	diag.FirstHasMask = preds[0].Mask != nil

	overlay, err := s.compositor.Compose(img, preds, s.alpha)
	if err != nil {
		return nil, err
	}

	overlayPNG, err := EncodePNG(overlay)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("overlay rendered",
		zap.String("md5", opts.MD5),
		zap.Int("predictions", len(preds)),
		zap.Int("png_bytes", len(overlayPNG)))

	return &SegmentResult{
		Overlay:     overlay,
		OverlayPNG:  overlayPNG,
		Predictions: preds,
		Inference:   inference,
		Diagnostics: diag,
	}, nil
}

// BuildOverlayResult 组装 JSON 响应，包含按显示宽度缩放的预览
func (s *SegmentationService) BuildOverlayResult(res *SegmentResult, opts SegmentOptions) (*model.OverlayResult, error) {
	preview := ResizeToWidth(res.Overlay, opts.DisplayWidth)
	previewPNG, err := EncodePNG(preview)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(res.Predictions))
	for _, p := range res.Predictions {
		labels = append(labels, p.LabelOrUnknown())
	}

	out := &model.OverlayResult{
		MD5:             opts.MD5,
		Width:           res.Overlay.Rect.Dx(),
		Height:          res.Overlay.Rect.Dy(),
		Threshold:       opts.Threshold,
		ThresholdParam:  res.Inference.ThresholdParam,
		PredictionCount: len(res.Predictions),
		Labels:          labels,
		Overlay:         base64.StdEncoding.EncodeToString(res.OverlayPNG),
		Preview:         base64.StdEncoding.EncodeToString(previewPNG),
		PreviewWidth:    preview.Rect.Dx(),
		Guidance:        ThresholdGuidance,
	}
	if opts.Debug {
		out.Debug = res.Diagnostics
	}
	return out, nil
}
