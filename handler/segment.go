package handler

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/pratik1719/landinglens-segmentation-CV/config"
	"github.com/pratik1719/landinglens-segmentation-CV/middleware"
	"github.com/pratik1719/landinglens-segmentation-CV/model"
	"github.com/pratik1719/landinglens-segmentation-CV/service"
	"github.com/pratik1719/landinglens-segmentation-CV/utils"
	"go.uber.org/zap"
)

// OverlayFilename 下载文件名
const OverlayFilename = "segmentation_overlay.png"

type SegmentHandler struct {
	cfg     *config.Config
	segment *service.SegmentationService
}

func NewSegmentHandler(cfg *config.Config, segment *service.SegmentationService) *SegmentHandler {
	return &SegmentHandler{
		cfg:     cfg,
		segment: segment,
	}
}

// segmentRequest 解析后的上传参数
type segmentRequest struct {
	img  *image.NRGBA
	opts service.SegmentOptions
}

// Segment 上传图片并返回叠加结果（JSON）
func (h *SegmentHandler) Segment(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	res, err := h.segment.Segment(c.Request.Context(), req.img, req.opts)
	if err != nil {
		h.fail(c, err, req.opts.Debug)
		return
	}

	result, err := h.segment.BuildOverlayResult(res, req.opts)
	if err != nil {
		h.fail(c, err, req.opts.Debug)
		return
	}

	c.JSON(http.StatusOK, model.SegmentResponse{
		Success: true,
		Message: "分割完成",
		Data:    result,
	})
}

// Download 上传图片并直接返回原尺寸叠加 PNG
func (h *SegmentHandler) Download(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}

	res, err := h.segment.Segment(c.Request.Context(), req.img, req.opts)
	if err != nil {
		h.fail(c, err, req.opts.Debug)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", OverlayFilename))
	c.Header(middleware.PredictionCountHeader, strconv.Itoa(len(res.Predictions)))
	c.Data(http.StatusOK, "image/png", res.OverlayPNG)
}

// Credentials 返回凭据配置状态
func (h *SegmentHandler) Credentials(c *gin.Context) {
	c.JSON(http.StatusOK, h.segment.Credentials())
}

func (h *SegmentHandler) parseRequest(c *gin.Context) (*segmentRequest, bool) {
	debug := parseBool(c.PostForm("debug"))

	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return nil, false
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return nil, false
	}

	threshold, err := h.parseThreshold(c.PostForm("threshold"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "阈值必须在 0 到 1 之间",
			Error:   err.Error(),
		})
		return nil, false
	}

	displayWidth, err := h.parseDisplayWidth(c.PostForm("display_width"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("显示宽度必须在 %d 到 %d 之间", h.cfg.Overlay.MinDisplayWidth, h.cfg.Overlay.MaxDisplayWidth),
			Error:   err.Error(),
		})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		utils.Logger.Error("failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取上传文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.Upload.MaxSize+1))
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取上传文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}

	img, err := service.DecodeImage(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "无法解析图片，仅支持 JPEG/PNG",
			Error:   err.Error(),
		})
		return nil, false
	}

	md5 := utils.BytesMD5(data)
	utils.Logger.Info("image uploaded",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size),
		zap.Int("width", img.Rect.Dx()),
		zap.Int("height", img.Rect.Dy()),
		zap.Float64("threshold", threshold),
		zap.Bool("debug", debug))

	return &segmentRequest{
		img: img,
		opts: service.SegmentOptions{
			MD5:          md5,
			Threshold:    threshold,
			DisplayWidth: displayWidth,
			Debug:        debug,
		},
	}, true
}

// fail 将错误转换为用户可见信息，详细原因只在 debug 模式下返回
func (h *SegmentHandler) fail(c *gin.Context, err error, debug bool) {
	status, kind, message := classifyError(err)

	utils.Logger.Error("segmentation failed",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("kind", kind),
		zap.Error(err))

	resp := model.ErrorResponse{
		Success: false,
		Message: message,
		Kind:    kind,
	}
	if debug {
		resp.Error = err.Error()
		var unrecognized *service.UnrecognizedResponseError
		if errors.As(err, &unrecognized) {
			resp.Debug = &model.Diagnostics{
				ResultKind:  unrecognized.ResultKind,
				PayloadKind: unrecognized.PayloadKind,
			}
		}
	} else if errors.Is(err, service.ErrInferenceCall) {
		resp.Error = inferenceSummary(err)
	}
	c.JSON(status, resp)
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrConfiguration):
		return http.StatusServiceUnavailable, "configuration",
			"缺少 LANDINGAI_API_KEY 或 LANDINGAI_ENDPOINT_ID，请在 .env 中配置后重试"
	case errors.Is(err, service.ErrClientUnavailable):
		return http.StatusServiceUnavailable, "client_unavailable",
			"无法创建 LandingLens 推理客户端"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue_full",
			"处理队列已满，请稍后重试"
	case errors.Is(err, service.ErrInferenceCall):
		status := http.StatusBadGateway
		var callErr *service.InferenceCallError
		if errors.As(err, &callErr) && callErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		return status, "inference_call",
			"推理失败，请检查 Endpoint ID、部署状态、项目类型（Segmentation）以及额度"
	case errors.Is(err, service.ErrUnrecognizedResponse):
		return http.StatusBadGateway, "unrecognized_response",
			"API 响应中找不到分割掩码预测"
	case errors.Is(err, service.ErrMaskDimensionMismatch):
		return http.StatusBadGateway, "mask_dimension_mismatch",
			"掩码尺寸与图片不一致"
	default:
		return http.StatusInternalServerError, "internal", "处理失败"
	}
}

// inferenceSummary 非 debug 模式下只给出简短原因
func inferenceSummary(err error) string {
	var callErr *service.InferenceCallError
	if !errors.As(err, &callErr) {
		return ""
	}
	switch {
	case callErr.Timeout:
		return "timeout"
	case callErr.StatusCode != 0:
		return fmt.Sprintf("status %d", callErr.StatusCode)
	default:
		return "network error"
	}
}

func (h *SegmentHandler) parseThreshold(raw string) (float64, error) {
	if raw == "" {
		return h.cfg.Overlay.DefaultThreshold, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errors.Errorf("threshold %v out of range [0,1]", v)
	}
	return v, nil
}

func (h *SegmentHandler) parseDisplayWidth(raw string) (int, error) {
	if raw == "" {
		return h.cfg.Overlay.DisplayWidth, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < h.cfg.Overlay.MinDisplayWidth || v > h.cfg.Overlay.MaxDisplayWidth {
		return 0, errors.Errorf("display width %d out of range", v)
	}
	return v, nil
}

func (h *SegmentHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
