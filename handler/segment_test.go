package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pratik1719/landinglens-segmentation-CV/config"
	"github.com/pratik1719/landinglens-segmentation-CV/model"
	"github.com/pratik1719/landinglens-segmentation-CV/service"
)

type stubPredictor struct {
	result    *service.InferenceResult
	err       error
	threshold float64
}

func (p *stubPredictor) Predict(_ context.Context, _ image.Image, threshold float64) (*service.InferenceResult, error) {
	p.threshold = threshold
	return p.result, p.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Upload: config.UploadConfig{
			MaxSize:      1 << 20,
			AllowedTypes: []string{"image/jpeg", "image/png"},
		},
		LandingAI: config.LandingAIConfig{
			APIKey:        "key",
			EndpointID:    "endpoint",
			BaseURL:       "https://predict.example.com",
			MaxConcurrent: 1,
			QueueTimeout:  1,
		},
		Overlay: config.OverlayConfig{
			Alpha:            0.45,
			DefaultThreshold: 0.5,
			DisplayWidth:     700,
			MinDisplayWidth:  300,
			MaxDisplayWidth:  1200,
		},
	}
}

func newRouter(cfg *config.Config, p service.Predictor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewSegmentationService(cfg, nil, func(*config.LandingAIConfig) (service.Predictor, error) {
		return p, nil
	})
	h := NewSegmentHandler(cfg, svc)
	r := gin.New()
	r.GET("/api/v1/credentials", h.Credentials)
	r.POST("/api/v1/segment", h.Segment)
	r.POST("/api/v1/segment/overlay.png", h.Download)
	return r
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 20, 40, 60, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="input.png"`)
		hdr.Set("Content-Type", contentType)
		part, err := w.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(data)
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func catResult(w, h int) *service.InferenceResult {
	mask := model.NewMask(w, h)
	mask.Set(0, 0, true)
	return &service.InferenceResult{
		ThresholdParam: "threshold",
		Value: model.Wrapper(model.Sequence(
			model.Single(model.Prediction{Label: "cat", Score: 0.9, Mask: mask}),
		)),
	}
}

func TestSegmentSuccess(t *testing.T) {
	stub := &stubPredictor{result: catResult(4, 3)}
	r := newRouter(testConfig(), stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment", "image/png", pngBytes(t, 4, 3),
		map[string]string{"threshold": "0.25", "display_width": "300", "debug": "true"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.SegmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data == nil {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp.Data.PredictionCount != 1 || resp.Data.Threshold != 0.25 || resp.Data.Width != 4 {
		t.Fatalf("unexpected data %#v", resp.Data)
	}
	if resp.Data.Debug == nil || resp.Data.Debug.PayloadKind != "wrapper(object)" {
		t.Fatalf("expected debug diagnostics, got %#v", resp.Data.Debug)
	}
	if stub.threshold != 0.25 {
		t.Fatalf("threshold not forwarded: %v", stub.threshold)
	}
}

func TestSegmentDefaultsThreshold(t *testing.T) {
	stub := &stubPredictor{result: catResult(2, 2)}
	r := newRouter(testConfig(), stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment", "image/png", pngBytes(t, 2, 2), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if stub.threshold != 0.5 {
		t.Fatalf("expected default threshold, got %v", stub.threshold)
	}
	var resp model.SegmentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.Debug != nil {
		t.Fatalf("debug should be omitted by default")
	}
}

func TestDownloadReturnsPNG(t *testing.T) {
	r := newRouter(testConfig(), &stubPredictor{result: catResult(4, 3)})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment/overlay.png", "image/png", pngBytes(t, 4, 3), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="segmentation_overlay.png"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	r0, g0, b0, _ := img.At(0, 0).RGBA()
	r1, g1, b1, _ := img.At(1, 0).RGBA()
	if r0 == r1 && g0 == g1 && b0 == b1 {
		t.Fatalf("masked pixel was not blended")
	}
	if c := color.NRGBAModel.Convert(img.At(1, 0)).(color.NRGBA); c.R != 20 || c.G != 40 || c.B != 60 {
		t.Fatalf("unmasked pixel changed: %v", c)
	}
}

func TestSegmentValidation(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		data        []byte
		fields      map[string]string
	}{
		{"missing file", "image/png", nil, nil},
		{"wrong type", "image/gif", []byte("GIF89a"), nil},
		{"threshold too high", "image/png", nil, map[string]string{"threshold": "1.5"}},
		{"threshold not a number", "image/png", nil, map[string]string{"threshold": "high"}},
		{"display width too small", "image/png", nil, map[string]string{"display_width": "100"}},
		{"not an image", "image/png", []byte("plain text"), nil},
	}
	for _, tc := range cases {
		data := tc.data
		if data == nil && tc.name != "missing file" {
			data = pngBytes(t, 2, 2)
		}
		stub := &stubPredictor{result: catResult(2, 2)}
		r := newRouter(testConfig(), stub)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment", tc.contentType, data, tc.fields))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestSegmentErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		stub   *stubPredictor
		status int
		kind   string
	}{
		{
			name:   "missing credentials",
			mutate: func(c *config.Config) { c.LandingAI.APIKey = "" },
			stub:   &stubPredictor{},
			status: http.StatusServiceUnavailable,
			kind:   "configuration",
		},
		{
			name:   "call failure",
			stub:   &stubPredictor{err: &service.InferenceCallError{StatusCode: 401, Body: "bad key"}},
			status: http.StatusBadGateway,
			kind:   "inference_call",
		},
		{
			name:   "timeout",
			stub:   &stubPredictor{err: &service.InferenceCallError{Timeout: true, Cause: context.DeadlineExceeded}},
			status: http.StatusGatewayTimeout,
			kind:   "inference_call",
		},
		{
			name:   "unrecognized",
			stub:   &stubPredictor{result: &service.InferenceResult{Value: model.Sequence()}},
			status: http.StatusBadGateway,
			kind:   "unrecognized_response",
		},
		{
			name:   "mask mismatch",
			stub:   &stubPredictor{result: catResult(5, 5)},
			status: http.StatusBadGateway,
			kind:   "mask_dimension_mismatch",
		},
	}
	for _, tc := range cases {
		cfg := testConfig()
		if tc.mutate != nil {
			tc.mutate(cfg)
		}
		r := newRouter(cfg, tc.stub)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment", "image/png", pngBytes(t, 2, 2), nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.name, rec.Code, tc.status)
		}
		var resp model.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if resp.Success || resp.Kind != tc.kind || resp.Message == "" {
			t.Fatalf("%s: unexpected response %#v", tc.name, resp)
		}
		if resp.Debug != nil {
			t.Fatalf("%s: diagnostics leaked without debug", tc.name)
		}
	}
}

func TestSegmentDebugDetail(t *testing.T) {
	stub := &stubPredictor{result: &service.InferenceResult{Value: model.Mapping(
		model.Field{Key: "status", Value: model.Unrecognized("string")},
	)}}
	r := newRouter(testConfig(), stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment", "image/png", pngBytes(t, 2, 2), map[string]string{"debug": "true"}))

	var resp model.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" || resp.Debug == nil || resp.Debug.ResultKind != "mapping(object)" {
		t.Fatalf("expected debug diagnostics, got %#v", resp)
	}
}

func TestInferenceDetailHiddenWithoutDebug(t *testing.T) {
	stub := &stubPredictor{err: &service.InferenceCallError{StatusCode: 500, Body: "secret stack trace"}}
	r := newRouter(testConfig(), stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "/api/v1/segment", "image/png", pngBytes(t, 2, 2), nil))

	var resp model.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "status 500" {
		t.Fatalf("expected short summary, got %q", resp.Error)
	}
}

func TestCredentialsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.LandingAI.EndpointID = ""
	r := newRouter(cfg, &stubPredictor{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/credentials", nil))

	var status model.CredentialStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.APIKeyFound || status.EndpointIDFound {
		t.Fatalf("unexpected status %#v", status)
	}
}
