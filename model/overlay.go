package model

// OverlayResult 分割叠加结果
type OverlayResult struct {
	MD5             string       `json:"md5"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	Threshold       float64      `json:"threshold"`
	ThresholdParam  string       `json:"threshold_param"`
	PredictionCount int          `json:"prediction_count"`
	Labels          []string     `json:"labels"`
	Overlay         string       `json:"overlay"` // base64编码的PNG
	Preview         string       `json:"preview"` // 按显示宽度缩放后的PNG
	PreviewWidth    int          `json:"preview_width"`
	Guidance        []string     `json:"guidance"`
	Debug           *Diagnostics `json:"debug,omitempty"`
}

// Diagnostics 调试信息，仅在 debug 模式下返回
type Diagnostics struct {
	ResultKind       string   `json:"result_kind"`
	PayloadKind      string   `json:"payload_kind"`
	PredictionCount  int      `json:"prediction_count"`
	FirstHasMask     bool     `json:"first_has_mask"`
	ThresholdParam   string   `json:"threshold_param,omitempty"`
	RejectedParams   []string `json:"rejected_params,omitempty"`
	InferenceLatency string   `json:"inference_latency,omitempty"`
}

// CredentialStatus 凭据状态
type CredentialStatus struct {
	APIKeyFound     bool `json:"api_key_found"`
	EndpointIDFound bool `json:"endpoint_id_found"`
}

// SegmentResponse 分割响应
type SegmentResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    *OverlayResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Kind    string       `json:"kind,omitempty"`
	Error   string       `json:"error,omitempty"`
	Debug   *Diagnostics `json:"debug,omitempty"`
}
