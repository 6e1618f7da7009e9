package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration 缺少 API Key 或 Endpoint ID，不会发起网络请求
	ErrConfiguration = errors.New("missing LANDINGAI_API_KEY or LANDINGAI_ENDPOINT_ID")
	// ErrClientUnavailable 推理客户端无法构造
	ErrClientUnavailable = errors.New("inference client unavailable")
	// ErrInferenceCall 推理请求本身失败（超时、鉴权、服务端错误）
	ErrInferenceCall = errors.New("inference call failed")
	// ErrUnrecognizedResponse 请求成功但响应中找不到掩码预测
	ErrUnrecognizedResponse = errors.New("could not find segmentation mask predictions in the API response")
	// ErrMaskDimensionMismatch 掩码尺寸与图片不一致
	ErrMaskDimensionMismatch = errors.New("mask dimensions do not match image")
	// ErrInvalidAlpha 叠加透明度不在 (0,1] 内
	ErrInvalidAlpha = errors.New("overlay alpha must be in (0,1]")
	// ErrQueueFull 等待推理并发名额超时
	ErrQueueFull = errors.New("inference queue is full")
)

// InferenceCallError 推理请求失败的细节
type InferenceCallError struct {
	StatusCode int
	Timeout    bool
	Body       string
	Cause      error
}

func (e *InferenceCallError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timed out: %v", ErrInferenceCall, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", ErrInferenceCall, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: %v", ErrInferenceCall, e.Cause)
	}
}

func (e *InferenceCallError) Is(target error) bool {
	return target == ErrInferenceCall
}

func (e *InferenceCallError) Unwrap() error {
	return e.Cause
}

// UnrecognizedResponseError 响应形态无法识别，附带观察到的类型
type UnrecognizedResponseError struct {
	ResultKind  string
	PayloadKind string
	Cause       error
}

func (e *UnrecognizedResponseError) Error() string {
	msg := fmt.Sprintf("%s (result=%s, payload=%s)", ErrUnrecognizedResponse, e.ResultKind, e.PayloadKind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnrecognizedResponseError) Is(target error) bool {
	return target == ErrUnrecognizedResponse
}

func (e *UnrecognizedResponseError) Unwrap() error {
	return e.Cause
}

// MaskDimensionError 指出尺寸不一致的预测
type MaskDimensionError struct {
	Index       int
	Label       string
	MaskWidth   int
	MaskHeight  int
	ImageWidth  int
	ImageHeight int
}

func (e *MaskDimensionError) Error() string {
	return fmt.Sprintf("%s: prediction %d (%s) mask %dx%d, image %dx%d",
		ErrMaskDimensionMismatch, e.Index, e.Label,
		e.MaskWidth, e.MaskHeight, e.ImageWidth, e.ImageHeight)
}

func (e *MaskDimensionError) Is(target error) bool {
	return target == ErrMaskDimensionMismatch
}
