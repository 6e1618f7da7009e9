package service

import (
	"github.com/pratik1719/landinglens-segmentation-CV/model"
)

// ExtractMaskPredictions 在推理响应中查找第一组掩码预测，找不到返回 nil。
// 每个分支都进入更小的子值，递归必然终止；输入不会被修改。
func ExtractMaskPredictions(v model.Value) []model.Prediction {
	switch v.Kind {
	case model.KindSequence:
		if len(v.Items) == 0 {
			return nil
		}
		if v.Items[0].Kind == model.KindSingle {
			preds := make([]model.Prediction, 0, len(v.Items))
			for _, item := range v.Items {
				if item.Kind == model.KindSingle {
					preds = append(preds, *item.Prediction)
				}
			}
			return preds
		}
		for _, item := range v.Items {
			if preds := ExtractMaskPredictions(item); preds != nil {
				return preds
			}
		}
		return nil

	case model.KindMapping:
		for _, f := range v.Fields {
			if preds := ExtractMaskPredictions(f.Value); preds != nil {
				return preds
			}
		}
		return nil

	case model.KindWrapper:
		if v.Inner != nil {
			if preds := ExtractMaskPredictions(*v.Inner); preds != nil {
				return preds
			}
		}
		// predictions 中没有结果时按普通对象继续查找其他字段
		for _, f := range v.Fields {
			if preds := ExtractMaskPredictions(f.Value); preds != nil {
				return preds
			}
		}
		return nil

	case model.KindSingle:
		return []model.Prediction{*v.Prediction}

	default:
		return nil
	}
}

// FirstElement 顶层为单图结果列表时取第一个元素；本身已是预测列表则原样返回
func FirstElement(v model.Value) model.Value {
	if v.Kind == model.KindSequence && len(v.Items) > 0 && v.Items[0].Kind != model.KindSingle {
		return v.Items[0]
	}
	return v
}
