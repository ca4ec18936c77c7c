package model

import (
	"encoding/json"
)

// OptionalFloat 需要区分“字段不存在”和“字段为 null”时使用：
// 指针为 nil 表示不输出字段，Value 为 nil 表示输出 null。
type OptionalFloat struct {
	Value *float64
}

func NewOptionalFloat(v *float64) *OptionalFloat {
	return &OptionalFloat{Value: v}
}

func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
