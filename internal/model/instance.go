package model

import (
	"errors"
	"fmt"
)

var ErrNoValues = errors.New("模型尚未载入求解值")

// Instance k-means GDP 实例：点集、簇、维度均为 1 起始编号
type Instance struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Params ModelParameters `json:"model_parameters"`
	// Points[i-1][j-1] 为第 i 个点第 j 维坐标
	Points [][]float64 `json:"points"`

	values *InstanceValues
}

// InstanceValues 求解器回填的变量值
type InstanceValues struct {
	CenterCoordinates map[string]map[string]float64 `json:"center_coordinates"`
	Distances         map[string]float64            `json:"distances"`
	Objective         *float64                      `json:"objective_value"`
}

func (m *Instance) Dimensions() []int { return seq(m.Params.NDimensions) }
func (m *Instance) Clusters() []int   { return seq(m.Params.NClusters) }
func (m *Instance) PointSet() []int   { return seq(m.Params.NPoints) }

func (m *Instance) LoadValues(v *InstanceValues) {
	m.values = v
}

func (m *Instance) ClearValues() {
	m.values = nil
}

// CenterCoordinates 读取全部中心坐标，缺任一变量即失败
func (m *Instance) CenterCoordinates() (map[string]map[string]float64, error) {
	if m.values == nil || m.values.CenterCoordinates == nil {
		return nil, ErrNoValues
	}
	out := make(map[string]map[string]float64, len(m.Clusters()))
	for _, k := range m.Clusters() {
		ck := fmt.Sprintf("cluster_%d", k)
		src, ok := m.values.CenterCoordinates[ck]
		if !ok {
			return nil, fmt.Errorf("缺少变量 center_coordinates[%d]: %w", k, ErrNoValues)
		}
		dims := make(map[string]float64, len(m.Dimensions()))
		for _, j := range m.Dimensions() {
			dj := fmt.Sprintf("dim_%d", j)
			v, ok := src[dj]
			if !ok {
				return nil, fmt.Errorf("缺少变量 center_coordinates[%d,%d]: %w", k, j, ErrNoValues)
			}
			dims[dj] = v
		}
		out[ck] = dims
	}
	return out, nil
}

func (m *Instance) Distances() (map[string]float64, error) {
	if m.values == nil || m.values.Distances == nil {
		return nil, ErrNoValues
	}
	out := make(map[string]float64, m.Params.NPoints)
	for _, i := range m.PointSet() {
		key := fmt.Sprintf("%d", i)
		v, ok := m.values.Distances[key]
		if !ok {
			return nil, fmt.Errorf("缺少变量 distance[%d]: %w", i, ErrNoValues)
		}
		out[key] = v
	}
	return out, nil
}

func (m *Instance) Objective() (float64, error) {
	if m.values == nil || m.values.Objective == nil {
		return 0, ErrNoValues
	}
	return *m.values.Objective, nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}
