package service

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"gdp-bench/internal/model"

	"github.com/google/uuid"
)

const ModelsDir = "models"

// BuildInstance 生成 k-means 实例：points 个点，每维坐标在 [lo, hi] 内均匀分布
func BuildInstance(dims, clusters, points int, lo, hi float64, rng *rand.Rand) (*model.Instance, error) {
	if dims <= 0 || clusters <= 0 || points <= 0 {
		return nil, fmt.Errorf("实例参数必须为正数: dims=%d clusters=%d points=%d", dims, clusters, points)
	}
	if hi < lo {
		return nil, fmt.Errorf("坐标范围无效: [%v, %v]", lo, hi)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	inst := &model.Instance{
		ID: uuid.NewString(),
		Params: model.ModelParameters{
			NDimensions:     dims,
			NClusters:       clusters,
			NPoints:         points,
			CoordRangeLower: lo,
			CoordRangeUpper: hi,
		},
		Points: make([][]float64, points),
	}
	for i := range inst.Points {
		p := make([]float64, dims)
		for j := range p {
			p[j] = lo + rng.Float64()*(hi-lo)
		}
		inst.Points[i] = p
	}
	return inst, nil
}

// InstancePath 实例文件位于 <dataDir>/models/<name>.json
func InstancePath(dataDir, name string) string {
	return filepath.Join(dataDir, ModelsDir, name+".json")
}

func SaveInstance(dataDir string, inst *model.Instance) (string, error) {
	path := InstancePath(dataDir, inst.Name)
	if err := WriteJSON(path, inst); err != nil {
		return "", fmt.Errorf("保存实例失败: %w", err)
	}
	return path, nil
}

// LoadInstance 实例文件不存在时返回 ErrMissingInput
func LoadInstance(dataDir, name string) (*model.Instance, error) {
	name = strings.TrimSuffix(name, ".json")
	path := InstancePath(dataDir, name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("模型文件不存在 %s: %w", path, ErrMissingInput)
	}
	var inst model.Instance
	if err := ReadJSON(path, &inst); err != nil {
		return nil, err
	}
	if inst.Name == "" {
		inst.Name = name
	}
	return &inst, nil
}
