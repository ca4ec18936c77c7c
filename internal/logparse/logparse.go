// Package logparse 从求解器控制台日志中提取根节点松弛值。
//
// 每个求解器家族对应一组有序的匹配规则，按顺序尝试，第一个成功的规则胜出；
// 全部失败时返回 Found=false 和诊断信息，不会返回错误也不会 panic。
package logparse

import (
	"fmt"
	"log"
	"os"
	"strings"
)

type Family string

const (
	FamilyGurobi Family = "gurobi"
	FamilyBaron  Family = "baron"
	FamilyIpopt  Family = "ipopt"
	FamilySCIP   Family = "scip"
)

// Pattern 一条提取规则
type Pattern struct {
	Name    string
	Extract func(content string) (float64, bool)
}

type Result struct {
	Value      float64
	Found      bool
	Family     Family
	Pattern    string
	Diagnostic string
}

// Ptr 未找到时返回 nil，便于直接写入可空字段
func (r Result) Ptr() *float64 {
	if !r.Found {
		return nil
	}
	v := r.Value
	return &v
}

// SelectFamily 根据求解器与子求解器名称选择规则组
func SelectFamily(solver, subsolver string) Family {
	s := strings.ToLower(solver)
	sub := strings.ToLower(subsolver)
	switch {
	case s == "gams" && sub == "baron":
		return FamilyBaron
	case s == "gams" && sub == "ipopth":
		return FamilyIpopt
	case s == "scip" || (s == "gams" && sub == "scip"):
		return FamilySCIP
	}
	return FamilyGurobi
}

func Patterns(f Family) []Pattern {
	switch f {
	case FamilyBaron:
		return baronPatterns
	case FamilyIpopt:
		return ipoptPatterns
	case FamilySCIP:
		return scipPatterns
	}
	return gurobiPatterns
}

// ParseRootRelaxation 在日志文本中查找根松弛值
func ParseRootRelaxation(content, solver, subsolver string) (res Result) {
	family := SelectFamily(solver, subsolver)
	res.Family = family

	defer func() {
		if r := recover(); r != nil {
			res = Result{Family: family, Diagnostic: fmt.Sprintf("解析日志异常: %v", r)}
			log.Printf("%s", res.Diagnostic)
		}
	}()

	for _, p := range Patterns(family) {
		if v, ok := p.Extract(content); ok {
			log.Printf("找到 %s 根松弛值 (%s): %v", family, p.Name, v)
			return Result{Value: v, Found: true, Family: family, Pattern: p.Name}
		}
	}

	res.Diagnostic = fmt.Sprintf("日志中未找到 %s 根松弛值", family)
	log.Printf("%s", res.Diagnostic)
	return res
}

// ParseRootRelaxationFile 读取日志文件后解析；文件不存在视为未匹配
func ParseRootRelaxationFile(path, solver, subsolver string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		res := Result{
			Family:     SelectFamily(solver, subsolver),
			Diagnostic: fmt.Sprintf("读取日志文件失败: %v", err),
		}
		log.Printf("%s", res.Diagnostic)
		return res
	}
	return ParseRootRelaxation(string(data), solver, subsolver)
}
