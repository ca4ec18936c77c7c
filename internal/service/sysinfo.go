package service

import (
	"fmt"

	"gdp-bench/internal/model"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// CollectSysInfo 读取平台、CPU 型号和内存大小；读取失败的字段留空
func CollectSysInfo() *model.SysInfo {
	info := &model.SysInfo{}
	if hostStat, err := host.Info(); err == nil {
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		info.CPU = cpuStat[0].ModelName
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = fmt.Sprintf("%d GB", vmStat.Total/1024/1024/1024)
	}
	return info
}
