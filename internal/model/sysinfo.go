package model

// SysInfo 运行机器信息，附在每个 JSON 产物上
type SysInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	RAM      string `json:"ram"`
}
