package handler

import (
	"errors"
	"net/http"

	"gdp-bench/internal/service"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	runner     *service.BatchRunner
	archives   *service.ArchiveProcessor
	archiveDir string
}

func NewBatchHandler(runner *service.BatchRunner, archives *service.ArchiveProcessor, archiveDir string) *BatchHandler {
	return &BatchHandler{
		runner:     runner,
		archives:   archives,
		archiveDir: archiveDir,
	}
}

// GenerateBatch 生成一批实例
func (h *BatchHandler) GenerateBatch(c *gin.Context) {
	var req service.GenerateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := h.runner.GenerateBatch(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	names, _ := service.ReadBatchFile(path)
	c.JSON(http.StatusOK, gin.H{
		"batch_file": path,
		"models":     names,
	})
}

// RunBatch 同步运行一个批次，直到全部组合完成
func (h *BatchHandler) RunBatch(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch runner not initialized"})
		return
	}

	var req service.RunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BatchFile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch_file 不能为空"})
		return
	}

	run, err := h.runner.RunBatch(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrMissingInput) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error(), "run": run})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":         run,
		"result_path": run.ResultPath,
	})
}

// ProcessArchives 为尚未处理的归档目录生成摘要和图
func (h *BatchHandler) ProcessArchives(c *gin.Context) {
	root, err := resolveArchiveRoot(h.archiveDir, c.Query("root"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	processed, err := h.archives.ProcessArchives(c.Request.Context(), root)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrMissingInput) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": processed,
		"count":     len(processed),
	})
}
