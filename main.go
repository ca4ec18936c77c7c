package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gdp-bench/internal/config"
	"gdp-bench/internal/db"
	"gdp-bench/internal/router"
	"gdp-bench/internal/service"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "gdp-bench"
	app.Usage = "GDP 重构策略的聚类实验：生成实例、批量求解、汇总分析"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Value: "config/config.yaml", Usage: "配置文件路径"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "启动 HTTP 服务",
			Action: serve,
		},
		{
			Name:  "generate-batch",
			Usage: "生成一批 k-means 实例",
			Flags: []cli.Flag{
				cli.IntSliceFlag{Name: "dims", Usage: "维数，可重复"},
				cli.IntSliceFlag{Name: "clusters", Usage: "聚类数，可重复"},
				cli.IntSliceFlag{Name: "points", Usage: "点数，可重复"},
				cli.Float64Flag{Name: "lo", Value: 0, Usage: "坐标下界"},
				cli.Float64Flag{Name: "hi", Value: 10, Usage: "坐标上界"},
				cli.StringFlag{Name: "name", Usage: "批名称"},
				cli.StringFlag{Name: "mode", Usage: "实验模式"},
				cli.StringFlag{Name: "solver", Value: "gams"},
				cli.StringFlag{Name: "subsolver"},
				cli.Int64Flag{Name: "seed", Usage: "随机种子，0 表示按时间"},
			},
			Action: generateBatch,
		},
		{
			Name:  "run-batch",
			Usage: "按批文件运行全部 求解器组合 × 模型 × 策略",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "batch, b", Usage: "批文件路径或批名称"},
				cli.StringSliceFlag{Name: "strategy, s", Usage: "策略，可重复；为空时使用配置"},
				cli.StringFlag{Name: "mode"},
				cli.IntFlag{Name: "time-limit", Usage: "单次求解时间限制（秒）"},
				cli.IntFlag{Name: "max-models"},
				cli.BoolFlag{Name: "relaxation-gap", Usage: "同时求解松弛问题并回填间隙"},
				cli.BoolFlag{Name: "relaxation-only", Usage: "只求解松弛问题"},
			},
			Action: runBatch,
		},
		{
			Name:  "process-archives",
			Usage: "为归档目录生成结果摘要与图",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "root", Usage: "归档根目录，默认使用配置"},
			},
			Action: processArchives,
		},
		{
			Name:  "clean-plots",
			Usage: "删除归档目录下所有 plots/",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "root", Usage: "归档根目录，默认使用配置"},
			},
			Action: cleanPlots,
		},
		{
			Name:  "aggregate",
			Usage: "汇总所有 solution_outcomes.txt",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "root", Usage: "归档根目录，默认使用配置"},
				cli.StringFlag{Name: "output, o", Usage: "报告路径，默认 <root>/aggregated_solution_outcomes.txt"},
			},
			Action: aggregate,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("执行失败: %v", err)
	}
}

// loadConfig 配置文件不存在时使用默认配置
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("配置文件 %s 不存在，使用默认配置", path)
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// newServiceContext 初始化数据库（可选）和服务
func newServiceContext(c *cli.Context) (*service.ServiceContext, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := db.InitDB(cfg); err != nil {
		if !errors.Is(err, db.ErrDisabled) {
			return nil, err
		}
		log.Println("数据库未启用，仅写入 xlsx")
	}
	return service.NewServiceContext(cfg), nil
}

func serve(c *cli.Context) error {
	svcCtx, err := newServiceContext(c)
	if err != nil {
		return err
	}

	r := router.SetupRouter(svcCtx)

	addr := fmt.Sprintf(":%d", svcCtx.Config.Server.Port)
	log.Printf("服务启动在 %s", addr)
	return r.Run(addr)
}

func generateBatch(c *cli.Context) error {
	svcCtx, err := newServiceContext(c)
	if err != nil {
		return err
	}
	path, err := svcCtx.Runner.GenerateBatch(service.GenerateBatchRequest{
		Dimensions: c.IntSlice("dims"),
		Clusters:   c.IntSlice("clusters"),
		Points:     c.IntSlice("points"),
		CoordRange: [2]float64{c.Float64("lo"), c.Float64("hi")},
		Name:       c.String("name"),
		Mode:       c.String("mode"),
		Solver:     c.String("solver"),
		Subsolver:  c.String("subsolver"),
		Seed:       c.Int64("seed"),
	})
	if err != nil {
		return err
	}
	log.Printf("批文件已生成: %s", path)
	return nil
}

func runBatch(c *cli.Context) error {
	if c.String("batch") == "" {
		return cli.NewExitError("缺少 --batch", 2)
	}
	svcCtx, err := newServiceContext(c)
	if err != nil {
		return err
	}
	exp := svcCtx.Config.Experiment
	run, err := svcCtx.Runner.RunBatch(context.Background(), service.RunBatchRequest{
		BatchFile:              c.String("batch"),
		Strategies:             c.StringSlice("strategy"),
		Mode:                   c.String("mode"),
		TimeLimit:              c.Int("time-limit"),
		MaxModels:              c.Int("max-models"),
		CalculateRelaxationGap: c.Bool("relaxation-gap") || exp.CalculateRelaxationGap,
		RelaxationOnly:         c.Bool("relaxation-only") || exp.RelaxationOnly,
	})
	if err != nil {
		return err
	}
	log.Printf("批次 %s: 成功 %d, 失败 %d, 元数据 %s", run.RunID, run.Completed, run.Failed, run.ResultPath)
	return nil
}

func archiveRoot(c *cli.Context, cfg *config.Config) string {
	if root := c.String("root"); root != "" {
		return root
	}
	return cfg.Experiment.ArchiveDir
}

func processArchives(c *cli.Context) error {
	svcCtx, err := newServiceContext(c)
	if err != nil {
		return err
	}
	processed, err := svcCtx.Archives.ProcessArchives(context.Background(), archiveRoot(c, svcCtx.Config))
	if err != nil {
		return err
	}
	log.Printf("处理完成: %d 个归档目录", len(processed))
	return nil
}

func cleanPlots(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	removed, err := service.CleanArchivePlots(archiveRoot(c, cfg))
	if err != nil {
		return err
	}
	for _, dir := range removed {
		log.Printf("已删除: %s", dir)
	}
	return nil
}

func aggregate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	root := archiveRoot(c, cfg)
	rep, err := service.AggregateDir(root)
	if err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = filepath.Join(root, service.AggregateReportFile)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("创建报告文件失败: %w", err)
	}
	defer f.Close()
	if err := service.WriteAggregateReport(f, *rep); err != nil {
		return err
	}
	log.Printf("汇总 %d 个文件，报告写入 %s", len(rep.Files), output)
	return nil
}
