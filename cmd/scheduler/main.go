package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"crowdsale/internal/repository"
	"crowdsale/internal/tokenomics"
	"crowdsale/pkg/config"
	"crowdsale/pkg/solana"
	"crowdsale/schedule"
)

func main() {
	// 配置日志输出到文件
	os.MkdirAll("logs", 0755)
	file, err := os.OpenFile("logs/tokenomics_schedule.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logger.SetOutput(file)
	} else {
		logger.Warn("无法打开日志文件，日志将输出到标准输出")
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logger.InfoLevel)
	logger.Info("> 开始初始化程序...")

	config.LoadEnv()
	engineConfig, err := config.LoadEngineConfig()
	if err != nil {
		logger.Fatalf("> 配置错误: %v", err)
	}

	// 初始化数据库连接
	config.InitDB()
	logger.Info("> 数据库连接初始化完成")

	engine, err := tokenomics.NewEngine(repository.NewGormRepository(config.DB), engineConfig, nil, nil)
	if err != nil {
		logger.Fatal(err)
	}
	vault, err := solana.NewVaultBalanceSourceFromEnv()
	switch {
	case errors.Is(err, solana.ErrVaultNotConfigured):
		logger.Warn("> 未配置销售金库, 对账跳过链上余额")
	case err != nil:
		logger.Fatal(err)
	default:
		engine.WithBalanceSource(vault)
	}

	c := schedule.NewCron()
	if err := schedule.NewJobs(engine).Register(c); err != nil {
		logger.Fatalf("> 添加定时任务失败: %v", err)
	}
	c.Start()
	logger.Info("> 定时任务已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// 等待正在执行的任务结束
	<-c.Stop().Done()
	logger.Info("> 定时任务已停止")
}
