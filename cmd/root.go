package main

import (
	"github.com/fyerfyer/doc2pdf/api/middleware"
	appconfig "github.com/fyerfyer/doc2pdf/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootOptions 所有子命令共享的参数
type rootOptions struct {
	configFile string
	logLevel   string
}

// newRootCmd 创建根命令
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "doc2pdf",
		Short:         "Convert word-processing documents to PDF",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "config.yaml", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug/info/warn/error), overrides config")

	cmd.AddCommand(
		newConvertCmd(opts),
		newServeCmd(opts),
		newWorkerCmd(opts),
	)
	return cmd
}

// load 读取配置并初始化全局日志
func (o *rootOptions) load() (*appconfig.Config, *logrus.Logger, error) {
	cfg, err := appconfig.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	if err := middleware.ConfigureLogger(middleware.LogConfig(cfg.Log)); err != nil {
		return nil, nil, err
	}
	return cfg, middleware.GetLogger(), nil
}
