package config

import (
	"github.com/blues/fundlock/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// PlatformConfig 众筹平台配置
type PlatformConfig struct {
	ChainId         int64  `mapstructure:"chain_id"`         // 签名域隔离用的环境标识
	AdminAddress    string `mapstructure:"admin_address"`    // 管理员地址，可取消活动
	FeeRecipient    string `mapstructure:"fee_recipient"`    // 默认平台费用接收方
	RecoveryAddress string `mapstructure:"recovery_address"` // 过期活动的兜底回收地址
	EventWorkers    int    `mapstructure:"event_workers"`    // 事件分发协程池大小
}

// ChainConfig 外部结算链配置，未启用时委托结算只在库内记账
type ChainConfig struct {
	Enabled    bool   `mapstructure:"enabled"`     // 是否把委托结算转发上链
	ChainId    int64  `mapstructure:"chain_id"`    // 链ID
	RpcUrl     string `mapstructure:"rpc_url"`     // RPC节点URL
	PrivateKey string `mapstructure:"private_key"` // 结算账户私钥
	GasLimit   uint64 `mapstructure:"gas_limit"`   // 结算交易Gas上限
}

type SchedulerConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/fundlock")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "fundlock")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("platform.chain_id", 1)
	viper.SetDefault("platform.event_workers", 8)
	viper.SetDefault("chain.enabled", false)
	viper.SetDefault("chain.gas_limit", 200000)
	viper.SetDefault("scheduler.interval", 60)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
