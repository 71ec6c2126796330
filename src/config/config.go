package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataFile  string `json:"data_file" yaml:"data_file"`   // 航班延误数据文件(csv/xlsx)
	SheetName string `json:"sheet_name" yaml:"sheet_name"` // xlsx工作表名称，为空取第一个
	Delimiter string `json:"delimiter" yaml:"delimiter"`   // csv分隔符，为空时按扩展名决定

	LogName    string `json:"log_name" yaml:"log_name"`
	LogMaxSize string `json:"log_max_size" yaml:"log_max_size"` // 例如 "10 * 1024 * 1024"
	LogConsole bool   `json:"log_console" yaml:"log_console"`   // 同时输出到标准错误

	Server struct {
		Addr           string   `json:"addr" yaml:"addr"`
		ReadTimeout    Duration `json:"read_timeout" yaml:"read_timeout"`
		WriteTimeout   Duration `json:"write_timeout" yaml:"write_timeout"`
		RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`
	} `json:"server" yaml:"server"`

	Export struct {
		Dir      string `json:"dir" yaml:"dir"`           // 导出目录
		Schedule string `json:"schedule" yaml:"schedule"` // cron表达式，为空不定时导出
		Charts   bool   `json:"charts" yaml:"charts"`     // 是否同时导出png图表
		Width    int    `json:"width" yaml:"width"`
		Height   int    `json:"height" yaml:"height"`
	} `json:"export" yaml:"export"`

	Mail struct {
		// 收取数据附件，server 为空时不检查邮箱
		Inbox struct {
			Server   string   `json:"server" yaml:"server"` // 如 "imap.qq.com:993"
			Username string   `json:"username" yaml:"username"`
			Password string   `json:"password" yaml:"password"` // 密码/授权码
			Subject  string   `json:"subject" yaml:"subject"`   // 目标邮件主题关键词
			Interval Duration `json:"interval" yaml:"interval"`
		} `json:"inbox" yaml:"inbox"`

		// 发送导出结果，server 为空时不发送
		Outbox struct {
			Server   string   `json:"server" yaml:"server"` // 不带端口时使用465
			Username string   `json:"username" yaml:"username"`
			Password string   `json:"password" yaml:"password"`
			To       []string `json:"to" yaml:"to"`
			Subject  string   `json:"subject" yaml:"subject"`
		} `json:"outbox" yaml:"outbox"`
	} `json:"mail" yaml:"mail"`
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Defaults 不提供配置文件时使用的默认值
func Defaults() *Config {
	cfg := &Config{
		DataFile:   "airline_delay.csv",
		LogName:    "app.log",
		LogMaxSize: "10 * 1024 * 1024",
		LogConsole: true,
	}
	cfg.Server.Addr = "127.0.0.1:8050"
	cfg.Server.ReadTimeout = Duration(10 * time.Second)
	cfg.Server.WriteTimeout = Duration(60 * time.Second)
	cfg.Server.RequestTimeout = Duration(30 * time.Second)
	cfg.Export.Dir = "export"
	cfg.Export.Charts = true
	cfg.Export.Width = 1024
	cfg.Export.Height = 640
	cfg.Mail.Inbox.Subject = "On-Time Performance"
	cfg.Mail.Inbox.Interval = Duration(5 * time.Minute)
	return cfg
}

// LoadConfig 进程内只加载一次
func LoadConfig(jsonFolder, jsonFile string) (*Config, error) {
	once.Do(func() {
		instance, loadErr = Load(filepath.Join(jsonFolder, jsonFile))
	})
	return instance, loadErr
}

// Load 读取配置文件(json或yaml)，再用环境变量覆盖
// configFile 为空或文件不存在时只使用默认值
func Load(configFile string) (*Config, error) {
	cfg := Defaults()

	if configFile != "" {
		data, err := readFile(configFile)
		switch {
		case err == nil:
			if err := parseConfig(configFile, data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, fs.ErrNotExist):
			// 没有配置文件时使用默认值
		default:
			return nil, err
		}
	}

	// .env 不存在时忽略
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(name string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析Config失败: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析Config失败: %w", err)
		}
	}
	return nil
}

// 环境变量覆盖
func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"FDA_DATA_FILE":  &cfg.DataFile,
		"FDA_SHEET_NAME": &cfg.SheetName,
		"FDA_ADDR":       &cfg.Server.Addr,
		"FDA_LOG_NAME":   &cfg.LogName,
		"FDA_EXPORT_DIR": &cfg.Export.Dir,
		"FDA_SCHEDULE":   &cfg.Export.Schedule,

		"FDA_IMAP_PASSWORD": &cfg.Mail.Inbox.Password,
		"FDA_SMTP_PASSWORD": &cfg.Mail.Outbox.Password,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	var errs []string
	if c.DataFile == "" {
		errs = append(errs, "data_file 不能为空")
	}
	if len([]rune(c.Delimiter)) > 1 {
		errs = append(errs, fmt.Sprintf("delimiter 只能是单个字符: %q", c.Delimiter))
	}
	if c.Export.Width < 0 || c.Export.Height < 0 {
		errs = append(errs, "export 图表尺寸不能为负数")
	}
	if in := c.Mail.Inbox; in.Server != "" {
		if in.Username == "" {
			errs = append(errs, "mail.inbox.username 不能为空")
		}
		if in.Interval.Std() <= 0 {
			errs = append(errs, "mail.inbox.interval 必须大于0")
		}
	}
	if out := c.Mail.Outbox; out.Server != "" && len(out.To) == 0 {
		errs = append(errs, "mail.outbox.to 不能为空")
	}
	return combineErrors(errs)
}

// DelimiterRune csv分隔符，未配置时为0，由读取方按扩展名决定
func (c *Config) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return 0
}

func combineErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}

	// 使用固定格式字符串
	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON/YAML中 "30s" 这样的写法
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML 实现yaml.Unmarshaler接口
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
