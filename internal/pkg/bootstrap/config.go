package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共用的配置部分。服务自己的配置通过内嵌本结构扩展。
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Infra   InfraConfig   `yaml:"infra"`
}

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// InfraConfig 中留空的组件不会被启用。
type InfraConfig struct {
	Database struct {
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		AutoMigrate  bool   `yaml:"auto_migrate"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers   []string `yaml:"brokers"`
		ChatTopic string   `yaml:"chat_topic"`
	} `yaml:"kafka"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Nacos struct {
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
	Zookeeper struct {
		Servers        []string      `yaml:"servers"`
		SessionTimeout time.Duration `yaml:"session_timeout"`
	} `yaml:"zookeeper"`
}

// LoadYAML 读取 path 指向的 YAML 文件到 out。
func LoadYAML(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// ApplyEnv 用环境变量覆盖文件中的配置，并补全默认值。
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid HTTP_PORT %q", v)
		}
		c.Service.Port = port
	}
	overrideString(&c.Service.LogLevel, "LOG_LEVEL")
	overrideString(&c.Infra.Database.DSN, "DATABASE_DSN")
	overrideString(&c.Infra.Redis.Addr, "REDIS_ADDR")
	overrideString(&c.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	overrideString(&c.Infra.Nacos.ServerAddrs, "NACOS_SERVER_ADDRS")
	overrideString(&c.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	overrideString(&c.Infra.Nacos.Group, "NACOS_GROUP")
	overrideList(&c.Infra.Kafka.Brokers, "KAFKA_BROKERS")
	overrideList(&c.Infra.Zookeeper.Servers, "ZK_SERVERS")

	if c.Service.Port == 0 {
		c.Service.Port = 8080
	}
	if c.Service.ShutdownTimeout == 0 {
		c.Service.ShutdownTimeout = 10 * time.Second
	}
	if c.Infra.Redis.CacheTTL == 0 {
		c.Infra.Redis.CacheTTL = time.Minute
	}
	if c.Infra.Zookeeper.SessionTimeout == 0 {
		c.Infra.Zookeeper.SessionTimeout = 5 * time.Second
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func overrideList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
