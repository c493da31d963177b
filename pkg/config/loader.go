package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadLayered 加载多环境配置并返回合并后的 YAML 文档
//
// base.yaml is required. <env>.yaml is overlaid when present. ${VAR}
// placeholders are resolved from secrets.env first and then from the process
// environment; unresolved ones become empty so validation can reject them.
func LoadLayered(configDir, env string) ([]byte, error) {
	if configDir == "" {
		configDir = "config"
	}

	layers := []string{"base"}
	if env != "" && env != "base" {
		layers = append(layers, env)
	}

	merged := map[string]any{}
	for i, name := range layers {
		layer, err := readYAML(filepath.Join(configDir, name+".yaml"))
		if errors.Is(err, fs.ErrNotExist) && i > 0 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s.yaml: %w", name, err)
		}
		merged = mergeMaps(merged, layer)
	}

	secrets, err := readEnvFile(filepath.Join(configDir, "secrets.env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load secrets.env: %w", err)
	}
	merged = resolvePlaceholders(merged, func(key string) string {
		if v, ok := secrets[key]; ok {
			return v
		}
		return os.Getenv(key)
	})

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged config: %w", err)
	}
	return out, nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// readEnvFile 解析 KEY=VALUE 格式，忽略空行和 # 注释，去掉值两侧的引号
func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		env[strings.TrimSpace(key)] = value
	}
	return env, sc.Err()
}

// mergeMaps returns dst overlaid with src; nested maps merge recursively.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if d, ok := out[k].(map[string]any); ok {
			if s, ok := v.(map[string]any); ok {
				out[k] = mergeMaps(d, s)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func resolvePlaceholders(node map[string]any, lookup func(string) string) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		switch val := v.(type) {
		case string:
			out[k] = placeholder.ReplaceAllStringFunc(val, func(m string) string {
				return lookup(placeholder.FindStringSubmatch(m)[1])
			})
		case map[string]any:
			out[k] = resolvePlaceholders(val, lookup)
		default:
			out[k] = v
		}
	}
	return out
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（CONFIG_ENV，默认 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
