package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StringMap 以 JSON 文本存储的 string->string 映射
type StringMap map[string]string

// 实现 sql.Scanner
func (m *StringMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = StringMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringMap", value)
	}
	if len(raw) == 0 {
		*m = StringMap{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// 实现 driver.Valuer
func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Clone 深拷贝
func (m StringMap) Clone() StringMap {
	out := make(StringMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FlexFloat 兼容执行器回调中以字符串或数字上报的数值
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = FlexFloat(v)
	return nil
}

// SplitHosts 解析逗号分隔的主机列表
func SplitHosts(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			hosts = append(hosts, p)
		}
	}
	return hosts
}
