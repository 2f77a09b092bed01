// Package params 生成下发给构建执行器的部署参数快照
package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"galera-cd/internal/core/capacity"
	"galera-cd/internal/model"
)

// 执行器参数名
const (
	KeyTargetHosts   = "TARGET_HOSTS"
	KeyAsyncHost     = "ASYNC_HOST"
	KeyPreflightID   = "PREFLIGHT_ID"
	KeyDBRootPass    = "DB_ROOT_PASS"
	KeyAppUser       = "APP_USER"
	KeyAppPass       = "APP_PASS"
	KeyForceWipe     = "FORCE_WIPE"
	KeyLVLogsSize    = "LV_LOGS_SIZE"
	KeyLVTmpSize     = "LV_TMP_SIZE"
	KeyLVGcacheSize  = "LV_GCACHE_SIZE"
	KeyLVDataSize    = "LV_DATA_SIZE"
	KeyMinVGSizeGB   = "MIN_VG_SIZE_GB"
	KeyGcacheSize    = "GCACHE_SIZE"
	KeySQLConfig     = "SQL_CONFIG_JSON"
	KeyGaleraConfig  = "GALERA_CONFIG_JSON"
	defaultSSTMethod = "rsync"
)

// SecretKeys 落库前需要加密的参数
var SecretKeys = []string{KeyDBRootPass, KeyAppPass}

// HardConstraints Galera 集群必须的配置, 覆盖模板和请求中的同名参数
var HardConstraints = map[string]string{
	"binlog_format":            "ROW",
	"default_storage_engine":   "InnoDB",
	"wsrep_on":                 "ON",
	"innodb_autoinc_lock_mode": "2",
}

// Input 生成快照所需的全部输入
type Input struct {
	ClusterName    string
	Hosts          []string
	AsyncHost      string
	DBRootPass     string
	AppUser        string
	AppPass        string
	BufferPool     string
	MaxConnections int
	TemplateParams map[string]string // 模板自定义参数
	CustomParams   map[string]string // 请求自定义参数, 覆盖模板
	Plan           *capacity.Plan
}

type sqlConfig struct {
	Port                 string `json:"port"`
	User                 string `json:"user"`
	InnodbBufferPoolSize string `json:"innodb_buffer_pool_size"`
	MaxConnections       string `json:"max_connections"`
}

// Build 生成执行器参数. 合并顺序: 模板自定义参数 < 请求自定义参数 < 强制约束
func Build(in Input) (model.StringMap, error) {
	if in.Plan == nil {
		return nil, fmt.Errorf("缺少磁盘分配方案")
	}

	sqlJSON, err := json.MarshalIndent(sqlConfig{
		Port:                 "3306",
		User:                 "mysql",
		InnodbBufferPoolSize: in.BufferPool,
		MaxConnections:       strconv.Itoa(in.MaxConnections),
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	galera := lo.Assign(
		map[string]string{
			"wsrep_cluster_name": in.ClusterName,
			"wsrep_sst_method":   defaultSSTMethod,
		},
		in.TemplateParams,
		in.CustomParams,
		HardConstraints,
	)
	galeraJSON, err := json.MarshalIndent(galera, "", "  ")
	if err != nil {
		return nil, err
	}

	plan := in.Plan
	return model.StringMap{
		KeyTargetHosts:  strings.Join(in.Hosts, ","),
		KeyAsyncHost:    in.AsyncHost,
		KeyDBRootPass:   in.DBRootPass,
		KeyAppUser:      in.AppUser,
		KeyAppPass:      in.AppPass,
		KeyForceWipe:    strconv.FormatBool(plan.ForceWipe),
		KeyLVLogsSize:   capacity.FormatGB(plan.LogsGB),
		KeyLVTmpSize:    capacity.FormatGB(plan.TmpGB),
		KeyLVGcacheSize: capacity.FormatGB(plan.GcacheGB),
		KeyLVDataSize:   plan.LVDataSize(),
		KeyMinVGSizeGB:  strconv.FormatFloat(plan.MinCapacityGB, 'f', 2, 64),
		KeyGcacheSize:   fmt.Sprintf("%dM", plan.GcacheSizeMB()),
		KeySQLConfig:    string(sqlJSON),
		KeyGaleraConfig: string(galeraJSON),
	}, nil
}

// Preflight 预检 job 参数
func Preflight(hosts []string, asyncHost string, preflightID int64) map[string]string {
	return map[string]string{
		KeyTargetHosts: strings.Join(hosts, ","),
		KeyAsyncHost:   asyncHost,
		KeyPreflightID: strconv.FormatInt(preflightID, 10),
	}
}
