// Package capacity 根据预检上报的节点容量计算磁盘分配方案
package capacity

import (
	"fmt"
	"math"

	"galera-cd/internal/model"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

// Percent 按百分比划分 VG, 四项之和为 100
type Percent struct {
	Data   float64 `json:"data"`
	Logs   float64 `json:"logs"`
	Tmp    float64 `json:"tmp"`
	Gcache float64 `json:"gcache"`
}

// DefaultPercent 默认划分 65/20/10/5
var DefaultPercent = Percent{Data: 65, Logs: 20, Tmp: 10, Gcache: 5}

// Sum 四项之和
func (p Percent) Sum() float64 {
	return p.Data + p.Logs + p.Tmp + p.Gcache
}

// FixedSizes 模板给定的预留分区大小(GB)
type FixedSizes struct {
	LogsGB   float64
	TmpGB    float64
	GcacheGB float64
}

// Request 计算输入. Fixed 与 Percent 同时存在时以 Fixed 为准
type Request struct {
	Nodes   []model.NodeResult
	Fixed   *FixedSizes
	Percent *Percent
	DataGB  float64 // >0 表示固定数据分区大小
}

// Plan 磁盘分配方案
type Plan struct {
	MinCapacityGB float64
	LogsGB        float64
	TmpGB         float64
	GcacheGB      float64
	DataGB        *float64 // 为空表示数据分区使用剩余全部空间
	ForceWipe     bool
	Percent       *Percent // 按百分比计算时记录所用比例
}

// ReservedGB 三个预留分区之和
func (p Plan) ReservedGB() float64 {
	return round1(p.LogsGB + p.TmpGB + p.GcacheGB)
}

// LVDataSize 数据分区参数: X.Xg 或 100%FREE
func (p Plan) LVDataSize() string {
	if p.DataGB == nil {
		return constants.DataSizeUseRemaining
	}
	return FormatGB(*p.DataGB)
}

// GcacheSizeMB gcache 文件大小取分区的 80%
func (p Plan) GcacheSizeMB() int {
	return int(math.Floor(p.GcacheGB * 1024 * 0.8))
}

// FormatGB 渲染为 LVM 尺寸, 如 3.5g
func FormatGB(v float64) string {
	return fmt.Sprintf("%.1fg", v)
}

// Resolver 容量计算器, 无状态
type Resolver struct {
	FloorGB float64
}

// NewResolver floor<=0 时使用默认下限
func NewResolver(floorGB float64) *Resolver {
	if floorGB <= 0 {
		floorGB = constants.DefaultCapacityFloorGB
	}
	return &Resolver{FloorGB: floorGB}
}

// Resolve 计算分配方案, 容量不足返回 CapacityError
func (r *Resolver) Resolve(req Request) (*Plan, error) {
	if len(req.Nodes) == 0 {
		return nil, pkgErrors.Capacity("预检结果中没有节点容量信息")
	}

	minCapacity := math.Inf(1)
	forceWipe := false
	for _, n := range req.Nodes {
		minCapacity = math.Min(minCapacity, float64(n.ExpectedVGGB))
		if n.HasExistingMySQL {
			forceWipe = true
		}
	}

	if minCapacity < r.FloorGB {
		return nil, pkgErrors.Capacity("磁盘空间不足: 节点最小 VG 容量 %.2fGB, 至少需要 %.0fGB", minCapacity, r.FloorGB)
	}

	plan := &Plan{MinCapacityGB: minCapacity, ForceWipe: forceWipe}

	if req.Fixed != nil {
		plan.LogsGB = round1(orDefault(req.Fixed.LogsGB))
		plan.TmpGB = round1(orDefault(req.Fixed.TmpGB))
		plan.GcacheGB = round1(orDefault(req.Fixed.GcacheGB))
	} else {
		pct := DefaultPercent
		if req.Percent != nil {
			pct = *req.Percent
		}
		if math.Abs(pct.Sum()-100) > 0.01 {
			return nil, pkgErrors.Validation("磁盘分配比例之和必须为 100, 当前为 %.2f", pct.Sum())
		}
		plan.LogsGB = round1(minCapacity * pct.Logs / 100)
		plan.TmpGB = round1(minCapacity * pct.Tmp / 100)
		plan.GcacheGB = round1(minCapacity * pct.Gcache / 100)
		plan.Percent = &pct
	}

	// 按一位小数比较, 避免浮点累加误差把恰好装满的分配判为超出
	reserved := plan.ReservedGB()
	if req.DataGB > 0 {
		total := round1(reserved + req.DataGB)
		if total > minCapacity {
			return nil, pkgErrors.Capacity("磁盘分配总量 %.1fGB 超过可用 VG 容量 %.1fGB", total, minCapacity)
		}
		data := round1(req.DataGB)
		plan.DataGB = &data
	} else if reserved > minCapacity {
		return nil, pkgErrors.Capacity("预留分区总量 %.1fGB 超过可用 VG 容量 %.1fGB", reserved, minCapacity)
	}

	return plan, nil
}

func orDefault(v float64) float64 {
	if v <= 0 {
		return constants.DefaultTemplatePartitionGB
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
