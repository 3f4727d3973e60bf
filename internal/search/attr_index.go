package search

import (
	"sort"
	"strconv"
	"strings"

	"github.com/user/kinosearch/internal/model"
)

// 可过滤的属性名
const (
	AttrGenre    = "genre"
	AttrYear     = "year"
	AttrType     = "type"
	AttrCountry  = "country"
	AttrCategory = "category"
)

// AttributeIndex 倒排索引：(属性名, 属性值) -> 影片 ID 集合
// 纯派生结构，随时可以从影片库整体重建，本身不作为任何数据的正本
type AttributeIndex struct {
	values map[string]map[string]map[int]struct{}
}

// NewAttributeIndex 创建空索引
func NewAttributeIndex() *AttributeIndex {
	return &AttributeIndex{
		values: make(map[string]map[string]map[int]struct{}),
	}
}

// Index 把影片登记到它的每一个 (属性, 值) 之下
// 流派统一转小写，国家保持原样，年份按字面值
func (ix *AttributeIndex) Index(m *model.Movie) {
	for _, genre := range m.Genres {
		if genre != "" {
			ix.add(AttrGenre, strings.ToLower(genre), m.ID)
		}
	}
	for _, country := range m.Countries {
		if country != "" {
			ix.add(AttrCountry, country, m.ID)
		}
	}
	ix.add(AttrYear, strconv.Itoa(m.Year), m.ID)
	if m.Type != "" {
		ix.add(AttrType, strings.ToLower(m.Type), m.ID)
	}
	if m.Category != "" {
		ix.add(AttrCategory, strings.ToLower(m.Category), m.ID)
	}
}

func (ix *AttributeIndex) add(attr, value string, id int) {
	byValue, ok := ix.values[attr]
	if !ok {
		byValue = make(map[string]map[int]struct{})
		ix.values[attr] = byValue
	}
	ids, ok := byValue[value]
	if !ok {
		ids = make(map[int]struct{})
		byValue[value] = ids
	}
	ids[id] = struct{}{}
}

// Filter 返回所有非空条件对应 ID 集合的交集
// 空条件集返回 (nil, false)，表示"无约束"而不是"无结果"，
// 调用方必须特殊处理，避免无意中扫全量语料
func (ix *AttributeIndex) Filter(criteria map[string]string) (map[int]struct{}, bool) {
	var result map[int]struct{}
	constrained := false

	for attr, value := range criteria {
		if value == "" {
			continue
		}
		constrained = true

		ids := ix.lookup(attr, value)
		if result == nil {
			// 复制第一个集合，后续在副本上做交集
			result = make(map[int]struct{}, len(ids))
			for id := range ids {
				result[id] = struct{}{}
			}
			continue
		}
		for id := range result {
			if _, ok := ids[id]; !ok {
				delete(result, id)
			}
		}
	}

	if !constrained {
		return nil, false
	}
	if result == nil {
		result = map[int]struct{}{}
	}
	return result, true
}

// lookup 按索引时的规范化规则查值
func (ix *AttributeIndex) lookup(attr, value string) map[int]struct{} {
	switch attr {
	case AttrGenre, AttrType, AttrCategory:
		value = strings.ToLower(value)
	}
	byValue, ok := ix.values[attr]
	if !ok {
		return nil
	}
	return byValue[value]
}

// IDs 单个 (属性, 值) 下的影片 ID 列表
func (ix *AttributeIndex) IDs(attr, value string) []int {
	set := ix.lookup(attr, value)
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Values 某个属性下出现过的全部取值（排序后），用于维度枚举
func (ix *AttributeIndex) Values(attr string) []string {
	byValue := ix.values[attr]
	out := make([]string, 0, len(byValue))
	for v := range byValue {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clear 清空索引（重建前调用）
func (ix *AttributeIndex) Clear() {
	ix.values = make(map[string]map[string]map[int]struct{})
}

// Rebuild 清空后按当前语料整体重建，幂等
func (ix *AttributeIndex) Rebuild(movies []model.Movie) {
	ix.Clear()
	for i := range movies {
		ix.Index(&movies[i])
	}
}
